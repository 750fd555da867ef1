// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync/atomic"

	"pitchosc/internal/config"
	"pitchosc/internal/dsp"
	"pitchosc/internal/pitch"
	"pitchosc/internal/synth"
)

// Preprocessor conditions one input sample for the estimator.
type Preprocessor interface {
	Process(s float32) float32
}

// Estimator consumes conditioned samples and reports detections.
type Estimator interface {
	Observe(s float32) bool
	Frequency() float64
	Periodicity() float64
}

// Source supplies the right output channel in place of the right input.
// NextSample must not block or allocate.
type Source interface {
	NextSample() float32
}

// Tap receives every output block after it is written. Write must not
// block or allocate.
type Tap interface {
	Write(left, right []float32)
}

// BlockProcessor is the body of the sample-block callback. For each frame
// it tracks the left input, emits the synthesized sine on the left output
// and passes the right channel through untouched.
//
// ProcessBlock never blocks, locks or allocates. Everything else on
// BlockProcessor besides Stop, Stopped and Snapshot must be called before
// the stream starts.
type BlockProcessor struct {
	sampleRate uint32
	pre        Preprocessor
	est        Estimator
	osc        *synth.Accumulator
	source     Source
	tap        Tap
	gate       interface{ GateOpen() bool }

	// Detections are ignored for onsetHold samples after the gate opens,
	// so the filter start-up stays out of the first estimate.
	onsetHold int
	hold      int
	wasOpen   bool

	state    TrackingState
	snapshot Snapshot
	stopped  atomic.Bool
}

// NewBlockProcessor wires an already built pre-processor and estimator.
func NewBlockProcessor(sampleRate uint32, attenuation float32, pre Preprocessor, est Estimator) *BlockProcessor {
	p := &BlockProcessor{
		sampleRate: sampleRate,
		pre:        pre,
		est:        est,
		osc:        synth.NewAccumulator(attenuation),
	}
	if g, ok := pre.(interface{ GateOpen() bool }); ok {
		p.gate = g
		if w, ok := est.(interface{ WindowSize() int }); ok {
			p.onsetHold = w.WindowSize() + w.WindowSize()/2
		}
	}
	return p
}

// NewTracker builds the default chain, a dsp.Preprocessor feeding a BACF
// pitch.Detector, from configuration.
func NewTracker(cfg *config.Config) (*BlockProcessor, error) {
	sr := cfg.SampleRateHz()
	tr := cfg.Tracking

	pre, err := dsp.NewPreprocessor(dsp.Options{
		SampleRate:       sr,
		LowestFrequency:  tr.LowestFrequency,
		HighestFrequency: tr.HighestFrequency,
		GateOnsetDB:      tr.GateOnsetDB,
		GateReleaseDB:    tr.GateReleaseDB,
		Attack:           tr.Attack.Seconds(),
		Release:          tr.Release.Seconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build pre-processor: %w", err)
	}

	det, err := pitch.New(pitch.Options{
		SampleRate:       sr,
		LowestFrequency:  tr.LowestFrequency,
		HighestFrequency: tr.HighestFrequency,
		Periodicity:      tr.Periodicity,
		Hysteresis:       tr.Hysteresis,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build pitch detector: %w", err)
	}

	return NewBlockProcessor(cfg.Audio.SampleRate, float32(cfg.Audio.Attenuation), pre, det), nil
}

// SetSource replaces the right input with src. A nil src restores the
// right input.
func (p *BlockProcessor) SetSource(src Source) { p.source = src }

// SetTap installs a consumer for output blocks, such as a recorder.
func (p *BlockProcessor) SetTap(tap Tap) { p.tap = tap }

// ProcessBlock processes one block. outL and outR must have equal length;
// missing input frames read as silence.
func (p *BlockProcessor) ProcessBlock(inL, inR, outL, outR []float32) {
	if p.stopped.Load() {
		clear(outL)
		clear(outR)
		return
	}

	for i := range outL {
		var l, r float32
		if i < len(inL) {
			l = inL[i]
		}
		if p.source != nil {
			r = p.source.NextSample()
		} else if i < len(inR) {
			r = inR[i]
		}

		x := p.pre.Process(l)
		if p.gate != nil {
			p.trackOnset()
		}
		if p.est.Observe(x) && p.hold == 0 {
			p.detected(p.est.Frequency())
		}

		outL[i] = p.osc.Sample()
		outR[i] = r
		p.osc.Advance()
	}

	gateOpen := p.gate != nil && p.gate.GateOpen()
	p.snapshot.publish(&p.state, p.est.Periodicity(), gateOpen)

	if p.tap != nil {
		p.tap.Write(outL, outR)
	}
}

func (p *BlockProcessor) trackOnset() {
	open := p.gate.GateOpen()
	if open && !p.wasOpen {
		p.hold = p.onsetHold
	}
	p.wasOpen = open
	if p.hold > 0 {
		p.hold--
	}
}

func (p *BlockProcessor) detected(f float64) {
	p.state.Frequency = f
	p.state.Increment = synth.Increment(f, p.sampleRate)
	p.state.Detections++
	p.osc.SetIncrement(p.state.Increment)
}

// Stop makes subsequent blocks silent. It is checked once per block.
func (p *BlockProcessor) Stop() { p.stopped.Store(true) }

func (p *BlockProcessor) Stopped() bool { return p.stopped.Load() }

// State returns the owned tracking state. Only safe from the goroutine
// driving ProcessBlock, or after the stream has stopped.
func (p *BlockProcessor) State() TrackingState { return p.state }

// Snapshot returns the concurrently readable view of the tracking state.
func (p *BlockProcessor) Snapshot() *Snapshot { return &p.snapshot }

func (p *BlockProcessor) SampleRate() uint32 { return p.sampleRate }
