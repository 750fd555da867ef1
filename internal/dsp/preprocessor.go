// SPDX-License-Identifier: MIT
/*
Package dsp conditions the raw input before pitch estimation.

The chain is band-limiting (high-pass at half the lowest tracked frequency,
low-pass at the highest), a peak envelope follower, a noise gate with
onset/release hysteresis, and automatic gain normalisation against the
envelope. The output is roughly unit amplitude while the gate is open and
exactly zero while it is closed, so the zero-crossing comparator downstream
sees a clean, level-independent signal.
*/
package dsp

import "fmt"

// Options configures a Preprocessor. Times are in seconds, thresholds in
// dBFS.
type Options struct {
	SampleRate       float64
	LowestFrequency  float64
	HighestFrequency float64
	GateOnsetDB      float64
	GateReleaseDB    float64
	Attack           float64
	Release          float64
}

// Preprocessor performs a constant amount of work per sample.
type Preprocessor struct {
	highPass *Biquad
	lowPass  *Biquad
	envelope *Envelope
	gate     *Gate

	// Gain normalisation never divides by less than this.
	floor float64
}

// NewPreprocessor validates opts and builds the chain.
func NewPreprocessor(opts Options) (*Preprocessor, error) {
	nyquist := opts.SampleRate / 2
	switch {
	case opts.SampleRate <= 0:
		return nil, fmt.Errorf("dsp: invalid sample rate %v", opts.SampleRate)
	case opts.LowestFrequency <= 0 || opts.LowestFrequency >= opts.HighestFrequency:
		return nil, fmt.Errorf("dsp: invalid frequency range [%v, %v]", opts.LowestFrequency, opts.HighestFrequency)
	case opts.HighestFrequency >= nyquist:
		return nil, fmt.Errorf("dsp: highest frequency %v must be below nyquist %v", opts.HighestFrequency, nyquist)
	case opts.GateReleaseDB > opts.GateOnsetDB:
		return nil, fmt.Errorf("dsp: gate release %v dB above onset %v dB", opts.GateReleaseDB, opts.GateOnsetDB)
	}

	return &Preprocessor{
		highPass: NewHighPass(opts.LowestFrequency/2, opts.SampleRate),
		lowPass:  NewLowPass(opts.HighestFrequency, opts.SampleRate),
		envelope: NewEnvelope(opts.Attack, opts.Release, opts.SampleRate),
		gate:     NewGate(opts.GateOnsetDB, opts.GateReleaseDB),
		floor:    DBToLinear(opts.GateReleaseDB),
	}, nil
}

// Process conditions one sample.
func (p *Preprocessor) Process(s float32) float32 {
	x := p.lowPass.Process(p.highPass.Process(float64(s)))
	level := p.envelope.Process(x)

	if !p.gate.Update(level) {
		return 0
	}
	return float32(x / max(level, p.floor))
}

// GateOpen reports the current gate state.
func (p *Preprocessor) GateOpen() bool { return p.gate.Open() }

// Level returns the current envelope level after band-limiting.
func (p *Preprocessor) Level() float64 { return p.envelope.Level() }

// Reset clears all filter and envelope history and closes the gate.
func (p *Preprocessor) Reset() {
	p.highPass.Reset()
	p.lowPass.Reset()
	p.envelope.level = 0
	p.gate.open = false
}
