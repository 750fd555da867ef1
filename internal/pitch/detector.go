// SPDX-License-Identifier: MIT
/*
Package pitch estimates the fundamental frequency of a monophonic signal
with a bitstream autocorrelation (BACF).

Each conditioned sample is reduced to one bit by a zero-crossing comparator
with hysteresis. Bits accumulate in a window of N bits, where N is twice the
longest tracked period rounded up to a multiple of 128. Once the window is
full, the mismatch count between the first half of the window and the
window shifted by each candidate lag is computed with XOR and popcount.
The first valley close to the global minimum is the period estimate, refined
below one sample by V-shaped interpolation of the neighbouring counts. Lags
down to half the shortest tracked period are searched as well, so a tone
above the range shows up at its own period and is rejected instead of being
reported at an in-range multiple. The window then slides by half so a new
estimate is produced every N/2 samples.

All storage is allocated by New; Observe never allocates.
*/
package pitch

import (
	"fmt"
	"math"
	"math/bits"

	"pitchosc/pkg/bitint"
)

// Options configures a Detector.
type Options struct {
	SampleRate       float64
	LowestFrequency  float64
	HighestFrequency float64

	// Periodicity is the minimum 1 - 2*min/W accepted as a pitch, in (0, 1].
	Periodicity float64

	// Hysteresis is the comparator dead band around zero. The input is
	// expected to be gain-normalised to roughly unit amplitude.
	Hysteresis float64
}

// valleyTolerance is the fraction of the half window a lag count may sit
// above the global minimum and still be taken as the first valley.
const valleyTolerance = 0.03

// Detector is not safe for concurrent use.
type Detector struct {
	sampleRate float64
	lowest     float64
	highest    float64
	threshold  float64
	hysteresis float32

	minPeriod int
	maxPeriod int

	size  int // window length in bits
	half  int
	words []uint64 // size/64 words plus one guard word
	pos   int
	high  bool

	// counts[i] is the mismatch count at lag firstLag+i.
	counts   []int
	firstLag int

	frequency   float64
	periodicity float64
	detections  uint64
}

// New allocates a detector for the configured frequency range.
func New(opts Options) (*Detector, error) {
	switch {
	case opts.SampleRate <= 0:
		return nil, fmt.Errorf("pitch: invalid sample rate %v", opts.SampleRate)
	case opts.LowestFrequency <= 0 || opts.LowestFrequency >= opts.HighestFrequency:
		return nil, fmt.Errorf("pitch: invalid frequency range [%v, %v]", opts.LowestFrequency, opts.HighestFrequency)
	case opts.HighestFrequency >= opts.SampleRate/2:
		return nil, fmt.Errorf("pitch: highest frequency %v must be below nyquist", opts.HighestFrequency)
	case opts.Periodicity <= 0 || opts.Periodicity > 1:
		return nil, fmt.Errorf("pitch: periodicity threshold %v outside (0, 1]", opts.Periodicity)
	case opts.Hysteresis < 0:
		return nil, fmt.Errorf("pitch: negative hysteresis %v", opts.Hysteresis)
	}

	maxPeriod := int(math.Ceil(opts.SampleRate / opts.LowestFrequency))
	minPeriod := max(int(math.Floor(opts.SampleRate/opts.HighestFrequency)), 2)

	// Lag maxPeriod+1 is read for interpolation, so the shifted half must
	// still fit inside the window.
	size := bitint.AlignUp(2*(maxPeriod+1), 2*bitint.WordBits)
	firstLag := max(minPeriod/2, 2) - 1
	lastLag := maxPeriod + 1

	return &Detector{
		sampleRate: opts.SampleRate,
		lowest:     opts.LowestFrequency,
		highest:    opts.HighestFrequency,
		threshold:  opts.Periodicity,
		hysteresis: float32(opts.Hysteresis),
		minPeriod:  minPeriod,
		maxPeriod:  maxPeriod,
		size:       size,
		half:       size / 2,
		words:      make([]uint64, bitint.Words(size)+1),
		counts:     make([]int, lastLag-firstLag+1),
		firstLag:   firstLag,
	}, nil
}

// Observe feeds one conditioned sample. It returns true when a window
// analysis produced a new in-range frequency.
func (d *Detector) Observe(s float32) bool {
	switch {
	case d.high && s < -d.hysteresis:
		d.high = false
	case !d.high && s > d.hysteresis:
		d.high = true
	}
	if d.high {
		d.words[d.pos/bitint.WordBits] |= 1 << (uint(d.pos) % bitint.WordBits)
	}

	d.pos++
	if d.pos < d.size {
		return false
	}

	detected := d.analyze()
	d.slide()
	return detected
}

// Frequency returns the last accepted frequency, or 0 before the first
// detection.
func (d *Detector) Frequency() float64 { return d.frequency }

// Periodicity returns the periodicity of the most recent analysed window.
func (d *Detector) Periodicity() float64 { return d.periodicity }

// Detections returns the number of accepted estimates so far.
func (d *Detector) Detections() uint64 { return d.detections }

// WindowSize returns the window length in samples.
func (d *Detector) WindowSize() int { return d.size }

// PeriodRange returns the shortest and longest period accepted as a pitch.
func (d *Detector) PeriodRange() (int, int) { return d.minPeriod, d.maxPeriod }

// Reset clears the window and forgets the last frequency.
func (d *Detector) Reset() {
	clear(d.words)
	clear(d.counts)
	d.pos = 0
	d.high = false
	d.frequency = 0
	d.periodicity = 0
	d.detections = 0
}

// mismatch counts differing bits between the first half of the window and
// the window shifted by lag.
func (d *Detector) mismatch(lag int) int {
	n := d.half / bitint.WordBits
	shift := uint(lag) % bitint.WordBits
	base := lag / bitint.WordBits

	count := 0
	for k := range n {
		lo := d.words[base+k]
		hi := d.words[base+k+1]
		// A shift of 64 yields zero, which handles word-aligned lags.
		shifted := lo>>shift | hi<<(bitint.WordBits-shift)
		count += bits.OnesCount64(d.words[k] ^ shifted)
	}
	return count
}

func (d *Detector) count(lag int) int { return d.counts[lag-d.firstLag] }

func (d *Detector) analyze() bool {
	// Every comparator transition is a mismatch at lag one.
	if d.mismatch(1) < 2 {
		d.periodicity = 0
		return false
	}

	// counts[0] only feeds interpolation.
	minCount := math.MaxInt
	for i := range d.counts {
		c := d.mismatch(d.firstLag + i)
		d.counts[i] = c
		if lag := d.firstLag + i; lag > d.firstLag && lag <= d.maxPeriod {
			minCount = min(minCount, c)
		}
	}

	d.periodicity = 1 - 2*float64(minCount)/float64(d.half)
	if d.periodicity < d.threshold {
		return false
	}

	// The first lag near the global minimum guards against octave errors
	// at multiples of the period.
	limit := minCount + int(valleyTolerance*float64(d.half))
	lag := d.firstLag + 1
	for lag < d.maxPeriod && d.count(lag) > limit {
		lag++
	}

	// The range check is resolved to whole lags at the valley bottom.
	first, last := d.valley(lag)
	if first < d.minPeriod || last > d.maxPeriod {
		return false
	}

	freq := d.sampleRate / d.refine(first, last)
	d.frequency = min(max(freq, d.lowest), d.highest)
	d.detections++
	return true
}

// valley descends from lag to the bottom of its valley and returns the
// first and last lag of the bottom. A bottom still falling at maxPeriod+1
// lies beyond the range.
func (d *Detector) valley(lag int) (first, last int) {
	top := d.maxPeriod + 1
	for {
		end := lag
		for end < top && d.count(end+1) == d.count(lag) {
			end++
		}
		if end < top && d.count(end+1) < d.count(lag) {
			lag = end + 1
			continue
		}
		return lag, end
	}
}

// refine returns the sub-sample period of the valley bottom [first, last].
func (d *Detector) refine(first, last int) float64 {
	if last > first {
		return float64(first+last) / 2
	}

	left, centre, right := d.count(first-1), d.count(first), d.count(first+1)
	slope := max(left, right) - centre
	if slope <= 0 {
		return float64(first)
	}
	delta := float64(left-right) / float64(2*slope)
	return float64(first) + min(max(delta, -0.5), 0.5)
}

func (d *Detector) slide() {
	n := d.half / bitint.WordBits
	copy(d.words, d.words[n:2*n])
	clear(d.words[n:])
	d.pos = d.half
}
