// SPDX-License-Identifier: MIT
/*
Package synth implements the fixed-point phase accumulator that drives the
re-synthesized sine.

A Phase is an unsigned 32-bit fraction of one cycle: 0 is 0 radians and
2^32 wraps back to 0. Adding increments therefore wraps modulo one cycle by
plain integer overflow, so the running phase can never become NaN, Inf or
lose precision after hours of runtime.
*/
package synth

import "math"

// Phase is a position within one waveform cycle in units of 2^-32 cycles.
type Phase uint32

const (
	cycle      = 1 << 32
	radPerUnit = 2 * math.Pi / cycle
)

// Increment converts a frequency into the per-sample phase step for the
// given sample rate: f / sampleRate cycles. Non-positive and NaN frequencies
// yield a zero step; frequencies at or above the sample rate alias modulo
// one cycle.
func Increment(f float64, sampleRate uint32) Phase {
	if !(f > 0) || sampleRate == 0 {
		return 0
	}
	cycles := f / float64(sampleRate)
	cycles -= math.Floor(cycles)
	return Phase(uint64(math.Round(cycles*cycle)) & (cycle - 1))
}

// Frequency converts a phase step back into Hz.
func (p Phase) Frequency(sampleRate uint32) float64 {
	return float64(p) / cycle * float64(sampleRate)
}

// Radians returns the phase angle in [0, 2π).
func (p Phase) Radians() float64 {
	return float64(p) * radPerUnit
}

// Sin returns the sine of the phase angle.
func (p Phase) Sin() float64 {
	return math.Sin(p.Radians())
}
