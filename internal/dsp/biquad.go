// SPDX-License-Identifier: MIT
package dsp

import "math"

// Biquad is a direct form I second-order section. Coefficients are
// normalised so that a0 == 1.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64
	y1, y2 float64
}

// Butterworth quality factor for a single second-order section.
const butterworthQ = 1 / math.Sqrt2

// NewHighPass returns an RBJ high-pass section with cutoff fc.
func NewHighPass(fc, sampleRate float64) *Biquad {
	w0 := 2 * math.Pi * fc / sampleRate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*butterworthQ)

	return newBiquad(
		(1+cos)/2, -(1 + cos), (1+cos)/2,
		1+alpha, -2*cos, 1-alpha,
	)
}

// NewLowPass returns an RBJ low-pass section with cutoff fc.
func NewLowPass(fc, sampleRate float64) *Biquad {
	w0 := 2 * math.Pi * fc / sampleRate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*butterworthQ)

	return newBiquad(
		(1-cos)/2, 1-cos, (1-cos)/2,
		1+alpha, -2*cos, 1-alpha,
	)
}

func newBiquad(b0, b1, b2, a0, a1, a2 float64) *Biquad {
	return &Biquad{
		b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
		a1: a1 / a0, a2: a2 / a0,
	}
}

// Process filters one sample.
func (f *Biquad) Process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// Reset clears the filter history.
func (f *Biquad) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}
