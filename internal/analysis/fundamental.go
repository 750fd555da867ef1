// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"

	"pitchosc/pkg/bitint"
	"pitchosc/pkg/utils"
)

// minMeasureSize keeps the zero-padded bin spacing below 1.5 Hz at 48 kHz.
const minMeasureSize = 32768

var ErrNoPeak = errors.New("analysis: no spectral peak in range")

// PeakFrequency returns the frequency of the strongest bin of p between lo
// and hi Hz, refined by fitting a parabola through it and its neighbours.
func PeakFrequency(p SpectrumProvider, lo, hi float64) (float64, error) {
	mags := make([]float64, p.GetFFTSize()/2+1)
	if err := p.GetMagnitudesInto(mags); err != nil {
		return 0, err
	}

	binWidth := p.GetSampleRate() / float64(p.GetFFTSize())
	start := max(int(lo/binWidth), 1)
	end := min(int(hi/binWidth)+1, len(mags)-2)
	if start > end {
		return 0, fmt.Errorf("analysis: range [%.1f, %.1f] Hz outside spectrum", lo, hi)
	}

	peak := utils.FindPeakBin(mags, start, end)
	if mags[peak] == 0 {
		return 0, ErrNoPeak
	}

	alpha, beta, gamma := mags[peak-1], mags[peak], mags[peak+1]
	offset := 0.0
	if denom := alpha - 2*beta + gamma; denom != 0 {
		offset = 0.5 * (alpha - gamma) / denom
	}
	return (float64(peak) + offset) * binWidth, nil
}

// MeasureFrequency returns the dominant frequency of samples between lo
// and hi Hz using a Hann-windowed, zero-padded FFT.
func MeasureFrequency(samples []float32, sampleRate, lo, hi float64) (float64, error) {
	return MeasureWindowed(samples, sampleRate, lo, hi, Hann)
}

// MeasureWindowed is MeasureFrequency with a caller-chosen window.
func MeasureWindowed(samples []float32, sampleRate, lo, hi float64, win WindowFunc) (float64, error) {
	if len(samples) == 0 {
		return 0, errors.New("analysis: no samples")
	}

	size := bitint.NextPowerOfTwo(max(len(samples), minMeasureSize))
	proc, err := NewFFTProcessor(size, sampleRate, win)
	if err != nil {
		return 0, err
	}
	proc.Process(samples)
	return PeakFrequency(proc, lo, hi)
}
