// SPDX-License-Identifier: MIT
/*
Package analysis measures signals independently of the tracker: a windowed
FFT spectrum and a dominant-frequency estimate refined by parabolic peak
interpolation. It backs the analyze command and the end-to-end tests that
check the synthesized output pitch.
*/
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	applog "pitchosc/internal/log"
	"pitchosc/pkg/bitint"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// SpectrumProvider exposes a magnitude spectrum and its bin geometry.
type SpectrumProvider interface {
	GetMagnitudesInto(dest []float64) error
	GetFrequencyForBin(binIndex int) float64
	GetFFTSize() int
	GetSampleRate() float64
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Windowed, zero-padded input.
	fftOutput []complex128 // FFT complex results.
	magnitude []float64    // Magnitudes of fftOutput.
	window    []float64    // Window coefficients, one per input sample.
	mu        sync.RWMutex // Protects magnitude against concurrent readers.
}

// FFTProcessor computes magnitude spectra of float32 blocks. Inputs shorter
// than the FFT size are windowed over their own length and zero-padded,
// which interpolates the spectrum for finer peak picking.
type FFTProcessor struct {
	fftCalculator *fourier.FFT
	fftSize       int
	sampleRate    float64
	windowType    WindowFunc
	windowLen     int
	workspace     fftWorkspace
}

var _ SpectrumProvider = (*FFTProcessor)(nil)

// NewFFTProcessor builds a processor for fftSize points, which must be a
// power of two.
func NewFFTProcessor(fftSize int, sampleRate float64, windowType WindowFunc) (*FFTProcessor, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	// FFT output size for real input is N/2 + 1 complex values.
	magnitudeSize := fftSize/2 + 1

	applog.Debugf("Analysis: Initializing FFTProcessor (Size: %d, SampleRate: %.1f Hz, Window: %v)", fftSize, sampleRate, windowType)

	return &FFTProcessor{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		windowType:    windowType,
		workspace: fftWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, magnitudeSize),
			magnitude: make([]float64, magnitudeSize),
			window:    make([]float64, fftSize),
		},
	}, nil
}

// Process windows the first min(len(input), fftSize) samples, runs the FFT
// and stores the magnitudes. It allocates nothing once the window for a
// given input length has been computed.
func (p *FFTProcessor) Process(input []float32) {
	n := min(len(input), p.fftSize)

	p.workspace.mu.Lock()
	defer p.workspace.mu.Unlock()

	if n != p.windowLen {
		applyWindow(p.workspace.window[:n], p.windowType)
		p.windowLen = n
	}

	for i := range p.fftSize {
		if i < n {
			p.workspace.input[i] = float64(input[i]) * p.workspace.window[i]
		} else {
			p.workspace.input[i] = 0
		}
	}

	p.fftCalculator.Coefficients(p.workspace.fftOutput, p.workspace.input)

	for i, c := range p.workspace.fftOutput {
		p.workspace.magnitude[i] = cmplx.Abs(c)
	}
}

// GetMagnitudes returns a copy of the latest magnitudes.
func (p *FFTProcessor) GetMagnitudes() []float64 {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	magCopy := make([]float64, len(p.workspace.magnitude))
	copy(magCopy, p.workspace.magnitude)
	return magCopy
}

// GetMagnitudesInto copies the latest magnitudes into dest, which must have
// fftSize/2 + 1 elements.
func (p *FFTProcessor) GetMagnitudesInto(dest []float64) error {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	if len(dest) != len(p.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dest), len(p.workspace.magnitude))
	}

	copy(dest, p.workspace.magnitude)
	return nil
}

// GetFrequencyForBin returns the center frequency (Hz) for a given FFT bin index.
func (p *FFTProcessor) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(p.workspace.fftOutput) {
		return 0.0
	}
	return float64(binIndex) * (p.sampleRate / float64(p.fftSize))
}

func (p *FFTProcessor) GetFFTSize() int        { return p.fftSize }
func (p *FFTProcessor) GetSampleRate() float64 { return p.sampleRate }

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window, Hann when the type is
// unknown.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window funcs scale in place.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
