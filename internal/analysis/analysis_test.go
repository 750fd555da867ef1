// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"pitchosc/pkg/utils"
)

const (
	testFFTSize    = 4096
	testSampleRate = 48000
)

func TestNewFFTProcessorValidation(t *testing.T) {
	if _, err := NewFFTProcessor(1000, testSampleRate, Hann); err == nil {
		t.Error("expected error for non power of two size")
	}
	if _, err := NewFFTProcessor(testFFTSize, 0, Hann); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestGetFrequencyForBin(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		bin  int
		want float64
	}{
		{0, 0},
		{1, testSampleRate / float64(testFFTSize)},
		{testFFTSize / 2, testSampleRate / 2},
		{-1, 0},
		{testFFTSize, 0},
	}
	for _, tt := range tests {
		if got := p.GetFrequencyForBin(tt.bin); got != tt.want {
			t.Errorf("GetFrequencyForBin(%d) = %v, want %v", tt.bin, got, tt.want)
		}
	}
}

func TestGetMagnitudesInto(t *testing.T) {
	p, _ := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err := p.GetMagnitudesInto(make([]float64, 10)); err == nil {
		t.Error("expected length mismatch error")
	}
	if got := len(p.GetMagnitudes()); got != testFFTSize/2+1 {
		t.Errorf("GetMagnitudes() len = %d", got)
	}
}

func TestMeasureFrequency(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{"220Hz 100ms", utils.GenerateSineWave(4800, testSampleRate, 220, 0.5), 220},
		{"65.41Hz 250ms", utils.GenerateSineWave(12000, testSampleRate, 65.41, 0.5), 65.41},
		{"523.25Hz 100ms", utils.GenerateSineWave(4800, testSampleRate, 523.25, 0.5), 523.25},
		{"harmonic 110Hz", utils.GenerateComplexWave(9600, testSampleRate, 110, 0.8), 110},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MeasureFrequency(tt.samples, testSampleRate, 50, 600)
			if err != nil {
				t.Fatalf("MeasureFrequency: %v", err)
			}
			if math.Abs(got-tt.want)/tt.want > 0.005 {
				t.Errorf("MeasureFrequency() = %.3f Hz, want %.3f", got, tt.want)
			}
		})
	}
}

func TestMeasureWindowed(t *testing.T) {
	samples := utils.GenerateSineWave(4800, testSampleRate, 440, 0.5)
	for _, win := range []WindowFunc{Hann, Hamming, Blackman, BlackmanNuttall, Nuttall} {
		t.Run(fmt.Sprintf("window %d", win), func(t *testing.T) {
			got, err := MeasureWindowed(samples, testSampleRate, 50, 1000, win)
			if err != nil {
				t.Fatalf("MeasureWindowed: %v", err)
			}
			if math.Abs(got-440)/440 > 0.005 {
				t.Errorf("MeasureWindowed() = %.3f Hz, want 440", got)
			}
		})
	}
}

func TestMeasureFrequencyErrors(t *testing.T) {
	if _, err := MeasureFrequency(nil, testSampleRate, 50, 600); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := MeasureFrequency(make([]float32, 4800), testSampleRate, 50, 600); !errors.Is(err, ErrNoPeak) {
		t.Errorf("silence: err = %v, want ErrNoPeak", err)
	}
	if _, err := MeasureFrequency(make([]float32, 10), testSampleRate, 30000, 40000); err == nil {
		t.Error("expected error for range above nyquist")
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"hann", Hann, false},
		{"Hanning", Hann, false},
		{"BLACKMAN", Blackman, false},
		{"nuttall", Nuttall, false},
		{"bartletthann", BartlettHann, false},
		{"square", Hann, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.name)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseWindowFunc(%q) = %v, %v", tt.name, got, err)
			}
		})
	}
}

func TestProcessHotPath(t *testing.T) {
	p, _ := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	input := utils.GenerateSineWave(testFFTSize, testSampleRate, 440, 0.5)

	// The first call computes the window for this input length.
	p.Process(input)
	allocs := testing.AllocsPerRun(100, func() {
		p.Process(input)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in FFT Process hot path, got %.1f", allocs)
	}
}

func BenchmarkProcess(b *testing.B) {
	for _, size := range []int{1024, 4096, 32768} {
		b.Run(fmt.Sprint(size), func(b *testing.B) {
			p, _ := NewFFTProcessor(size, testSampleRate, Hann)
			input := utils.GenerateSineWave(size, testSampleRate, 440, 0.5)

			b.ReportAllocs()
			for b.Loop() {
				p.Process(input)
			}
		})
	}
}
