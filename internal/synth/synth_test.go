// SPDX-License-Identifier: MIT
package synth

import (
	"fmt"
	"math"
	"testing"
)

const testSampleRate = 48000

func TestIncrementRoundTrip(t *testing.T) {
	for _, f := range []float64{65.41, 110, 220, 440, 523.25, 1000, 12000} {
		t.Run(fmt.Sprintf("%.2fHz", f), func(t *testing.T) {
			inc := Increment(f, testSampleRate)
			got := inc.Frequency(testSampleRate)
			// One phase unit at 48 kHz is ~1.1e-5 Hz.
			if math.Abs(got-f) > 1e-4 {
				t.Errorf("Increment(%.2f).Frequency() = %.6f", f, got)
			}
		})
	}
}

func TestIncrementEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		f    float64
		sr   uint32
		want Phase
	}{
		{"zero sentinel", 0, testSampleRate, 0},
		{"negative", -220, testSampleRate, 0},
		{"nan", math.NaN(), testSampleRate, 0},
		{"no sample rate", 220, 0, 0},
		{"nyquist", 24000, testSampleRate, 1 << 31},
		{"sample rate aliases to zero", 48000, testSampleRate, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Increment(tt.f, tt.sr); got != tt.want {
				t.Errorf("Increment(%v, %d) = %d, want %d", tt.f, tt.sr, got, tt.want)
			}
		})
	}
}

func TestAccumulatorFirstSampleIsPhaseZero(t *testing.T) {
	acc := NewAccumulator(0.5)
	acc.SetIncrement(Increment(440, testSampleRate))

	if s := acc.Sample(); s != 0 {
		t.Errorf("first sample = %v, want 0", s)
	}
	acc.Advance()
	if acc.Phase() != acc.Increment() {
		t.Errorf("phase after one advance = %d, want %d", acc.Phase(), acc.Increment())
	}
}

func TestAccumulatorAttenuation(t *testing.T) {
	acc := NewAccumulator(0.5)
	acc.SetIncrement(Increment(1000, testSampleRate))

	var peak float32
	for range testSampleRate / 10 {
		s := acc.Sample()
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
		acc.Advance()
	}
	if peak > 0.5 || peak < 0.499 {
		t.Errorf("peak = %v, want ~0.5", peak)
	}
}

// The phase step between consecutive samples must equal the increment in
// force for that sample, even when the increment changes mid-stream.
func TestAccumulatorPhaseContinuity(t *testing.T) {
	acc := NewAccumulator(0.5)
	schedule := []float64{0, 110, 523.25, 65.41, 220, 220, 440}

	for _, f := range schedule {
		inc := Increment(f, testSampleRate)
		acc.SetIncrement(inc)
		for range 257 {
			before := acc.Phase()
			s0 := acc.Sample()
			acc.Advance()
			step := acc.Phase() - before // wraps like the accumulator
			if step != inc {
				t.Fatalf("phase step %d, want %d", step, inc)
			}
			s1 := acc.Sample()
			maxDelta := 0.5*inc.Radians() + 1e-6
			if math.Abs(float64(s1-s0)) > maxDelta {
				t.Fatalf("sample jump %.6f exceeds one increment (%.6f)", s1-s0, maxDelta)
			}
		}
	}
}

func TestAccumulatorWrap(t *testing.T) {
	acc := NewAccumulator(1)
	acc.SetIncrement(Phase(math.MaxUint32))
	acc.Advance()
	acc.Advance()
	if acc.Phase() != math.MaxUint32-1 {
		t.Errorf("phase = %d after wrap", acc.Phase())
	}
	if s := acc.Sample(); math.IsNaN(float64(s)) {
		t.Error("sample is NaN after wrap")
	}
}

func TestAccumulatorNoAllocsHotPath(t *testing.T) {
	acc := NewAccumulator(0.5)
	acc.SetIncrement(Increment(220, testSampleRate))

	allocs := testing.AllocsPerRun(100, func() {
		for range 48 {
			_ = acc.Sample()
			acc.Advance()
		}
	})
	if allocs > 0 {
		t.Errorf("accumulator allocated: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkAccumulatorBlock(b *testing.B) {
	acc := NewAccumulator(0.5)
	acc.SetIncrement(Increment(220, testSampleRate))
	out := make([]float32, 48)

	b.ReportAllocs()
	for b.Loop() {
		for i := range out {
			out[i] = acc.Sample()
			acc.Advance()
		}
	}
}
