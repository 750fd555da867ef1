// SPDX-License-Identifier: MIT
package pitch

import (
	"fmt"
	"math"
	"testing"

	"pitchosc/internal/dsp"
	"pitchosc/pkg/utils"
)

const sampleRate = 48000

func testOptions() Options {
	return Options{
		SampleRate:       sampleRate,
		LowestFrequency:  65.41,
		HighestFrequency: 523.25,
		Periodicity:      0.85,
		Hysteresis:       0.1,
	}
}

func mustDetector(t testing.TB) *Detector {
	t.Helper()
	d, err := New(testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

// feed runs samples through d and returns every accepted frequency.
func feed(d *Detector, samples []float32) []float64 {
	var got []float64
	for _, s := range samples {
		if d.Observe(s) {
			got = append(got, d.Frequency())
		}
	}
	return got
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"zero sample rate", func(o *Options) { o.SampleRate = 0 }},
		{"inverted range", func(o *Options) { o.LowestFrequency, o.HighestFrequency = 500, 100 }},
		{"above nyquist", func(o *Options) { o.HighestFrequency = 24000 }},
		{"zero periodicity", func(o *Options) { o.Periodicity = 0 }},
		{"periodicity above one", func(o *Options) { o.Periodicity = 1.5 }},
		{"negative hysteresis", func(o *Options) { o.Hysteresis = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(&opts)
			if _, err := New(opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWindowGeometry(t *testing.T) {
	d := mustDetector(t)

	if got := d.WindowSize(); got != 1536 {
		t.Errorf("WindowSize() = %d, want 1536", got)
	}
	lo, hi := d.PeriodRange()
	if lo != 91 || hi != 734 {
		t.Errorf("PeriodRange() = (%d, %d), want (91, 734)", lo, hi)
	}
	if d.WindowSize()%128 != 0 {
		t.Errorf("window %d is not a multiple of 128", d.WindowSize())
	}
}

func TestDetectsSinesAcrossRange(t *testing.T) {
	for f := 70.0; f <= 510; f += 20 {
		t.Run(fmt.Sprintf("%.0fHz", f), func(t *testing.T) {
			d := mustDetector(t)
			got := feed(d, utils.GenerateSineWave(sampleRate/4, sampleRate, f, 1))

			if len(got) == 0 {
				t.Fatalf("no detection in 250ms")
			}
			for i, g := range got {
				if math.Abs(g-f)/f > 0.01 {
					t.Errorf("detection %d = %.2f Hz, want %.2f ±1%%", i, g, f)
				}
			}
		})
	}
}

// conditioned runs samples through the default pre-processor chain.
func conditioned(t *testing.T, samples []float32) []float32 {
	t.Helper()
	opts := testOptions()
	pre, err := dsp.NewPreprocessor(dsp.Options{
		SampleRate:       opts.SampleRate,
		LowestFrequency:  opts.LowestFrequency,
		HighestFrequency: opts.HighestFrequency,
		GateOnsetDB:      -45,
		GateReleaseDB:    -60,
		Attack:           0.001,
		Release:          0.05,
	})
	if err != nil {
		t.Fatalf("NewPreprocessor: %v", err)
	}
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = pre.Process(s)
	}
	return out
}

func TestDetectsRangeEdges(t *testing.T) {
	opts := testOptions()
	tests := []struct {
		name string
		freq float64
	}{
		{"lowest", opts.LowestFrequency},
		{"just above lowest", opts.LowestFrequency + 1},
		{"just below highest", opts.HighestFrequency - 5},
		{"highest", opts.HighestFrequency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustDetector(t)
			got := feed(d, conditioned(t, utils.GenerateSineWave(sampleRate/2, sampleRate, tt.freq, 0.5)))

			if len(got) == 0 {
				t.Fatal("no detection in 500ms")
			}
			for i, g := range got {
				if g < opts.LowestFrequency || g > opts.HighestFrequency {
					t.Errorf("detection %d = %.2f Hz outside [%v, %v]", i, g, opts.LowestFrequency, opts.HighestFrequency)
				}
			}
			if last := got[len(got)-1]; math.Abs(last-tt.freq)/tt.freq > 0.01 {
				t.Errorf("detected %.2f Hz, want %.2f ±1%%", last, tt.freq)
			}
		})
	}
}

func TestAboveRangeIsSuppressed(t *testing.T) {
	for _, f := range []float64{600, 700, 900, 1200, 2000} {
		t.Run(fmt.Sprintf("%.0fHz", f), func(t *testing.T) {
			d := mustDetector(t)
			tone := utils.GenerateSineWave(sampleRate/2, sampleRate, f, 0.5)

			if got := feed(d, tone); len(got) != 0 {
				t.Errorf("raw tone detected as %v", got)
			}
			if got := feed(d, conditioned(t, tone)); len(got) != 0 {
				t.Errorf("conditioned tone detected as %v", got)
			}
			if d.Frequency() != 0 {
				t.Errorf("Frequency() = %v, want 0", d.Frequency())
			}
		})
	}
}

func TestAboveRangeKeepsLastFrequency(t *testing.T) {
	d := mustDetector(t)
	feed(d, utils.GenerateSineWave(sampleRate/4, sampleRate, 220, 1))
	feed(d, make([]float32, d.WindowSize()))
	before := d.Frequency()
	if before == 0 {
		t.Fatal("no detection of the in-range tone")
	}
	count := d.Detections()

	if got := feed(d, utils.GenerateSineWave(sampleRate/2, sampleRate, 600, 1)); len(got) != 0 {
		t.Errorf("600 Hz tone produced detections %v", got)
	}
	if d.Frequency() != before || d.Detections() != count {
		t.Errorf("Frequency() = %v after 600 Hz, want %v", d.Frequency(), before)
	}
}

func TestDetectsHarmonicTone(t *testing.T) {
	for _, f := range []float64{82.41, 110, 146.83, 196} {
		t.Run(fmt.Sprintf("%.2fHz", f), func(t *testing.T) {
			d := mustDetector(t)
			got := feed(d, utils.GenerateComplexWave(sampleRate/4, sampleRate, f, 1))

			if len(got) == 0 {
				t.Fatal("no detection")
			}
			last := got[len(got)-1]
			if math.Abs(last-f)/f > 0.01 {
				t.Errorf("detected %.2f Hz, want %.2f", last, f)
			}
		})
	}
}

func TestSilenceProducesNoDetection(t *testing.T) {
	d := mustDetector(t)

	if got := feed(d, make([]float32, sampleRate)); len(got) != 0 {
		t.Errorf("got %d detections on silence", len(got))
	}
	if d.Frequency() != 0 {
		t.Errorf("Frequency() = %v, want sentinel 0", d.Frequency())
	}
}

func TestNoiseProducesNoDetection(t *testing.T) {
	d := mustDetector(t)

	if got := feed(d, utils.GenerateNoise(sampleRate, 1, 7)); len(got) != 0 {
		t.Errorf("got %d detections on white noise: %v", len(got), got)
	}
	if d.Periodicity() >= 0.85 {
		t.Errorf("Periodicity() = %.3f on noise", d.Periodicity())
	}
}

func TestBelowRangeIsSuppressed(t *testing.T) {
	d := mustDetector(t)

	if got := feed(d, utils.GenerateSineWave(sampleRate, sampleRate, 40, 1)); len(got) != 0 {
		t.Errorf("got detections %v for a 40 Hz tone", got)
	}
	if d.Frequency() != 0 {
		t.Errorf("Frequency() = %v, want 0", d.Frequency())
	}
}

func TestRetainsFrequencyAcrossSilence(t *testing.T) {
	d := mustDetector(t)
	feed(d, utils.GenerateSineWave(sampleRate/4, sampleRate, 220, 1))

	before := d.Frequency()
	if before == 0 {
		t.Fatal("no detection before silence")
	}

	// Flush the tone out of the window before checking.
	feed(d, make([]float32, d.WindowSize()))
	count := d.Detections()

	if got := feed(d, make([]float32, sampleRate/2)); len(got) != 0 {
		t.Errorf("silence produced detections %v", got)
	}
	if d.Frequency() == 0 || math.Abs(d.Frequency()-before)/before > 0.01 {
		t.Errorf("Frequency() = %v after silence, want ~%v", d.Frequency(), before)
	}
	if d.Detections() != count {
		t.Errorf("Detections() changed during silence")
	}
}

func TestRepeatedWindowsConverge(t *testing.T) {
	d := mustDetector(t)
	got := feed(d, utils.GenerateSineWave(sampleRate, sampleRate, 261.63, 1))

	if len(got) < 10 {
		t.Fatalf("only %d detections in one second", len(got))
	}
	// Steady state estimates stay within 0.5% of each other.
	tail := got[len(got)/2:]
	lo, hi := tail[0], tail[0]
	for _, g := range tail {
		lo, hi = min(lo, g), max(hi, g)
	}
	if (hi-lo)/lo > 0.005 {
		t.Errorf("estimates spread %.3f..%.3f Hz", lo, hi)
	}
}

func TestDetectionCadence(t *testing.T) {
	d := mustDetector(t)
	samples := utils.GenerateSineWave(sampleRate, sampleRate, 220, 1)

	var at []int
	for i, s := range samples {
		if d.Observe(s) {
			at = append(at, i)
		}
	}
	if len(at) < 2 {
		t.Fatalf("only %d detections", len(at))
	}
	if at[0] != d.WindowSize()-1 {
		t.Errorf("first detection at sample %d, want %d", at[0], d.WindowSize()-1)
	}
	for i := 1; i < len(at); i++ {
		if gap := at[i] - at[i-1]; gap != d.WindowSize()/2 {
			t.Fatalf("gap between detections %d, want %d", gap, d.WindowSize()/2)
		}
	}
}

func TestResetForgetsFrequency(t *testing.T) {
	d := mustDetector(t)
	feed(d, utils.GenerateSineWave(sampleRate/4, sampleRate, 330, 1))
	if d.Frequency() == 0 {
		t.Fatal("no detection")
	}

	d.Reset()
	if d.Frequency() != 0 || d.Detections() != 0 {
		t.Errorf("Reset left frequency %v, detections %d", d.Frequency(), d.Detections())
	}
}

func TestObserveNoAllocs(t *testing.T) {
	d := mustDetector(t)
	samples := utils.GenerateSineWave(d.WindowSize()*2, sampleRate, 220, 1)

	allocs := testing.AllocsPerRun(10, func() {
		for _, s := range samples {
			d.Observe(s)
		}
	})
	if allocs > 0 {
		t.Errorf("Observe allocated: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkObserve(b *testing.B) {
	d := mustDetector(b)
	samples := utils.GenerateSineWave(d.WindowSize(), sampleRate, 220, 1)

	b.ReportAllocs()
	for b.Loop() {
		for _, s := range samples {
			d.Observe(s)
		}
	}
}
