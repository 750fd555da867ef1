package utils

import (
	"math"
	"math/rand/v2"
)

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude, starting at phase zero.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexWave returns a fundamental with its second and third
// harmonics, peaking below amplitude.
func GenerateComplexWave(size int, sampleRate, fundamental, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*fundamental*tm)*0.5 +
			math.Sin(2*math.Pi*2*fundamental*tm)*0.3 +
			math.Sin(2*math.Pi*3*fundamental*tm)*0.2
		buffer[i] = float32(signal * amplitude)
	}
	return buffer
}

// GenerateNoise returns uniformly distributed white noise in
// [-amplitude, amplitude). The same seed always yields the same samples.
func GenerateNoise(size int, amplitude float64, seed uint64) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	buffer := make([]float32, size)
	for i := range buffer {
		buffer[i] = float32(amplitude * (2*rng.Float64() - 1))
	}
	return buffer
}

func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
