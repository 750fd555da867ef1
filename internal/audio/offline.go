// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"

	"pitchosc/internal/config"
)

// Render runs the tracker over left and right without an audio device,
// block by block exactly as the stream callback would. It returns the
// output channels and the processor so callers can inspect its state.
func Render(cfg *config.Config, left, right []float32) (outL, outR []float32, proc *BlockProcessor, err error) {
	proc, err = NewTracker(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	frames := len(left)
	outL = make([]float32, frames)
	outR = make([]float32, frames)
	block := cfg.Audio.BlockSize

	for start := 0; start < frames; start += block {
		end := min(start+block, frames)
		var inR []float32
		if end <= len(right) {
			inR = right[start:end]
		}
		proc.ProcessBlock(left[start:end], inR, outL[start:end], outR[start:end])
	}
	return outL, outR, proc, nil
}

// WriteWAV writes a stereo file through a Recorder sized to hold all of it.
func WriteWAV(path string, sampleRate, bitDepth int, left, right []float32) error {
	if len(left) != len(right) {
		return fmt.Errorf("channel length mismatch: %d != %d", len(left), len(right))
	}
	rec, err := CreateRecorder(path, sampleRate, bitDepth, max(len(left), 1))
	if err != nil {
		return err
	}
	rec.Write(left, right)
	return rec.Close()
}
