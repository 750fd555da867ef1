// SPDX-License-Identifier: MIT
package player

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

var ErrInvalidWAV = errors.New("player: not a valid WAV file")

// Clip is a decoded WAV file with one float32 slice per channel, scaled to
// [-1, 1).
type Clip struct {
	Name       string
	SampleRate int
	Channels   [][]float32
}

// Frames returns the clip length in samples per channel.
func (c *Clip) Frames() int {
	if len(c.Channels) == 0 {
		return 0
	}
	return len(c.Channels[0])
}

// Channel returns channel i, or the last channel when i is out of range.
func (c *Clip) Channel(i int) []float32 {
	if len(c.Channels) == 0 {
		return nil
	}
	return c.Channels[min(i, len(c.Channels)-1)]
}

// DecodeWAV reads an entire PCM WAV stream.
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode PCM data: %w", err)
	}

	channels := buf.Format.NumChannels
	depth := buf.SourceBitDepth
	if channels <= 0 || depth <= 0 {
		return nil, ErrInvalidWAV
	}

	scale := 1 / float32(int64(1)<<(depth-1))
	frames := len(buf.Data) / channels
	clip := &Clip{
		SampleRate: buf.Format.SampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := range clip.Channels {
		clip.Channels[ch] = make([]float32, frames)
	}
	for i := range frames {
		for ch := range channels {
			clip.Channels[ch][i] = float32(buf.Data[i*channels+ch]) * scale
		}
	}
	return clip, nil
}

// LoadWAV decodes the file at path.
func LoadWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	clip, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	clip.Name = path
	return clip, nil
}
