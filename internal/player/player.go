// SPDX-License-Identifier: MIT
/*
Package player streams a WAV file as the pass-through source for the right
output channel.

Files are decoded completely by Open, off the audio thread. The decoded clip
is then published with an atomic pointer swap, so NextSample only ever
reads memory that is already in place.
*/
package player

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	applog "pitchosc/internal/log"
)

var ErrNoSuchFile = errors.New("player: no such file index")

// voice is one playback of a clip. pos is only touched by NextSample.
type voice struct {
	name    string
	samples []float32
	pos     int
}

type Player struct {
	dir        string
	files      []string
	sampleRate int

	current atomic.Pointer[voice]
	looping atomic.Bool
	ended   atomic.Bool
}

// New scans dir for .wav files and sorts them by name. sampleRate is the
// stream rate; files at another rate play at the wrong speed and are
// reported when opened.
func New(dir string, sampleRate int) (*Player, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)

	applog.Debugf("Player: found %d WAV files in %s", len(files), dir)
	return &Player{dir: dir, files: files, sampleRate: sampleRate}, nil
}

// Files returns the playable files in index order.
func (p *Player) Files() []string { return slices.Clone(p.files) }

// Open decodes file index and starts it from the beginning, replacing any
// clip already playing. Multi-channel files play their last channel.
func (p *Player) Open(index int) error {
	if index < 0 || index >= len(p.files) {
		return fmt.Errorf("%w: %d of %d", ErrNoSuchFile, index, len(p.files))
	}

	clip, err := LoadWAV(p.files[index])
	if err != nil {
		return err
	}
	if clip.SampleRate != p.sampleRate {
		applog.Warnf("Player: %s is %d Hz, stream is %d Hz", filepath.Base(clip.Name), clip.SampleRate, p.sampleRate)
	}

	p.ended.Store(false)
	p.current.Store(&voice{
		name:    filepath.Base(clip.Name),
		samples: clip.Channel(len(clip.Channels) - 1),
	})
	applog.Infof("Player: playing %s (%d frames)", filepath.Base(clip.Name), clip.Frames())
	return nil
}

// SetLooping selects whether playback restarts at the end of the clip.
func (p *Player) SetLooping(loop bool) { p.looping.Store(loop) }

func (p *Player) Looping() bool { return p.looping.Load() }

// Stop silences the player.
func (p *Player) Stop() { p.current.Store(nil) }

// NextSample returns the next sample of the current clip, or silence when
// nothing is playing. Called from the audio thread only.
func (p *Player) NextSample() float32 {
	v := p.current.Load()
	if v == nil || len(v.samples) == 0 {
		return 0
	}

	if v.pos >= len(v.samples) {
		if !p.looping.Load() {
			p.ended.Store(true)
			return 0
		}
		v.pos = 0
	}
	s := v.samples[v.pos]
	v.pos++
	return s
}

// Playing returns the name of the current clip.
func (p *Player) Playing() (string, bool) {
	v := p.current.Load()
	if v == nil {
		return "", false
	}
	return v.name, true
}

// Ended reports whether a non-looping clip has played to its end.
func (p *Player) Ended() bool { return p.ended.Load() }
