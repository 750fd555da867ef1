// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "pitchosc/internal/log"
	"pitchosc/pkg/ringbuf"
)

const (
	recordChannels = 2
	pcmFormat      = 1
	flushInterval  = 10 * time.Millisecond
	flushFrames    = 4096
)

var ErrRecorderClosed = errors.New("audio: recorder closed")

// Recorder is a Tap that writes the stereo output to a WAV file. Write
// copies frames into a lock-free ring; a writer goroutine drains it into
// the encoder. Blocks that do not fit are dropped whole and counted.
type Recorder struct {
	ring    *ringbuf.Ring[float32]
	enc     *wav.Encoder
	out     io.Closer
	scale   float64
	peak    int
	scratch []float32
	buf     *audio.IntBuffer

	dropped atomic.Uint64
	frames  atomic.Uint64
	closed  atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
	errMu   sync.Mutex
	err     error
}

// NewRecorder encodes into w at the given rate and bit depth (16 or 24).
// capacity is the ring size in frames. If w is an io.Closer it is closed
// by Close.
func NewRecorder(w io.WriteSeeker, sampleRate, bitDepth, capacity int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if capacity < 1 {
		return nil, fmt.Errorf("invalid capacity %d", capacity)
	}

	peak := 1<<(bitDepth-1) - 1
	r := &Recorder{
		ring:    ringbuf.New[float32](capacity * recordChannels),
		enc:     wav.NewEncoder(w, sampleRate, bitDepth, recordChannels, pcmFormat),
		scale:   float64(peak),
		peak:    peak,
		scratch: make([]float32, flushFrames*recordChannels),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: recordChannels, SampleRate: sampleRate},
			Data:           make([]int, flushFrames*recordChannels),
			SourceBitDepth: bitDepth,
		},
		done: make(chan struct{}),
	}
	if c, ok := w.(io.Closer); ok {
		r.out = c
	}

	r.wg.Add(1)
	go r.drainLoop()
	return r, nil
}

// CreateRecorder creates path and records into it.
func CreateRecorder(path string, sampleRate, bitDepth, capacity int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	r, err := NewRecorder(f, sampleRate, bitDepth, capacity)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	applog.Infow("Audio: recording", "path", path, "bit_depth", bitDepth)
	return r, nil
}

// Write implements Tap. It is safe to call from the audio callback.
func (r *Recorder) Write(left, right []float32) {
	if r.closed.Load() {
		return
	}
	n := min(len(left), len(right))
	if r.ring.Cap()-r.ring.Len() < n*recordChannels {
		r.dropped.Add(uint64(n))
		return
	}
	for i := range n {
		r.ring.Push(left[i])
		r.ring.Push(right[i])
	}
}

func (r *Recorder) drainLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			r.flush()
			return
		case <-ticker.C:
			r.flush()
		}
	}
}

func (r *Recorder) flush() {
	for {
		n := r.ring.PopSlice(r.scratch)
		if n == 0 {
			return
		}
		n -= n % recordChannels
		for i, s := range r.scratch[:n] {
			v := int(math.Round(float64(s) * r.scale))
			r.buf.Data[i] = max(-r.peak-1, min(r.peak, v))
		}
		r.buf.Data = r.buf.Data[:n]
		if err := r.enc.Write(r.buf); err != nil {
			r.setErr(err)
		}
		r.buf.Data = r.buf.Data[:cap(r.buf.Data)]
		r.frames.Add(uint64(n / recordChannels))
	}
}

func (r *Recorder) setErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.err == nil {
		r.err = err
		applog.Errorf("Audio: recording write failed: %v", err)
	}
}

// Frames returns how many frames have been encoded so far.
func (r *Recorder) Frames() uint64 { return r.frames.Load() }

// Dropped returns how many frames were lost to a full ring.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Close drains the remaining frames, finalises the WAV header and closes
// the underlying file. Detach the recorder from the processor, or stop the
// stream, before calling Close.
func (r *Recorder) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrRecorderClosed
	}
	close(r.done)
	r.wg.Wait()

	err := r.enc.Close()
	if r.out != nil {
		err = errors.Join(err, r.out.Close())
	}

	r.errMu.Lock()
	err = errors.Join(r.err, err)
	r.errMu.Unlock()

	if d := r.dropped.Load(); d > 0 {
		applog.Warnf("Audio: recording dropped %d frames", d)
	}
	return err
}
