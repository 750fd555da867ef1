// SPDX-License-Identifier: MIT
package midi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	applog "pitchosc/internal/log"
	"pitchosc/pkg/ringbuf"
)

// StreamTransport reads raw MIDI bytes from an io.Reader, such as a UART
// device node, and writes outbound messages to an io.Writer.
//
// A reader goroutine moves bytes into a lock-free ring; Listen parses them
// on the loop goroutine. Listen, HasPendingEvents and PopEvent must all be
// called from that one goroutine.
type StreamTransport struct {
	r io.Reader
	w io.Writer

	bytes   *ringbuf.Ring[byte]
	records *ringbuf.Ring[Record]
	parser  Parser
	scratch []byte

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}
	readErr atomic.Pointer[error]

	received atomic.Uint64
	dropped  atomic.Uint64
	sent     atomic.Uint64
}

const readChunk = 256

// NewStreamTransport starts reading from r. capacity bounds both the byte
// ring and the parsed record ring. w may be nil for a receive-only stream.
func NewStreamTransport(r io.Reader, w io.Writer, capacity int) *StreamTransport {
	t := &StreamTransport{
		r:       r,
		w:       w,
		bytes:   ringbuf.New[byte](capacity * 3),
		records: ringbuf.New[Record](capacity),
		scratch: make([]byte, readChunk),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// OpenSerial opens a serial device node read-write. Line settings such as
// the 31250 baud rate are left to the device configuration.
func OpenSerial(path string, capacity int) (*StreamTransport, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open MIDI device %q: %w", path, err)
	}
	applog.Infof("MIDI: reading serial stream from %s", path)
	return NewStreamTransport(f, f, capacity), nil
}

func (t *StreamTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, readChunk)
	for {
		n, err := t.r.Read(buf)
		if n > 0 {
			if pushed := t.bytes.PushSlice(buf[:n]); pushed < n {
				t.dropped.Add(uint64(n - pushed))
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !t.closed.Load() {
				applog.Warnf("MIDI: stream read error: %v", err)
			}
			t.readErr.Store(&err)
			return
		}
	}
}

// Listen parses every byte received since the last call.
func (t *StreamTransport) Listen() {
	for {
		n := t.bytes.PopSlice(t.scratch)
		if n == 0 {
			return
		}
		for _, b := range t.scratch[:n] {
			r, ok := t.parser.Feed(b)
			if !ok {
				continue
			}
			if !t.records.Push(r) {
				t.dropped.Add(1)
				continue
			}
			t.received.Add(1)
		}
	}
}

func (t *StreamTransport) HasPendingEvents() bool { return t.records.Len() > 0 }

// PopEvent returns the oldest pending record, or the zero Record if none.
func (t *StreamTransport) PopEvent() Record {
	r, _ := t.records.Pop()
	return r
}

// SendMessage writes msg to the stream output.
func (t *StreamTransport) SendMessage(msg []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if t.w == nil {
		return errors.New("midi: stream has no output")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.w.Write(msg); err != nil {
		return fmt.Errorf("failed to write MIDI message: %w", err)
	}
	t.sent.Add(1)
	return nil
}

// Err returns the error that ended the reader goroutine, if it has ended.
func (t *StreamTransport) Err() error {
	if p := t.readErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Done is closed when the reader goroutine exits.
func (t *StreamTransport) Done() <-chan struct{} { return t.done }

func (t *StreamTransport) Stats() Stats {
	return Stats{
		Received:  t.received.Load(),
		Dropped:   t.dropped.Load(),
		Discarded: t.parser.Discarded(),
		Sent:      t.sent.Load(),
	}
}

// Close closes the underlying reader and writer when they are io.Closers.
// A blocked Read only returns once its reader is closed.
func (t *StreamTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	var errs []error
	if c, ok := t.r.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := t.w.(io.Closer); ok && any(t.w) != any(t.r) {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

var _ Transport = (*StreamTransport)(nil)
