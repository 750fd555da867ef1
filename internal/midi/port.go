// SPDX-License-Identifier: MIT
package midi

import (
	"errors"
	"fmt"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	applog "pitchosc/internal/log"
	"pitchosc/pkg/ringbuf"
)

// PortTransport listens on a driver input port and sends to the output
// port of the same name. A driver must be registered by the program, for
// example by importing gitlab.com/gomidi/midi/v2/drivers/rtmididrv.
//
// The driver callback is the only producer of the record ring, so Listen
// has nothing to do beyond what HasPendingEvents already observes.
type PortTransport struct {
	name    string
	in      drivers.In
	out     drivers.Out
	stop    func()
	send    func(gomidi.Message) error
	records *ringbuf.Ring[Record]

	closed    atomic.Bool
	received  atomic.Uint64
	dropped   atomic.Uint64
	discarded atomic.Uint64
	sent      atomic.Uint64
}

// InPorts lists the names of the driver's input ports.
func InPorts() []string {
	var names []string
	for _, in := range gomidi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// OpenPort connects to the named port. An input port is required; a
// missing output port leaves the transport receive-only.
func OpenPort(name string, capacity int) (*PortTransport, error) {
	in, err := gomidi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find MIDI input %q: %w", name, err)
	}

	t := &PortTransport{
		name:    name,
		in:      in,
		records: ringbuf.New[Record](capacity),
	}

	if out, err := gomidi.FindOutPort(name); err == nil {
		send, err := gomidi.SendTo(out)
		if err != nil {
			return nil, fmt.Errorf("failed to open MIDI output %q: %w", name, err)
		}
		t.out, t.send = out, send
	} else {
		applog.Warnf("MIDI: no output port %q, forwarding disabled", name)
	}

	stop, err := gomidi.ListenTo(in, t.receive, gomidi.HandleError(func(err error) {
		applog.Warnf("MIDI: listener error on %q: %v", name, err)
	}))
	if err != nil {
		if t.out != nil {
			_ = t.out.Close()
		}
		return nil, fmt.Errorf("failed to listen on MIDI input %q: %w", name, err)
	}
	t.stop = stop

	applog.Infof("MIDI: connected to port %q", name)
	return t, nil
}

// receive runs on the driver's callback goroutine.
func (t *PortTransport) receive(msg gomidi.Message, _ int32) {
	r, ok := Decode(msg)
	if !ok {
		t.discarded.Add(1)
		return
	}
	if !t.records.Push(r) {
		t.dropped.Add(1)
		return
	}
	t.received.Add(1)
}

func (t *PortTransport) Listen() {}

func (t *PortTransport) HasPendingEvents() bool { return t.records.Len() > 0 }

func (t *PortTransport) PopEvent() Record {
	r, _ := t.records.Pop()
	return r
}

func (t *PortTransport) SendMessage(msg []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if t.send == nil {
		return fmt.Errorf("midi: port %q has no output", t.name)
	}
	if err := t.send(gomidi.Message(msg)); err != nil {
		return fmt.Errorf("failed to send MIDI message: %w", err)
	}
	t.sent.Add(1)
	return nil
}

func (t *PortTransport) Stats() Stats {
	return Stats{
		Received:  t.received.Load(),
		Dropped:   t.dropped.Load(),
		Discarded: t.discarded.Load(),
		Sent:      t.sent.Load(),
	}
}

func (t *PortTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.stop != nil {
		t.stop()
	}

	var errs []error
	if t.in != nil {
		errs = append(errs, t.in.Close())
	}
	if t.out != nil {
		errs = append(errs, t.out.Close())
	}
	return errors.Join(errs...)
}

var _ Transport = (*PortTransport)(nil)
