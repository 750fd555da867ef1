// SPDX-License-Identifier: MIT
/*
Package monitor relays tracker state and received events to the
monitoring transports.

On every interval the relay drains the event queue, reads the frequency
snapshot and sends one Report through its transport. It runs on its own
goroutine and never touches the audio callback.
*/
package monitor

import (
	"context"
	"errors"
	"time"

	"pitchosc/internal/audio"
	"pitchosc/internal/events"
	applog "pitchosc/internal/log"
	"pitchosc/internal/midi"
	"pitchosc/internal/pitch"
	"pitchosc/internal/transport"
)

// Event is the wire form of one received record.
type Event struct {
	Type    string `json:"type" msgpack:"type"`
	Channel uint8  `json:"channel" msgpack:"channel"`
	Data0   uint8  `json:"data0" msgpack:"data0"`
	Data1   uint8  `json:"data1" msgpack:"data1"`
}

// Report is one monitor message.
type Report struct {
	Timestamp   int64   `json:"ts" msgpack:"ts"`
	Frequency   float64 `json:"freq" msgpack:"freq"`
	Note        string  `json:"note,omitempty" msgpack:"note,omitempty"`
	Cents       float64 `json:"cents" msgpack:"cents"`
	Periodicity float64 `json:"periodicity" msgpack:"periodicity"`
	Detections  uint64  `json:"detections" msgpack:"detections"`
	GateOpen    bool    `json:"gate" msgpack:"gate"`

	Events       []Event `json:"events,omitempty" msgpack:"events,omitempty"`
	QueueLen     int     `json:"queue_len" msgpack:"queue_len"`
	QueueDropped uint64  `json:"queue_dropped" msgpack:"queue_dropped"`
	Discarded    uint64  `json:"discarded" msgpack:"discarded"`
	Forwarded    uint64  `json:"forwarded" msgpack:"forwarded"`
	SendErrors   uint64  `json:"send_errors" msgpack:"send_errors"`
}

// StatusSource publishes tracker status, typically an *audio.Snapshot.
type StatusSource interface {
	Load() audio.Status
}

// Options wires a relay. Out and Source are required; the event fields may
// be nil when no event transport is configured.
type Options struct {
	Source   StatusSource
	Out      transport.Transport
	Interval time.Duration

	Queue *events.Queue
	Loop  *events.Loop
	// TransportStats reports parser discards from the event transport.
	TransportStats func() midi.Stats
}

type Relay struct {
	opts    Options
	pending []midi.Record
	dropped uint64
	now     func() time.Time
}

func New(opts Options) (*Relay, error) {
	if opts.Source == nil {
		return nil, errors.New("monitor: status source cannot be nil")
	}
	if opts.Out == nil {
		return nil, errors.New("monitor: transport cannot be nil")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("monitor: interval must be positive")
	}

	r := &Relay{opts: opts, now: time.Now}
	if opts.Queue != nil {
		r.pending = make([]midi.Record, 0, opts.Queue.Cap())
	}
	return r, nil
}

// Report builds the next report, draining any queued events.
func (r *Relay) Report() Report {
	st := r.opts.Source.Load()
	rep := Report{
		Timestamp:   r.now().UnixNano(),
		Frequency:   st.Frequency,
		Periodicity: st.Periodicity,
		Detections:  st.Detections,
		GateOpen:    st.GateOpen,
	}
	if n, ok := pitch.NearestNote(st.Frequency); ok {
		rep.Note = n.Label()
		rep.Cents = n.Cents
	}

	if q := r.opts.Queue; q != nil {
		r.pending = q.Drain(r.pending[:0])
		if len(r.pending) > 0 {
			rep.Events = make([]Event, len(r.pending))
			for i, rec := range r.pending {
				rep.Events[i] = Event{
					Type:    rec.Type.String(),
					Channel: rec.Channel,
					Data0:   rec.Data0,
					Data1:   rec.Data1,
				}
			}
		}
		rep.QueueLen = q.Len()
		rep.QueueDropped = q.Dropped()
	}
	if r.opts.Loop != nil {
		ls := r.opts.Loop.Stats()
		rep.Forwarded = ls.Forwarded
		rep.SendErrors = ls.SendErrors
	}
	if r.opts.TransportStats != nil {
		rep.Discarded = r.opts.TransportStats().Discarded
	}
	return rep
}

// Run sends a report every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.send(r.Report())
		}
	}
}

func (r *Relay) send(rep Report) {
	for _, ev := range rep.Events {
		applog.Debugw("Monitor: event", "type", ev.Type, "channel", ev.Channel, "data0", ev.Data0, "data1", ev.Data1)
	}
	if rep.QueueDropped > r.dropped {
		applog.Warnf("Monitor: event queue dropped %d events", rep.QueueDropped-r.dropped)
		r.dropped = rep.QueueDropped
	}
	if err := r.opts.Out.Send(rep); err != nil {
		applog.Debugf("Monitor: send failed: %v", err)
	}
}
