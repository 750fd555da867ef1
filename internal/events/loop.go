// SPDX-License-Identifier: MIT
/*
Package events runs the cooperative event transport loop.

Each iteration polls the transport without blocking, drains every pending
record, forwards the forwarding-enabled types back out re-encoded on
channel 0, and appends every record to the Queue. Between iterations the
loop yields for the poll interval.
*/
package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	applog "pitchosc/internal/log"
	"pitchosc/internal/midi"
)

// Loop is driven by Run on one goroutine, or by calling Step directly.
// Counters may be read from any goroutine.
type Loop struct {
	transport midi.Transport
	queue     *Queue
	forward   [midi.TypeRealtime + 1]bool
	interval  time.Duration

	iterations atomic.Uint64
	handled    atomic.Uint64
	forwarded  atomic.Uint64
	sendErrors atomic.Uint64
}

// NewLoop builds a loop forwarding the given record types.
func NewLoop(t midi.Transport, q *Queue, forward []midi.Type, interval time.Duration) (*Loop, error) {
	if t == nil || q == nil {
		return nil, fmt.Errorf("events: transport and queue are required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("events: poll interval must be positive, got %s", interval)
	}

	l := &Loop{transport: t, queue: q, interval: interval}
	for _, typ := range forward {
		if int(typ) >= len(l.forward) || typ == midi.TypeInvalid {
			return nil, fmt.Errorf("events: cannot forward %s", typ)
		}
		l.forward[typ] = true
	}
	return l, nil
}

// Step runs one iteration and returns the number of records handled.
func (l *Loop) Step() int {
	l.iterations.Add(1)
	l.transport.Listen()

	n := 0
	for l.transport.HasPendingEvents() {
		l.handle(l.transport.PopEvent())
		n++
	}
	return n
}

func (l *Loop) handle(r midi.Record) {
	l.handled.Add(1)

	if int(r.Type) < len(l.forward) && l.forward[r.Type] {
		if err := l.transport.SendMessage(r.Outbound()); err != nil {
			if l.sendErrors.Add(1) == 1 {
				applog.Warnf("Events: failed to forward %s: %v", r.Type, err)
			}
		} else {
			l.forwarded.Add(1)
		}
	}

	if !l.queue.Push(r) {
		applog.Debugf("Events: queue full, dropped a record (%s policy)", l.queue.policy)
	}
}

// Run steps until ctx is cancelled, yielding for the poll interval between
// iterations. It returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	applog.Infof("Events: loop started (poll interval %s)", l.interval)
	defer applog.Infof("Events: loop stopped after %d iterations", l.iterations.Load())

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		l.Step()

		timer.Reset(l.interval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// Stats is a snapshot of the loop counters.
type Stats struct {
	Iterations uint64
	Handled    uint64
	Forwarded  uint64
	SendErrors uint64
}

func (l *Loop) Stats() Stats {
	return Stats{
		Iterations: l.iterations.Load(),
		Handled:    l.handled.Load(),
		Forwarded:  l.forwarded.Load(),
		SendErrors: l.sendErrors.Load(),
	}
}
