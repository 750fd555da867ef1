// SPDX-License-Identifier: MIT
package events

import (
	"fmt"
	"sync"

	"pitchosc/internal/config"
	"pitchosc/internal/midi"
)

// DropPolicy decides which record is lost when a full Queue receives
// another one.
type DropPolicy int

const (
	DropOldest DropPolicy = iota // evict the oldest queued record
	DropNewest                   // reject the incoming record
)

// ParseDropPolicy maps the configuration names "oldest" and "newest".
func ParseDropPolicy(name string) (DropPolicy, error) {
	switch name {
	case config.DropOldest:
		return DropOldest, nil
	case config.DropNewest:
		return DropNewest, nil
	}
	return DropOldest, fmt.Errorf("events: unknown drop policy %q", name)
}

func (p DropPolicy) String() string {
	if p == DropNewest {
		return config.DropNewest
	}
	return config.DropOldest
}

// Queue is a bounded FIFO of records. Storage is allocated once; Push and
// Drain are safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	buf     []midi.Record
	head    int
	n       int
	policy  DropPolicy
	pushed  uint64
	dropped uint64
}

// NewQueue allocates a queue holding up to capacity records.
func NewQueue(capacity int, policy DropPolicy) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("events: queue capacity must be positive, got %d", capacity)
	}
	return &Queue{buf: make([]midi.Record, capacity), policy: policy}, nil
}

// Push appends r. It returns false when the queue was full and a record was
// dropped, either r itself or the oldest one, depending on the policy.
func (q *Queue) Push(r midi.Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pushed++
	if q.n < len(q.buf) {
		q.buf[(q.head+q.n)%len(q.buf)] = r
		q.n++
		return true
	}

	q.dropped++
	if q.policy == DropOldest {
		q.buf[q.head] = r
		q.head = (q.head + 1) % len(q.buf)
	}
	return false
}

// Drain appends every queued record to dst in insertion order, empties the
// queue and returns the extended slice.
func (q *Queue) Drain(dst []midi.Record) []midi.Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.n {
		dst = append(dst, q.buf[(q.head+i)%len(q.buf)])
	}
	q.head, q.n = 0, 0
	return dst
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *Queue) Cap() int { return len(q.buf) }

// Dropped returns the number of records lost to overflow.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Pushed returns the number of Push calls.
func (q *Queue) Pushed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}
