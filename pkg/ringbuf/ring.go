// SPDX-License-Identifier: MIT
/*
Package ringbuf implements a bounded single-producer/single-consumer ring.

Exactly one goroutine may call Push/PushSlice and exactly one goroutine may
call Pop/PopSlice. Under that contract no locks are taken: head and tail are
published with atomic loads and stores, so a producer running on the audio
callback thread never waits for the consumer. A full ring rejects writes
instead of blocking.
*/
package ringbuf

import (
	"sync/atomic"

	"pitchosc/pkg/bitint"
)

// Ring is a lock-free SPSC ring buffer with power-of-two capacity.
type Ring[T any] struct {
	buf  []T
	mask uint64

	head atomic.Uint64 // next slot to read, owned by consumer
	tail atomic.Uint64 // next slot to write, owned by producer
}

// New returns a ring able to hold at least capacity items.
func New[T any](capacity int) *Ring[T] {
	size := bitint.NextPowerOfTwo(capacity)
	return &Ring[T]{
		buf:  make([]T, size),
		mask: uint64(size - 1),
	}
}

// Cap returns the number of slots in the ring.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Len returns the number of items currently readable. The value is a
// snapshot and may be stale by the time the caller acts on it.
func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Push appends v. It returns false if the ring is full.
func (r *Ring[T]) Push(v T) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() == uint64(len(r.buf)) {
		return false
	}
	r.buf[tail&r.mask] = v
	r.tail.Store(tail + 1)
	return true
}

// PushSlice appends as many items of src as fit and returns that count.
func (r *Ring[T]) PushSlice(src []T) int {
	tail := r.tail.Load()
	free := uint64(len(r.buf)) - (tail - r.head.Load())
	n := uint64(len(src))
	if n > free {
		n = free
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(tail+i)&r.mask] = src[i]
	}
	r.tail.Store(tail + n)
	return int(n)
}

// Pop removes the oldest item. ok is false when the ring is empty.
func (r *Ring[T]) Pop() (v T, ok bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return v, false
	}
	v = r.buf[head&r.mask]
	r.head.Store(head + 1)
	return v, true
}

// PopSlice moves up to len(dst) items into dst and returns the count.
func (r *Ring[T]) PopSlice(dst []T) int {
	head := r.head.Load()
	avail := r.tail.Load() - head
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	for i := uint64(0); i < n; i++ {
		dst[i] = r.buf[(head+i)&r.mask]
	}
	r.head.Store(head + n)
	return int(n)
}
