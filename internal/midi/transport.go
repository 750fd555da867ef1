// SPDX-License-Identifier: MIT
package midi

import "errors"

// Transport is the event source and sink polled by the event loop.
// Listen must not block: it moves whatever has arrived since the last call
// into the pending set. HasPendingEvents and PopEvent then drain that set
// in arrival order.
type Transport interface {
	Listen()
	HasPendingEvents() bool
	PopEvent() Record
	SendMessage(msg []byte) error
}

// ErrClosed is returned by SendMessage after Close.
var ErrClosed = errors.New("midi: transport closed")

// Stats are counters kept by the concrete transports.
type Stats struct {
	Received  uint64 // records made available to the loop
	Dropped   uint64 // records or bytes lost to a full buffer
	Discarded uint64 // malformed input rejected by the parser
	Sent      uint64
}

// NullTransport never produces events and accepts every message.
type NullTransport struct{}

func (NullTransport) Listen()                   {}
func (NullTransport) HasPendingEvents() bool    { return false }
func (NullTransport) PopEvent() Record          { return Record{} }
func (NullTransport) SendMessage([]byte) error  { return nil }
func (NullTransport) Close() error              { return nil }
func (NullTransport) Stats() Stats              { return Stats{} }

var _ Transport = NullTransport{}
