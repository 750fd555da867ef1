// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"pitchosc/internal/audio"
	applog "pitchosc/internal/log"
)

// PacketSize is the length of a frequency packet in bytes.
const PacketSize = 4 + 8 + 4 + 4

var ErrShortPacket = errors.New("udp: short packet")

/*
Frequency Packet (BigEndian)

|<- 4 Bytes ->|<--- 8 Bytes --->|<- 4 Bytes ->|<- 4 Bytes ->|
+-------------+-----------------+-------------+-------------+
|  Sequence   |    Timestamp    |  Frequency  | Detections  |
|  (uint32)   | (int64, ns UTC) |  (float32)  |  (uint32)   |
+-------------+-----------------+-------------+-------------+
*/

// Packet is one decoded frequency packet.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	Frequency  float32
	Detections uint32
}

// AppendPacket appends the wire form of p to dst.
func AppendPacket(dst []byte, p Packet) []byte {
	dst = binary.BigEndian.AppendUint32(dst, p.Sequence)
	dst = binary.BigEndian.AppendUint64(dst, uint64(p.Timestamp))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(p.Frequency))
	dst = binary.BigEndian.AppendUint32(dst, p.Detections)
	return dst
}

// DecodePacket parses a frequency packet. Trailing bytes are ignored.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < PacketSize {
		return Packet{}, ErrShortPacket
	}
	return Packet{
		Sequence:   binary.BigEndian.Uint32(b[0:4]),
		Timestamp:  int64(binary.BigEndian.Uint64(b[4:12])),
		Frequency:  math.Float32frombits(binary.BigEndian.Uint32(b[12:16])),
		Detections: binary.BigEndian.Uint32(b[16:20]),
	}, nil
}

// StatusSource is anything publishing tracker status, typically an
// *audio.Snapshot.
type StatusSource interface {
	Load() audio.Status
}

// PacketSender is the part of Sender the publisher needs.
type PacketSender interface {
	SendBytes(data []byte) error
}

// Publisher periodically sends the tracked frequency as a fixed-size
// binary packet. It runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	sender   PacketSender
	source   StatusSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32
	packet      []byte
	now         func() time.Time
}

// NewPublisher creates a publisher sending every interval. A non-positive
// interval defaults to 33ms.
func NewPublisher(interval time.Duration, sender PacketSender, source StatusSource) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("Publisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("Publisher: status source cannot be nil")
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
		applog.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}

	return &Publisher{
		sender:   sender,
		source:   source,
		interval: interval,
		packet:   make([]byte, 0, PacketSize),
		now:      time.Now,
	}, nil
}

// Start launches the publishing goroutine. Calling Start on a running
// publisher is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("Publisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("Publisher: Started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine to exit and waits for it. Safe to call more
// than once.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("Publisher: Stopped after %d packets", p.sequenceNum)
	return nil
}

// publish builds and sends one packet. Only called from the publisher
// goroutine.
func (p *Publisher) publish() {
	st := p.source.Load()
	p.sequenceNum++
	p.packet = AppendPacket(p.packet[:0], Packet{
		Sequence:   p.sequenceNum,
		Timestamp:  p.now().UnixNano(),
		Frequency:  float32(st.Frequency),
		Detections: uint32(st.Detections),
	})

	if err := p.sender.SendBytes(p.packet); err != nil {
		return
	}
	applog.Debugf("Publisher: Sent packet %d (%.2f Hz)", p.sequenceNum, st.Frequency)
}

// Close stops the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
