// SPDX-License-Identifier: MIT
package midi

import "sync/atomic"

// Parser reassembles records from a serial MIDI byte stream. It honours
// running status, lets realtime bytes through mid-message and skips SysEx.
// Bytes that cannot form a message are dropped and counted; the parser
// resynchronises on the next status byte.
//
// Feed must be called from a single goroutine. Discarded may be read from
// any goroutine.
type Parser struct {
	status  byte // status of the message being assembled, 0 for none
	running bool // status persists after a complete message
	need    int
	n       int
	data    [2]byte
	inSysEx bool

	discarded atomic.Uint64
}

// Feed consumes one byte and returns the record it completes, if any.
func (p *Parser) Feed(b byte) (Record, bool) {
	switch {
	case b >= 0xF8:
		if b == 0xF9 || b == 0xFD {
			p.discard()
			return Record{}, false
		}
		return newRecord(b, [2]byte{}), true

	case b >= 0x80:
		return p.feedStatus(b)

	case p.inSysEx:
		return Record{}, false

	case p.status == 0:
		p.discard()
		return Record{}, false
	}

	p.data[p.n] = b
	p.n++
	if p.n < p.need {
		return Record{}, false
	}
	return p.complete(), true
}

func (p *Parser) feedStatus(b byte) (Record, bool) {
	if p.n > 0 {
		// Truncated by a new status.
		p.discard()
		p.n = 0
	}

	switch {
	case b == 0xF0:
		p.inSysEx = true
		p.status = 0
		p.discard()
		return Record{}, false
	case b == 0xF7:
		if !p.inSysEx {
			p.discard()
		}
		p.inSysEx = false
		return Record{}, false
	}
	p.inSysEx = false

	need, ok := dataLength(b)
	if !ok {
		// Undefined system common statuses also cancel running status.
		p.status = 0
		p.discard()
		return Record{}, false
	}

	p.status = b
	p.running = b < 0xF0
	p.need = need
	if need == 0 {
		return p.complete(), true
	}
	return Record{}, false
}

func (p *Parser) complete() Record {
	r := newRecord(p.status, p.data)
	p.n = 0
	p.data = [2]byte{}
	if !p.running {
		p.status = 0
	}
	return r
}

func (p *Parser) discard() { p.discarded.Add(1) }

// Discarded returns the number of dropped bytes, truncated messages and
// skipped SysEx messages.
func (p *Parser) Discarded() uint64 { return p.discarded.Load() }

// Reset drops any partial message and running status.
func (p *Parser) Reset() {
	p.status, p.running, p.need, p.n, p.inSysEx = 0, false, 0, 0, false
	p.data = [2]byte{}
}
