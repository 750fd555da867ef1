// SPDX-License-Identifier: MIT
/*
Package midi turns MIDI byte streams and driver ports into event records
and sends messages back out.

A Record is the parsed form of one message. Channel voice records carry the
channel and up to two data bytes verbatim; system realtime and system common
records keep their status byte. Outbound messages are built with
gitlab.com/gomidi/midi/v2.
*/
package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Type classifies a Record.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeNoteOff
	TypeNoteOn
	TypePolyPressure
	TypeControlChange
	TypeProgramChange
	TypeChannelPressure
	TypePitchBend
	TypeSystemCommon
	TypeRealtime
)

var typeNames = [...]string{
	TypeInvalid:         "invalid",
	TypeNoteOff:         "note_off",
	TypeNoteOn:          "note_on",
	TypePolyPressure:    "poly_pressure",
	TypeControlChange:   "control_change",
	TypeProgramChange:   "program_change",
	TypeChannelPressure: "channel_pressure",
	TypePitchBend:       "pitch_bend",
	TypeSystemCommon:    "system_common",
	TypeRealtime:        "realtime",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseType maps a configuration name such as "note_on" to a Type.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name && Type(i) != TypeInvalid {
			return Type(i), nil
		}
	}
	return TypeInvalid, fmt.Errorf("midi: unknown event type %q", name)
}

// ParseTypes maps every name, failing on the first unknown one.
func ParseTypes(names []string) ([]Type, error) {
	types := make([]Type, 0, len(names))
	for _, n := range names {
		t, err := ParseType(n)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// Record is one parsed event.
type Record struct {
	Type    Type
	Channel uint8 // 0-15, channel voice only
	Data0   uint8
	Data1   uint8
	Status  uint8 // status byte for system records
}

// voiceTypes indexes channel voice types by the status high nibble.
var voiceTypes = [8]Type{
	TypeNoteOff, TypeNoteOn, TypePolyPressure, TypeControlChange,
	TypeProgramChange, TypeChannelPressure, TypePitchBend,
}

// dataLength returns the data bytes following a channel voice or system
// common status, and false for statuses that carry no fixed payload.
func dataLength(status byte) (int, bool) {
	switch {
	case status >= 0x80 && status < 0xF0:
		switch status & 0xF0 {
		case 0xC0, 0xD0:
			return 1, true
		default:
			return 2, true
		}
	case status == 0xF1, status == 0xF3:
		return 1, true
	case status == 0xF2:
		return 2, true
	case status == 0xF6:
		return 0, true
	}
	return 0, false
}

// newRecord builds a record from a status and its data bytes.
func newRecord(status byte, data [2]byte) Record {
	if status >= 0xF0 {
		t := TypeSystemCommon
		if status >= 0xF8 {
			t = TypeRealtime
		}
		return Record{Type: t, Status: status, Data0: data[0], Data1: data[1]}
	}

	r := Record{
		Type:    voiceTypes[(status>>4)&0x07],
		Channel: status & 0x0F,
		Data0:   data[0],
		Data1:   data[1],
	}
	// Note-on with velocity zero is a note-off.
	if r.Type == TypeNoteOn && r.Data1 == 0 {
		r.Type = TypeNoteOff
	}
	return r
}

// Decode parses a single complete message, as delivered by a driver port.
func Decode(b []byte) (Record, bool) {
	if len(b) == 0 || b[0] < 0x80 {
		return Record{}, false
	}
	status := b[0]
	if status >= 0xF8 {
		return newRecord(status, [2]byte{}), true
	}
	n, ok := dataLength(status)
	if !ok || len(b) < 1+n {
		return Record{}, false
	}

	var data [2]byte
	for i := range n {
		if b[1+i] >= 0x80 {
			return Record{}, false
		}
		data[i] = b[1+i]
	}
	return newRecord(status, data), true
}

// Message encodes r as it would appear on the wire.
func (r Record) Message() gomidi.Message {
	ch := r.Channel & 0x0F
	switch r.Type {
	case TypeNoteOn:
		return gomidi.NoteOn(ch, r.Data0, r.Data1)
	case TypeNoteOff:
		return gomidi.Message{0x80 | ch, r.Data0, r.Data1}
	case TypePolyPressure:
		return gomidi.PolyAfterTouch(ch, r.Data0, r.Data1)
	case TypeControlChange:
		return gomidi.ControlChange(ch, r.Data0, r.Data1)
	case TypeProgramChange:
		return gomidi.ProgramChange(ch, r.Data0)
	case TypeChannelPressure:
		return gomidi.AfterTouch(ch, r.Data0)
	case TypePitchBend:
		return gomidi.Message{0xE0 | ch, r.Data0, r.Data1}
	case TypeRealtime:
		return gomidi.Message{r.Status}
	case TypeSystemCommon:
		n, _ := dataLength(r.Status)
		return append(gomidi.Message{r.Status}, []byte{r.Data0, r.Data1}[:n]...)
	}
	return nil
}

// Outbound is the message relayed to the transport output: the record
// re-encoded on channel 0 with its data bytes unchanged.
func (r Record) Outbound() gomidi.Message {
	r.Channel = 0
	return r.Message()
}

// PitchBend returns the signed 14-bit bend value, centred on zero.
func (r Record) PitchBend() int16 {
	return int16(uint16(r.Data1)<<7|uint16(r.Data0)) - 8192
}

func (r Record) String() string {
	if msg := r.Message(); msg != nil {
		return msg.String()
	}
	return r.Type.String()
}
