// SPDX-License-Identifier: MIT
package midi

import (
	"bytes"
	"io"
	"slices"
	"sync"
	"testing"
	"time"
)

func parseAll(p *Parser, stream []byte) []Record {
	var out []Record
	for _, b := range stream {
		if r, ok := p.Feed(b); ok {
			out = append(out, r)
		}
	}
	return out
}

func TestParser(t *testing.T) {
	tests := []struct {
		name      string
		stream    []byte
		want      []Record
		discarded uint64
	}{
		{
			name:   "note on",
			stream: []byte{0x92, 60, 100},
			want:   []Record{{Type: TypeNoteOn, Channel: 2, Data0: 60, Data1: 100}},
		},
		{
			name:   "running status",
			stream: []byte{0x90, 60, 100, 62, 90, 64, 80},
			want: []Record{
				{Type: TypeNoteOn, Data0: 60, Data1: 100},
				{Type: TypeNoteOn, Data0: 62, Data1: 90},
				{Type: TypeNoteOn, Data0: 64, Data1: 80},
			},
		},
		{
			name:   "velocity zero is note off",
			stream: []byte{0x91, 60, 0},
			want:   []Record{{Type: TypeNoteOff, Channel: 1, Data0: 60}},
		},
		{
			name:   "program change and pressure take one data byte",
			stream: []byte{0xC3, 5, 0xD4, 70, 71},
			want: []Record{
				{Type: TypeProgramChange, Channel: 3, Data0: 5},
				{Type: TypeChannelPressure, Channel: 4, Data0: 70},
				{Type: TypeChannelPressure, Channel: 4, Data0: 71},
			},
		},
		{
			name:   "realtime inside a message",
			stream: []byte{0xB0, 7, 0xF8, 100},
			want: []Record{
				{Type: TypeRealtime, Status: 0xF8},
				{Type: TypeControlChange, Data0: 7, Data1: 100},
			},
		},
		{
			name:   "realtime keeps running status",
			stream: []byte{0x90, 60, 100, 0xFA, 61, 101},
			want: []Record{
				{Type: TypeNoteOn, Data0: 60, Data1: 100},
				{Type: TypeRealtime, Status: 0xFA},
				{Type: TypeNoteOn, Data0: 61, Data1: 101},
			},
		},
		{
			name:      "stray data without status",
			stream:    []byte{60, 100, 0x90, 60, 100},
			want:      []Record{{Type: TypeNoteOn, Data0: 60, Data1: 100}},
			discarded: 2,
		},
		{
			name:      "truncated message",
			stream:    []byte{0x90, 60, 0x80, 60, 64},
			want:      []Record{{Type: TypeNoteOff, Data0: 60, Data1: 64}},
			discarded: 1,
		},
		{
			name:      "sysex skipped",
			stream:    []byte{0xF0, 0x7E, 0x01, 0x02, 0xF7, 0x90, 60, 100},
			want:      []Record{{Type: TypeNoteOn, Data0: 60, Data1: 100}},
			discarded: 1,
		},
		{
			name:      "sysex cancels running status",
			stream:    []byte{0x90, 60, 100, 0xF0, 1, 0xF7, 61, 101},
			want:      []Record{{Type: TypeNoteOn, Data0: 60, Data1: 100}},
			discarded: 3,
		},
		{
			name:   "system common",
			stream: []byte{0xF2, 0x10, 0x20, 0xF6},
			want: []Record{
				{Type: TypeSystemCommon, Status: 0xF2, Data0: 0x10, Data1: 0x20},
				{Type: TypeSystemCommon, Status: 0xF6},
			},
		},
		{
			name:      "system common clears running status",
			stream:    []byte{0x90, 60, 100, 0xF3, 4, 61},
			want:      []Record{{Type: TypeNoteOn, Data0: 60, Data1: 100}, {Type: TypeSystemCommon, Status: 0xF3, Data0: 4}},
			discarded: 1,
		},
		{
			name:      "undefined status",
			stream:    []byte{0xF4, 1, 0xFD, 0x90, 1, 2},
			want:      []Record{{Type: TypeNoteOn, Data0: 1, Data1: 2}},
			discarded: 3,
		},
		{
			name:      "stray end of exclusive",
			stream:    []byte{0xF7},
			discarded: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Parser
			got := parseAll(&p, tt.stream)
			if !slices.Equal(got, tt.want) {
				t.Errorf("records = %+v, want %+v", got, tt.want)
			}
			if p.Discarded() != tt.discarded {
				t.Errorf("Discarded() = %d, want %d", p.Discarded(), tt.discarded)
			}
		})
	}
}

func TestParserNoAllocs(t *testing.T) {
	var p Parser
	stream := []byte{0x90, 60, 100, 62, 90, 0xF8, 0xB0, 7, 100}

	allocs := testing.AllocsPerRun(100, func() {
		for _, b := range stream {
			p.Feed(b)
		}
	})
	if allocs > 0 {
		t.Errorf("Feed allocated: got %.1f allocs, want 0", allocs)
	}
}

func TestRecordMessage(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   []byte
	}{
		{"note on", Record{Type: TypeNoteOn, Channel: 2, Data0: 60, Data1: 100}, []byte{0x92, 60, 100}},
		{"note off", Record{Type: TypeNoteOff, Channel: 1, Data0: 60, Data1: 64}, []byte{0x81, 60, 64}},
		{"control change", Record{Type: TypeControlChange, Channel: 15, Data0: 7, Data1: 127}, []byte{0xBF, 7, 127}},
		{"program change", Record{Type: TypeProgramChange, Data0: 5}, []byte{0xC0, 5}},
		{"channel pressure", Record{Type: TypeChannelPressure, Channel: 3, Data0: 70}, []byte{0xD3, 70}},
		{"poly pressure", Record{Type: TypePolyPressure, Data0: 60, Data1: 30}, []byte{0xA0, 60, 30}},
		{"pitch bend", Record{Type: TypePitchBend, Channel: 4, Data0: 0x01, Data1: 0x40}, []byte{0xE4, 0x01, 0x40}},
		{"realtime", Record{Type: TypeRealtime, Status: 0xF8}, []byte{0xF8}},
		{"song select", Record{Type: TypeSystemCommon, Status: 0xF3, Data0: 4}, []byte{0xF3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := []byte(tt.record.Message()); !bytes.Equal(got, tt.want) {
				t.Errorf("Message() = % X, want % X", got, tt.want)
			}
			decoded, ok := Decode(tt.want)
			if !ok || decoded != tt.record {
				t.Errorf("Decode(% X) = %+v, %v", tt.want, decoded, ok)
			}
		})
	}
}

func TestOutboundNoteOn(t *testing.T) {
	r := Record{Type: TypeNoteOn, Channel: 2, Data0: 60, Data1: 100}
	if got := []byte(r.Outbound()); !bytes.Equal(got, []byte{0x90, 60, 100}) {
		t.Errorf("Outbound() = % X, want 90 3C 64", got)
	}
}

func TestPitchBendValue(t *testing.T) {
	tests := []struct {
		d0, d1 uint8
		want   int16
	}{
		{0x00, 0x40, 0},
		{0x00, 0x00, -8192},
		{0x7F, 0x7F, 8191},
	}
	for _, tt := range tests {
		r := Record{Type: TypePitchBend, Data0: tt.d0, Data1: tt.d1}
		if got := r.PitchBend(); got != tt.want {
			t.Errorf("PitchBend(%#x, %#x) = %d, want %d", tt.d0, tt.d1, got, tt.want)
		}
	}
}

func TestDecodeRejects(t *testing.T) {
	for _, b := range [][]byte{nil, {60}, {0x90, 60}, {0x90, 60, 0x80}, {0xF0, 1, 0xF7}, {0xF4}} {
		if r, ok := Decode(b); ok {
			t.Errorf("Decode(% X) = %+v, want rejection", b, r)
		}
	}
}

func TestParseType(t *testing.T) {
	for _, name := range []string{"note_on", "note_off", "control_change", "program_change", "pitch_bend", "channel_pressure", "poly_pressure"} {
		typ, err := ParseType(name)
		if err != nil {
			t.Errorf("ParseType(%q): %v", name, err)
		}
		if typ.String() != name {
			t.Errorf("ParseType(%q).String() = %q", name, typ.String())
		}
	}
	for _, name := range []string{"", "invalid", "noteon"} {
		if _, err := ParseType(name); err == nil {
			t.Errorf("ParseType(%q) succeeded", name)
		}
	}
	if _, err := ParseTypes([]string{"note_on", "bogus"}); err == nil {
		t.Error("ParseTypes accepted an unknown name")
	}
}

// syncBuffer is a bytes.Buffer safe for the writer and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.buf.Bytes())
}

func waitForEvents(t *testing.T, tr Transport, n int) []Record {
	t.Helper()
	var got []Record
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < n && time.Now().Before(deadline) {
		tr.Listen()
		for tr.HasPendingEvents() {
			got = append(got, tr.PopEvent())
		}
		time.Sleep(time.Millisecond)
	}
	return got
}

func TestStreamTransport(t *testing.T) {
	pr, pw := io.Pipe()
	out := &syncBuffer{}
	tr := NewStreamTransport(pr, out, 64)
	defer tr.Close()

	go func() {
		// Split mid-message to exercise reassembly across reads.
		pw.Write([]byte{0x92, 60})
		pw.Write([]byte{100, 0xF8, 0x80, 60, 0})
	}()

	got := waitForEvents(t, tr, 3)
	want := []Record{
		{Type: TypeNoteOn, Channel: 2, Data0: 60, Data1: 100},
		{Type: TypeRealtime, Status: 0xF8},
		{Type: TypeNoteOff, Data0: 60},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("events = %+v, want %+v", got, want)
	}

	if err := tr.SendMessage([]byte{0x90, 60, 100}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte{0x90, 60, 100}) {
		t.Errorf("written = % X", out.Bytes())
	}

	st := tr.Stats()
	if st.Received != 3 || st.Sent != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestStreamTransportEOF(t *testing.T) {
	tr := NewStreamTransport(bytes.NewReader([]byte{0x90, 1, 2}), nil, 16)

	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not finish at EOF")
	}
	if err := tr.Err(); err != io.EOF {
		t.Errorf("Err() = %v, want EOF", err)
	}

	got := waitForEvents(t, tr, 1)
	if len(got) != 1 || got[0].Type != TypeNoteOn {
		t.Errorf("events = %+v", got)
	}
	if err := tr.SendMessage([]byte{0xF8}); err == nil {
		t.Error("SendMessage without a writer succeeded")
	}
}

func TestStreamTransportClose(t *testing.T) {
	pr, _ := io.Pipe()
	tr := NewStreamTransport(pr, io.Discard, 16)

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader still running after Close")
	}
	if err := tr.SendMessage([]byte{0xF8}); err != ErrClosed {
		t.Errorf("SendMessage after Close = %v, want ErrClosed", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestStreamTransportOverflow(t *testing.T) {
	// 40 note-ons into a record ring of 16.
	stream := bytes.Repeat([]byte{0x90, 60, 100}, 40)
	tr := NewStreamTransport(bytes.NewReader(stream), nil, 16)
	<-tr.Done()

	tr.Listen()
	var n int
	for tr.HasPendingEvents() {
		tr.PopEvent()
		n++
	}
	if n != 16 {
		t.Errorf("pending = %d, want 16", n)
	}
	if st := tr.Stats(); st.Dropped == 0 {
		t.Errorf("Stats().Dropped = 0 after overflow")
	}
}

func TestNullTransport(t *testing.T) {
	var tr NullTransport
	tr.Listen()
	if tr.HasPendingEvents() {
		t.Error("NullTransport has events")
	}
	if err := tr.SendMessage([]byte{0x90, 1, 2}); err != nil {
		t.Errorf("SendMessage: %v", err)
	}
}
