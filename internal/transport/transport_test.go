// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pitchosc/pkg/utils"
)

func TestMulti(t *testing.T) {
	a := &utils.MockTransport{}
	b := &utils.MockTransport{Err: errors.New("b failed")}
	c := &utils.MockTransport{}
	m := Multi{a, b, c}

	err := m.Send("hello")
	if err == nil || !strings.Contains(err.Error(), "b failed") {
		t.Errorf("Send error = %v, want b failed", err)
	}
	for i, mt := range []*utils.MockTransport{a, b, c} {
		if got := mt.Sent(); len(got) != 1 || got[0] != "hello" {
			t.Errorf("transport %d got %v", i, got)
		}
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close error = %v", err)
	}
	if !a.Closed() || !b.Closed() || !c.Closed() {
		t.Error("not every transport closed")
	}

	if err := Multi(nil).Send(1); err != nil {
		t.Errorf("empty Multi Send = %v", err)
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	if err := lt.Send(map[string]float64{"freq": 220}); err != nil {
		t.Errorf("Send error = %v", err)
	}
	if err := lt.Send(math.NaN()); err == nil {
		t.Error("expected marshal error for NaN")
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close error = %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketTransport(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport failed: %v", err)
	}
	defer wst.Close()

	url := "ws://" + wst.Addr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitFor(t, "client registration", func() bool { return wst.ClientCount() == 1 })

	type report struct {
		Frequency float64 `json:"freq"`
		Note      string  `json:"note"`
	}
	if err := wst.Send(report{Frequency: 220, Note: "A3"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got report
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.Frequency != 220 || got.Note != "A3" {
		t.Errorf("received %+v", got)
	}

	conn.Close()
	waitFor(t, "client removal", func() bool { return wst.ClientCount() == 0 })
}

func TestWebSocketTransportClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport failed: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("Close error = %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}
	if err := wst.Send("late"); err == nil {
		t.Error("Send after Close succeeded")
	}
}

func TestWebSocketTransportBadAddress(t *testing.T) {
	if _, err := NewWebSocketTransport("256.0.0.1:bad"); err == nil {
		t.Error("expected listen error")
	}
}
