// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  LogLevel
		valid bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"Error", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.valid {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.valid)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})

	SetLevel(LevelWarn)
	if GetLevel() != LevelWarn {
		t.Fatalf("GetLevel() = %v, want WARN", GetLevel())
	}

	Infof("detector ready at %d Hz", 48000)
	Warnf("queue dropped %d events", 3)
	_ = Sync()

	out := buf.String()
	if strings.Contains(out, "detector ready") {
		t.Errorf("info message leaked through WARN level: %q", out)
	}
	if !strings.Contains(out, "queue dropped 3 events") || !strings.Contains(out, "WARN") {
		t.Errorf("warning missing from output: %q", out)
	}

	buf.Reset()
	SetLevel(LevelDebug)
	Debugw("detection", "hz", 220.0)
	_ = Sync()
	if !strings.Contains(buf.String(), "hz") {
		t.Errorf("structured debug fields missing: %q", buf.String())
	}
}

func TestLevelString(t *testing.T) {
	if LevelError.String() != "ERROR" || LogLevel(42).String() != "UNKNOWN" {
		t.Error("unexpected LogLevel string mapping")
	}
}
