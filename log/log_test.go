package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// newCaptureLogger returns a logger whose JSON output lands in the
// returned buffer.
func newCaptureLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})
	return NewWithHandler(h), &buf
}

// decodeLines parses each JSON line written by the capture logger.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, obj)
	}
	return out
}

// --- logger tests ---

func TestLoggerWritesRecord(t *testing.T) {
	l, buf := newCaptureLogger(slog.LevelInfo)
	l.Info("header encoded", "rows", 64)

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0]["msg"] != "header encoded" {
		t.Fatalf("msg = %v, want header encoded", lines[0]["msg"])
	}
	// JSON numbers decode as float64.
	if lines[0]["rows"] != float64(64) {
		t.Fatalf("rows = %v, want 64", lines[0]["rows"])
	}
}

func TestLoggerLevelGate(t *testing.T) {
	for _, tc := range []struct {
		handler slog.Level
		emit    func(*Logger)
		want    bool
	}{
		{slog.LevelInfo, func(l *Logger) { l.Debug("x") }, false},
		{slog.LevelInfo, func(l *Logger) { l.Info("x") }, true},
		{slog.LevelWarn, func(l *Logger) { l.Info("x") }, false},
		{slog.LevelWarn, func(l *Logger) { l.Warn("x") }, true},
		{slog.LevelError, func(l *Logger) { l.Warn("x") }, false},
		{slog.LevelError, func(l *Logger) { l.Error("x") }, true},
		{slog.LevelDebug, func(l *Logger) { l.Debug("x") }, true},
	} {
		l, buf := newCaptureLogger(tc.handler)
		tc.emit(l)
		got := buf.Len() > 0
		if got != tc.want {
			t.Fatalf("handler at %v: emitted = %v, want %v", tc.handler, got, tc.want)
		}
	}
}

func TestLoggerModuleAttr(t *testing.T) {
	l, buf := newCaptureLogger(slog.LevelInfo)
	l.Module("recovery").Info("row rebuilt")

	lines := decodeLines(t, buf)
	if lines[0]["module"] != "recovery" {
		t.Fatalf("module = %v, want recovery", lines[0]["module"])
	}
}

func TestLoggerWithChaining(t *testing.T) {
	l, buf := newCaptureLogger(slog.LevelInfo)
	l.Module("kzg").With("srs", "embedded").Info("setup loaded", "points", 4096)

	lines := decodeLines(t, buf)
	rec := lines[0]
	if rec["module"] != "kzg" {
		t.Fatalf("module = %v, want kzg", rec["module"])
	}
	if rec["srs"] != "embedded" {
		t.Fatalf("srs = %v, want embedded", rec["srs"])
	}
	if rec["points"] != float64(4096) {
		t.Fatalf("points = %v, want 4096", rec["points"])
	}
}

func TestLoggerStringFields(t *testing.T) {
	l, buf := newCaptureLogger(slog.LevelInfo)
	l.Warn("cell mismatch", "commitment", "0xabcd", "row", 2)

	rec := decodeLines(t, buf)[0]
	if rec["commitment"] != "0xabcd" {
		t.Fatalf("commitment = %v, want 0xabcd", rec["commitment"])
	}
	if rec["row"] != float64(2) {
		t.Fatalf("row = %v, want 2", rec["row"])
	}
}

// --- default logger tests ---

func TestDefaultIsNonNil(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, buf := newCaptureLogger(slog.LevelDebug)
	SetDefault(l)

	if Default() != l {
		t.Fatal("SetDefault did not replace the default logger")
	}

	Debug("d", "k", 1)
	Info("i")
	Warn("w")
	Error("e")

	lines := decodeLines(t, buf)
	if len(lines) != 4 {
		t.Fatalf("got %d lines from package-level funcs, want 4", len(lines))
	}
	wantMsgs := []string{"d", "i", "w", "e"}
	for i, rec := range lines {
		if rec["msg"] != wantMsgs[i] {
			t.Fatalf("line %d msg = %v, want %q", i, rec["msg"], wantMsgs[i])
		}
	}
}

func TestSetDefaultNilIsNoOp(t *testing.T) {
	orig := Default()
	SetDefault(nil)
	if Default() != orig {
		t.Fatal("SetDefault(nil) replaced the default logger")
	}
}

// --- terminal logger tests ---

func TestNewTerminalPlain(t *testing.T) {
	var buf bytes.Buffer
	l := NewTerminal(&buf, INFO, false)
	l.Info("sampling complete", "cells", 73)

	out := buf.String()
	if !strings.Contains(out, "INFO") {
		t.Fatalf("line %q missing level", out)
	}
	if !strings.Contains(out, "sampling complete") {
		t.Fatalf("line %q missing message", out)
	}
	if !strings.Contains(out, "cells=73") {
		t.Fatalf("line %q missing field", out)
	}
	if strings.Contains(out, ansiReset) {
		t.Fatalf("plain terminal line %q carries ANSI escapes", out)
	}
}
