package logs

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesFilteredText(t *testing.T) {
	var buf bytes.Buffer
	off := false
	logger, closer, err := New(Options{Writer: &buf, Level: slog.LevelInfo, Journal: &off})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer func() {
		_ = closer.Close()
	}()

	logger.Debug("hidden")
	logger.InfoContext(WithRun(context.Background(), "run-7"), "batch start", "total_chars", 21)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record passed an info level: %q", out)
	}
	if !strings.Contains(out, "total_chars=21") || !strings.Contains(out, "run=run-7") {
		t.Fatalf("missing attributes in %q", out)
	}
}

func TestLoggerWithAttrsKeepsLevel(t *testing.T) {
	var buf bytes.Buffer
	off := false
	logger, _, err := New(Options{Writer: &buf, Level: slog.LevelWarn, Journal: &off})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	child := logger.With("component", "gauge")
	child.Info("dropped")
	child.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "component=gauge") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "ruletype.log")
	off := false
	logger, closer, err := New(Options{Path: path, Journal: &off})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "msg=hello") {
		t.Fatalf("unexpected log file %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "", want: slog.LevelInfo},
		{in: "WARN", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("%q: expected %v, got %v (%v)", tt.in, tt.want, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestToJournalKey(t *testing.T) {
	if got := toJournalKey("total_chars.v2"); got != "TOTAL_CHARS_V2" {
		t.Fatalf("unexpected journal key %q", got)
	}
}
