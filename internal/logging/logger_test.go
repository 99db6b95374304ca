package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerLiftsComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	WithComponent(logger, "scheduler").Info("worker started", Int64(FieldStation, 7))

	line := buf.String()
	if !strings.Contains(line, "INFO scheduler: worker started") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "station_id=7") {
		t.Fatalf("expected station attribute in line: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be lifted into prefix: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("identified", String("title", "Take Five"))

	if !strings.Contains(buf.String(), `title="Take Five"`) {
		t.Fatalf("expected quoted title, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, expected := range cases {
		if got := parseLevel(input); got != expected {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, expected)
		}
	}
}
