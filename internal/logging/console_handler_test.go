package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandlerInfoFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger = NewComponentLogger(logger, "writer").With(Int(FieldWorker, 2), String(FieldFile, "/in/site/a.wav"))
	logger.Info("rows merged", Int("rows", 4), Duration("elapsed", 1500*time.Millisecond), String("output_path", "/out/a.csv"))

	out := buf.String()
	for _, want := range []string{"INFO [writer] Worker #2 · a.wav – rows merged", "- Rows: 4", "- Elapsed: 1.5s", "+ 1 more field hidden"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "/out/a.csv") {
		t.Errorf("path field should be hidden at info:\n%s", out)
	}
}

func TestPrettyHandlerDebugShowsAllFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("decoded", String("output_path", "/out/a.csv"), Error(errors.New("boom")))
	out := buf.String()
	if !strings.Contains(out, "output_path: /out/a.csv") || !strings.Contains(out, "error: boom") {
		t.Fatalf("debug fields missing:\n%s", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestJSONHandlerStampsRunID(t *testing.T) {
	var buf bytes.Buffer
	handler, err := NewConsoleHandler(&buf, "json", slog.LevelInfo, false)
	if err != nil {
		t.Fatalf("NewConsoleHandler: %v", err)
	}
	slog.New(WithRunID(handler, "run-1")).Info("hello")
	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-1"`) || !strings.Contains(out, `"level":"info"`) {
		t.Fatalf("unexpected json output %s", out)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatBytes(1536); got != "1.50 KiB" {
		t.Errorf("formatBytes = %q", got)
	}
	if got := formatPercent(12.345); got != "12.3%" {
		t.Errorf("formatPercent = %q", got)
	}
	if got := formatDurationHuman(90 * time.Second); got != "1m30s" {
		t.Errorf("formatDurationHuman = %q", got)
	}
}

func TestJSONHandlerWritesDurationsAsSeconds(t *testing.T) {
	var buf bytes.Buffer
	handler, err := NewConsoleHandler(&buf, "json", LevelTrace, false)
	if err != nil {
		t.Fatalf("NewConsoleHandler: %v", err)
	}
	slog.New(handler).Log(t.Context(), LevelTrace, "chunk analyzed", Duration("elapsed", 2500*time.Millisecond))
	out := buf.String()
	for _, want := range []string{`"elapsed":2.5`, `"level":"trace"`, `"time":"`} {
		if !strings.Contains(out, want) {
			t.Errorf("json output %s missing %s", out, want)
		}
	}
}
