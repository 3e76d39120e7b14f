package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := current
		current = current.Add(step)
		return t
	}
}

func startSink(t *testing.T, file, console *syncBuffer, verbosity int) (*Sink, chan error) {
	t.Helper()
	handler, err := NewConsoleHandler(console, "console", LevelTrace, false)
	if err != nil {
		t.Fatalf("NewConsoleHandler: %v", err)
	}
	sink := NewSink(SinkOptions{
		Writer:    file,
		Console:   handler,
		Verbosity: verbosity,
		Now:       fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), time.Second),
	})
	errc := make(chan error, 1)
	go func() { errc <- sink.Run() }()
	return sink, errc
}

func TestSinkWritesEverythingToFileAndFiltersConsole(t *testing.T) {
	var file, console syncBuffer
	sink, errc := startSink(t, &file, &console, 0)

	logger := NewComponentLogger(sink.Logger(), "manager")
	logger.Info("starting analysis", Int("workers", 2))
	logger.Debug("binding worker", Int(FieldWorker, 1))
	Trace(logger, "chunks remaining", Int("remaining", 3))

	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 file lines, got %d:\n%s", len(lines), file.String())
	}
	if !strings.Contains(lines[0], " - manager: starting analysis workers=2") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[2], "chunks remaining remaining=3") {
		t.Fatalf("trace record missing from file: %q", lines[2])
	}
	if !strings.Contains(lines[3], "analysis complete; total time:") {
		t.Fatalf("closing summary missing: %q", lines[3])
	}

	out := console.String()
	if !strings.Contains(out, "starting analysis") {
		t.Fatalf("info record missing from console: %q", out)
	}
	if strings.Contains(out, "binding worker") || strings.Contains(out, "chunks remaining") {
		t.Fatalf("verbose records leaked to console: %q", out)
	}
}

func TestSinkConsoleVerbosityLevels(t *testing.T) {
	tests := []struct {
		verbosity int
		debug     bool
		trace     bool
	}{
		{0, false, false},
		{1, true, false},
		{2, true, true},
	}
	for _, tt := range tests {
		var file, console syncBuffer
		sink, errc := startSink(t, &file, &console, tt.verbosity)
		logger := sink.Logger()
		logger.Debug("debug message")
		Trace(logger, "trace message")
		_ = sink.Close()
		<-errc

		out := console.String()
		if got := strings.Contains(out, "debug message"); got != tt.debug {
			t.Errorf("verbosity %d: debug on console = %v", tt.verbosity, got)
		}
		if got := strings.Contains(out, "trace message"); got != tt.trace {
			t.Errorf("verbosity %d: trace on console = %v", tt.verbosity, got)
		}
	}
}

func TestSinkSummaryIsLastAndLateRecordsDropped(t *testing.T) {
	var file, console syncBuffer
	sink, errc := startSink(t, &file, &console, 2)
	logger := sink.Logger()
	logger.Info("before close")
	_ = sink.Close()
	<-errc
	logger.Info("after close")
	_ = sink.Close()

	content := file.String()
	if strings.Contains(content, "after close") {
		t.Fatalf("record after close written: %q", content)
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if !strings.Contains(lines[len(lines)-1], "analysis complete") {
		t.Fatalf("summary is not the final line: %q", content)
	}
}

func TestSinkConcurrentProducers(t *testing.T) {
	var file, console syncBuffer
	sink, errc := startSink(t, &file, &console, 0)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger := sink.Logger().With(Int(FieldWorker, id))
			for i := 0; i < 50; i++ {
				logger.Debug("chunk done", Int("i", i))
			}
		}(w)
	}
	wg.Wait()
	_ = sink.Close()
	<-errc

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	if len(lines) != 201 {
		t.Fatalf("expected 201 lines, got %d", len(lines))
	}
}

func TestSinkGroupsAndContextFields(t *testing.T) {
	var file, console syncBuffer
	sink, errc := startSink(t, &file, &console, 0)
	ctx := WithFile(WithWorker(t.Context(), 3), "/in/a.wav")
	sink.Logger().WithGroup("chunk").InfoContext(ctx, "decoded", Float64("start", 5))
	_ = sink.Close()
	<-errc

	line := strings.Split(file.String(), "\n")[0]
	for _, want := range []string{"worker=3", "file=/in/a.wav", "chunk.start=5"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSinkReportsWriteFailure(t *testing.T) {
	sink := NewSink(SinkOptions{Writer: failingWriter{}})
	errc := make(chan error, 1)
	go func() { errc <- sink.Run() }()
	sink.Logger().Info("hello")
	if err := sink.Close(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected write failure, got %v", err)
	}
	<-errc
}

func TestOpenRunLogRequiresFreshPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, RunLogName(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)))
	if filepath.Base(path) != "log 2026-03-01_093000.txt" {
		t.Fatalf("unexpected run log name %q", filepath.Base(path))
	}
	w, err := OpenRunLog(path, 1)
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	if _, err := w.Write([]byte("line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := OpenRunLog(path, 1); err == nil {
		t.Fatal("expected error reopening an existing run log")
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "line\n" {
		t.Fatalf("unexpected content %q err=%v", data, err)
	}
}

func TestVerbosityMapping(t *testing.T) {
	cases := map[slog.Level]int{
		slog.LevelError: 0,
		slog.LevelWarn:  0,
		slog.LevelInfo:  0,
		slog.LevelDebug: 1,
		LevelTrace:      2,
	}
	for level, want := range cases {
		if got := Verbosity(level); got != want {
			t.Errorf("Verbosity(%v) = %d, want %d", level, got, want)
		}
		if got := Verbosity(LevelForVerbosity(want)); got != want {
			t.Errorf("round trip for %d = %d", want, got)
		}
	}
}

func TestSinkSummaryMeasuresFromRunStart(t *testing.T) {
	var file syncBuffer
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := NewSink(SinkOptions{
		Writer:  &file,
		Now:     func() time.Time { return clock },
		Started: clock.Add(-90 * time.Second),
	})
	errc := make(chan error, 1)
	go func() { errc <- sink.Run() }()
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-errc

	if !strings.Contains(file.String(), "analysis complete; total time: 1m30s") {
		t.Fatalf("summary should include time before the sink existed: %q", file.String())
	}
}

func TestSinkLineValueFormatting(t *testing.T) {
	var file, console syncBuffer
	sink, errc := startSink(t, &file, &console, 0)
	sink.Logger().Info("chunk analyzed",
		Float64("rate", 12.34567),
		Duration("elapsed", 1234567*time.Microsecond),
		String("chunk", "0.0s-5.0s"),
		Error(errors.New("decode: bad frame")),
	)
	_ = sink.Close()
	<-errc

	line := strings.Split(file.String(), "\n")[0]
	for _, want := range []string{"rate=12.346", "elapsed=1.235s", "chunk=0.0s-5.0s", `error="decode: bad frame"`} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}
