package results_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"buzzbatch/internal/coverage"
	"buzzbatch/internal/logging"
	"buzzbatch/internal/results"
	"buzzbatch/internal/scheduler"
)

type recordingObserver struct {
	written   []string
	abandoned int
}

func (o *recordingObserver) ChunkWritten(_ results.Event, path string) {
	o.written = append(o.written, path)
}

func (o *recordingObserver) ChunkAbandoned(results.Event) { o.abandoned++ }

func chunk(source string, start, end float64) scheduler.Chunk {
	return scheduler.Chunk{Source: source, Interval: coverage.Interval{Start: start, End: end}}
}

func rowsFor(start, end float64) []results.Row {
	return []results.Row{{Start: start, End: end, Class: "ins_buzz", Score: 0.9}}
}

func runWriter(t *testing.T, w *results.Writer, events []results.Event) error {
	t.Helper()
	ch := make(chan results.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.Run(ctx, ch)
}

func TestWriterMergesOutOfOrderChunksAcrossRuns(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	source := filepath.Join(in, "site", "rec.wav")

	observer := &recordingObserver{}
	terminated := false
	w := results.NewWriter(results.WriterOptions{
		InputRoot: in, OutputRoot: out, Suffix: "_buzz.csv", Workers: 2,
		Logger: logging.NewNop(), Observer: observer,
		OnTerminate: func() { terminated = true },
	})
	if err := w.Prepare([]string{source}); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "site")); err != nil {
		t.Fatalf("mirrored directory missing: %v", err)
	}

	err := runWriter(t, w, []results.Event{
		{Kind: results.EventRecords, Worker: 1, Chunk: chunk(source, 5, 10), Rows: rowsFor(5, 10)},
		{Kind: results.EventTerminated, Worker: 1},
		{Kind: results.EventAbandoned, Worker: 0, Chunk: chunk(source, 10, 12), Err: errors.New("decode failed")},
		{Kind: results.EventRecords, Worker: 0, Chunk: chunk(source, 0, 5), Rows: rowsFor(0, 5)},
		{Kind: results.EventTerminated, Worker: 0},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !terminated {
		t.Fatal("OnTerminate not called")
	}
	stats := w.Stats()
	if stats.Files != 1 || stats.Rows != 2 || stats.Chunks != 2 || stats.Abandoned != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(observer.written) != 2 || observer.abandoned != 1 {
		t.Fatalf("observer saw %v written, %d abandoned", observer.written, observer.abandoned)
	}

	// A second run appends rows that precede and follow the existing ones.
	w2 := results.NewWriter(results.WriterOptions{InputRoot: in, OutputRoot: out, Suffix: "_buzz.csv", Workers: 1})
	err = runWriter(t, w2, []results.Event{
		{Kind: results.EventRecords, Chunk: chunk(source, 12, 15), Rows: rowsFor(12, 15)},
		{Kind: results.EventRecords, Chunk: chunk(source, 10, 12), Rows: rowsFor(10, 12)},
		{Kind: results.EventTerminated},
	})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	table, err := results.ReadTable(filepath.Join(out, "site", "rec_buzz.csv"))
	if err != nil {
		t.Fatal(err)
	}
	wantStarts := []float64{0, 5, 10, 12}
	if len(table.Rows) != len(wantStarts) {
		t.Fatalf("rows = %+v", table.Rows)
	}
	for i, row := range table.Rows {
		if row.Start != wantStarts[i] {
			t.Fatalf("row %d start = %v, want %v", i, row.Start, wantStarts[i])
		}
	}
}

func TestWriterWaitsForEveryWorker(t *testing.T) {
	w := results.NewWriter(results.WriterOptions{InputRoot: t.TempDir(), OutputRoot: t.TempDir(), Suffix: ".csv", Workers: 2})
	ch := make(chan results.Event, 1)
	ch <- results.Event{Kind: results.EventTerminated, Worker: 0}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx, ch); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected writer to keep waiting, got %v", err)
	}
}

func TestWriterFailsOnIOError(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	blocker := filepath.Join(out, "site")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := results.NewWriter(results.WriterOptions{InputRoot: in, OutputRoot: out, Suffix: ".csv", Workers: 1})
	err := runWriter(t, w, []results.Event{
		{Kind: results.EventRecords, Chunk: chunk(filepath.Join(in, "site", "a.wav"), 0, 5), Rows: rowsFor(0, 5)},
		{Kind: results.EventTerminated},
	})
	if err == nil {
		t.Fatal("expected I/O error")
	}
}
