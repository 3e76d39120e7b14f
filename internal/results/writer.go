package results

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"buzzbatch/internal/logging"
	"buzzbatch/internal/scheduler"
)

// EventKind tags the payload of an Event.
type EventKind int

const (
	// EventRecords carries the rows produced for one chunk.
	EventRecords EventKind = iota
	// EventAbandoned reports a chunk that failed and produced no rows.
	EventAbandoned
	// EventTerminated is the last event a worker sends.
	EventTerminated
)

func (k EventKind) String() string {
	switch k {
	case EventRecords:
		return "records"
	case EventAbandoned:
		return "abandoned"
	case EventTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is what analyzer workers send to the Writer.
type Event struct {
	Kind    EventKind
	Worker  int
	Chunk   scheduler.Chunk
	Classes []string
	Rows    []Row
	Elapsed time.Duration
	Err     error
}

// Observer is notified after each chunk outcome is settled. Implementations
// run on the writer goroutine and should return promptly.
type Observer interface {
	ChunkWritten(ev Event, outputPath string)
	ChunkAbandoned(ev Event)
}

// Stats summarizes what a Writer persisted.
type Stats struct {
	Files     int
	Rows      int
	Chunks    int
	Abandoned int
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	InputRoot  string
	OutputRoot string
	Suffix     string
	// Workers is the number of termination notices to wait for.
	Workers  int
	Logger   *slog.Logger
	Observer Observer
	// OnTerminate runs once every worker has terminated and all rows are on
	// disk. The batch job uses it to stop the log sink.
	OnTerminate func()
}

// Writer is the single consumer of worker events.
type Writer struct {
	opts    WriterOptions
	logger  *slog.Logger
	stats   Stats
	touched map[string]struct{}
}

// NewWriter constructs a Writer.
func NewWriter(opts WriterOptions) *Writer {
	return &Writer{
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "writer"),
		touched: make(map[string]struct{}),
	}
}

// OutputPath returns the table path for an input file.
func (w *Writer) OutputPath(input string) string {
	return OutputPath(w.opts.InputRoot, w.opts.OutputRoot, input, w.opts.Suffix)
}

// Prepare creates the mirrored output directory of every input up front.
func (w *Writer) Prepare(inputs []string) error {
	dirs := make(map[string]struct{})
	for _, input := range inputs {
		dirs[filepath.Dir(w.OutputPath(input))] = struct{}{}
	}
	for dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	return nil
}

// Stats returns totals so far. Call after Run returns.
func (w *Writer) Stats() Stats {
	return w.stats
}

// Run consumes events until every worker has terminated. Any I/O failure is
// returned immediately since losing rows silently is not acceptable.
func (w *Writer) Run(ctx context.Context, events <-chan Event) error {
	terminated := 0
	for terminated < w.opts.Workers {
		var ev Event
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return fmt.Errorf("event channel closed after %d of %d workers terminated", terminated, w.opts.Workers)
			}
			ev = e
		}

		switch ev.Kind {
		case EventRecords:
			path, err := w.write(ev)
			if err != nil {
				w.logger.Error("writing results failed",
					logging.String(logging.FieldFile, ev.Chunk.Source),
					logging.String("output_path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "write_failed"),
					logging.String(logging.FieldErrorHint, "check free space and permissions on the output directory"),
				)
				return err
			}
			if w.opts.Observer != nil {
				w.opts.Observer.ChunkWritten(ev, path)
			}
		case EventAbandoned:
			w.stats.Abandoned++
			if w.opts.Observer != nil {
				w.opts.Observer.ChunkAbandoned(ev)
			}
		case EventTerminated:
			terminated++
			w.logger.Debug("worker terminated",
				logging.Int(logging.FieldWorker, ev.Worker),
				logging.Int("terminated", terminated),
				logging.Int("workers", w.opts.Workers),
			)
		}
	}

	w.stats.Files = len(w.touched)
	w.logger.Info("results written",
		logging.Int("files", w.stats.Files),
		logging.Int("chunks", w.stats.Chunks),
		logging.Int("rows", w.stats.Rows),
		logging.Int("abandoned", w.stats.Abandoned),
	)
	if w.opts.OnTerminate != nil {
		w.opts.OnTerminate()
	}
	return nil
}

func (w *Writer) write(ev Event) (string, error) {
	path := w.OutputPath(ev.Chunk.Source)
	existing, err := ReadTable(path)
	if err != nil {
		return path, err
	}
	merged, err := Merge(existing, Table{Classes: ev.Classes, Rows: ev.Rows})
	if err != nil {
		return path, fmt.Errorf("merge results %s: %w", path, err)
	}
	if err := WriteTable(path, merged); err != nil {
		return path, err
	}
	w.touched[path] = struct{}{}
	w.stats.Chunks++
	w.stats.Rows += len(ev.Rows)
	logging.Trace(w.logger, "rows merged",
		logging.String(logging.FieldFile, ev.Chunk.Source),
		logging.String("chunk", ev.Chunk.Interval.String()),
		logging.Int("rows", len(ev.Rows)),
		logging.Int("table_rows", len(merged.Rows)),
	)
	return path, nil
}
