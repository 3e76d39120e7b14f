package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"buzzbatch/internal/logging"
	"buzzbatch/internal/results"
	"buzzbatch/internal/scheduler"
)

// Worker processes assignments until the scheduler terminates it.
type Worker struct {
	ID          int
	Requests    chan<- scheduler.Request
	Assignments <-chan scheduler.Assignment
	Events      chan<- results.Event
	Decoder     Decoder
	Factory     BackendFactory
	Logger      *slog.Logger
}

// Run loads the backend once, then loops over assignments. It returns nil
// after sending its termination event. Failing chunks do not stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	logger := logging.NewComponentLogger(w.Logger, "analyzer").With(logging.Int(logging.FieldWorker, w.ID))

	loadStart := time.Now()
	backend, err := w.Factory(w.ID)
	if err != nil {
		return fmt.Errorf("worker %d: load model: %w", w.ID, err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			logger.Warn("backend close failed", logging.Error(cerr))
		}
	}()
	logger.Debug("model loaded", logging.Duration("load_duration", time.Since(loadStart)))

	req := scheduler.Request{Worker: w.ID}
	for {
		select {
		case w.Requests <- req:
		case <-ctx.Done():
			return ctx.Err()
		}

		var assignment scheduler.Assignment
		select {
		case assignment = <-w.Assignments:
		case <-ctx.Done():
			return ctx.Err()
		}

		if assignment.Kind == scheduler.AssignTerminate {
			logger.Debug("worker terminated")
			return w.emit(ctx, results.Event{Kind: results.EventTerminated, Worker: w.ID})
		}

		chunk := assignment.Chunk
		req = scheduler.Request{Worker: w.ID}
		started := time.Now()
		rows, err := w.process(ctx, backend, chunk)
		elapsed := time.Since(started)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.WarnWithContext(logger, "chunk failed; skipping", "chunk_failed",
				logging.String(logging.FieldFile, chunk.Source),
				logging.String("chunk", chunk.Interval.String()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "span is missing from the results"),
				logging.String(logging.FieldErrorHint, "check the file decodes with ffmpeg, then rerun to fill the gap"),
			)
			abandoned := chunk
			req.Abandoned = &abandoned
			if err := w.emit(ctx, results.Event{Kind: results.EventAbandoned, Worker: w.ID, Chunk: chunk, Elapsed: elapsed, Err: err}); err != nil {
				return err
			}
			continue
		}

		logger.Debug("chunk analyzed",
			logging.String(logging.FieldFile, chunk.Source),
			logging.String("chunk", chunk.Interval.String()),
			logging.Int("rows", len(rows)),
			logging.Duration("elapsed", elapsed),
			logging.Float64("rate", rate(chunk.Length(), elapsed)),
		)
		if err := w.emit(ctx, results.Event{
			Kind:    results.EventRecords,
			Worker:  w.ID,
			Chunk:   chunk,
			Classes: backend.Classes(),
			Rows:    rows,
			Elapsed: elapsed,
		}); err != nil {
			return err
		}
	}
}

// process decodes and classifies one chunk. Backend panics are converted to
// errors so a single bad span cannot take the worker down.
func (w *Worker) process(ctx context.Context, backend Backend, chunk scheduler.Chunk) (rows []results.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("analysis panicked: %v", r)
		}
	}()
	samples, err := w.Decoder.Decode(ctx, chunk.Source, chunk.Start, chunk.End)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	rows, err = backend.Analyze(ctx, samples)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	for i := range rows {
		rows[i].Start += chunk.Start
		rows[i].End = math.Min(rows[i].End+chunk.Start, chunk.End)
	}
	return rows, nil
}

func (w *Worker) emit(ctx context.Context, ev results.Event) error {
	select {
	case w.Events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rate is audio seconds analyzed per wall-clock second.
func rate(audio float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return math.Round(audio/elapsed.Seconds()*10) / 10
}

// PoolOptions configures RunPool.
type PoolOptions struct {
	Decoder Decoder
	Factory BackendFactory
	Logger  *slog.Logger
}

// RunPool runs one worker per assignment channel and waits for all of them.
// assignments is indexed by worker id.
func RunPool(ctx context.Context, opts PoolOptions, requests chan<- scheduler.Request, assignments []<-chan scheduler.Assignment, events chan<- results.Event) error {
	g, ctx := errgroup.WithContext(ctx)
	for id, ch := range assignments {
		w := &Worker{
			ID:          id,
			Requests:    requests,
			Assignments: ch,
			Events:      events,
			Decoder:     opts.Decoder,
			Factory:     opts.Factory,
			Logger:      opts.Logger,
		}
		g.Go(func() error { return w.Run(ctx) })
	}
	return g.Wait()
}
