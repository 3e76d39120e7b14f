package batch

import (
	"context"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"buzzbatch/internal/ledger"
	"buzzbatch/internal/logging"
	"buzzbatch/internal/metrics"
	"buzzbatch/internal/results"
)

// runObserver forwards chunk outcomes from the writer to the ledger, the
// metrics recorder and the progress bar. Every target is optional.
type runObserver struct {
	runID   string
	ledger  *ledger.Store
	metrics *metrics.Recorder
	bar     *mpb.Bar
	logger  *slog.Logger
	// ledgerFailed stops ledger writes after the first failure.
	ledgerFailed bool
}

func (o *runObserver) ChunkWritten(ev results.Event, _ string) {
	o.metrics.ChunkProcessed(ev.Chunk.Length(), len(ev.Rows), ev.Elapsed)
	o.record(ledger.ChunkOutcome{
		RunID:   o.runID,
		Source:  ev.Chunk.Source,
		Start:   ev.Chunk.Start,
		End:     ev.Chunk.End,
		Worker:  ev.Worker,
		Status:  ledger.ChunkWritten,
		Rows:    len(ev.Rows),
		Elapsed: ev.Elapsed,
	})
	o.advance()
}

func (o *runObserver) ChunkAbandoned(ev results.Event) {
	o.metrics.ChunkAbandoned()
	outcome := ledger.ChunkOutcome{
		RunID:   o.runID,
		Source:  ev.Chunk.Source,
		Start:   ev.Chunk.Start,
		End:     ev.Chunk.End,
		Worker:  ev.Worker,
		Status:  ledger.ChunkAbandoned,
		Elapsed: ev.Elapsed,
	}
	if ev.Err != nil {
		outcome.Error = Wrap(ErrChunk, "analyzer", "process chunk", "", ev.Err).Error()
	}
	o.record(outcome)
	o.advance()
}

func (o *runObserver) record(outcome ledger.ChunkOutcome) {
	if o.ledger == nil || o.ledgerFailed {
		return
	}
	if err := o.ledger.RecordChunk(context.Background(), outcome); err != nil {
		o.ledgerFailed = true
		logging.WarnWithContext(o.logger, "ledger write failed; history for this run is incomplete", "ledger_failed",
			logging.String("ledger_path", o.ledger.Path()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "results are unaffected"),
		)
	}
}

func (o *runObserver) advance() {
	if o.bar != nil {
		o.bar.Increment()
	}
}

// newProgress returns a progress container and bar when enabled and stderr is
// a terminal, or nils otherwise.
func newProgress(enabled bool, total int) (*mpb.Progress, *mpb.Bar) {
	if !enabled || total <= 0 || !isTerminal(os.Stderr) {
		return nil, nil
	}
	p := mpb.New(mpb.WithOutput(os.Stderr), mpb.WithWidth(48))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("chunks "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Name(" "),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)
	return p, bar
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
