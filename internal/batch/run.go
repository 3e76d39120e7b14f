package batch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"buzzbatch/internal/analyzer"
	"buzzbatch/internal/ledger"
	"buzzbatch/internal/logging"
	"buzzbatch/internal/metrics"
	"buzzbatch/internal/results"
	"buzzbatch/internal/scheduler"
)

// Outcome classifies a run that returned without error.
type Outcome int

const (
	// OutcomeCompleted means chunks were analysed.
	OutcomeCompleted Outcome = iota
	// OutcomeNoInput means discovery found nothing to analyse.
	OutcomeNoInput
	// OutcomeAlreadyComplete means every input is fully covered.
	OutcomeAlreadyComplete
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeNoInput:
		return "no input"
	case OutcomeAlreadyComplete:
		return "already complete"
	default:
		return "unknown"
	}
}

// Summary describes a finished run.
type Summary struct {
	RunID       string
	Outcome     Outcome
	Files       int
	Skipped     int
	Workers     int
	ChunkLength float64
	Chunks      int
	Written     int
	Abandoned   int
	Rows        int
	Elapsed     time.Duration
	LogPath     string
}

// Describe renders the summary as one line with thousands separators.
func (s Summary) Describe() string {
	p := message.NewPrinter(language.English)
	switch s.Outcome {
	case OutcomeNoInput:
		return "no audio files found"
	case OutcomeAlreadyComplete:
		return p.Sprintf("all %d files already analysed", s.Files)
	}
	return p.Sprintf("%d chunks written, %d abandoned, %d rows across %d files in %s",
		s.Written, s.Abandoned, s.Rows, s.Files, s.Elapsed.Round(time.Second))
}

// Run analyses every uncovered span under the configured input tree.
func Run(ctx context.Context, opts Options) (Summary, error) {
	cfg := opts.Config
	if cfg == nil {
		return Summary{}, Wrap(ErrConfiguration, "batch", "run", "configuration is required", nil)
	}
	logger := logging.NewComponentLogger(opts.Logger, "batch")
	started := opts.now()

	plan, err := Prepare(ctx, opts)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		Files:       len(plan.Inputs),
		Skipped:     plan.Skipped,
		Chunks:      plan.Chunks,
		ChunkLength: plan.Solution.ChunkLength,
	}
	switch {
	case len(plan.Inputs) == 0:
		summary.Outcome = OutcomeNoInput
		logger.Info("no audio files found", logging.String("input_dir", cfg.Paths.InputDir))
		return summary, nil
	case plan.Chunks == 0:
		summary.Outcome = OutcomeAlreadyComplete
		logger.Info("all files already analysed", logging.Int("files", len(plan.Inputs)))
		return summary, nil
	}

	// Nothing is created under the output root until there is work to do.
	if err := cfg.EnsureDirectories(); err != nil {
		return summary, Wrap(ErrConfiguration, "batch", "create output root", "", err)
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return summary, Wrap(ErrConfiguration, "batch", "acquire lock", cfg.LockPath(), err)
	}
	if !ok {
		return summary, Wrap(ErrConfiguration, "batch", "acquire lock",
			"another run is writing to "+cfg.Paths.OutputDir, nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release output lock", logging.Error(err))
		}
	}()

	if err := plan.refresh(cfg); err != nil {
		return summary, err
	}
	if plan.Chunks == 0 {
		summary.Outcome = OutcomeAlreadyComplete
		summary.Chunks = 0
		logger.Info("all files already analysed", logging.Int("files", len(plan.Inputs)))
		return summary, nil
	}
	summary.Chunks = plan.Chunks

	summary.RunID = uuid.NewString()
	summary.Workers = plan.Workers()
	summary.LogPath = filepath.Join(cfg.Paths.OutputDir, logging.RunLogName(started))
	if removed := logging.PruneRunLogs(logger, cfg.Paths.OutputDir, cfg.Logging.RetentionDays, summary.LogPath); removed > 0 {
		logger.Debug("old run logs pruned", logging.Int("removed", removed))
	}

	sink, err := startSink(opts, summary.LogPath, started)
	if err != nil {
		return summary, Wrap(ErrConfiguration, "log sink", "open run log", "", err)
	}
	sinkDone := make(chan error, 1)
	go func() { sinkDone <- sink.Run() }()
	runLogger := slog.New(logging.WithRunID(sink.Handler(), summary.RunID))

	logBanner(runLogger, opts, plan, summary, started)

	store := openLedger(ctx, opts, runLogger, plan, summary, started)
	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New(plan.Model.Name)
		recorder.Plan(summary.Workers, summary.ChunkLength)
	}
	progress, bar := newProgress(opts.Progress, plan.Chunks)

	stats, runErr := execute(ctx, opts, plan, summary.Workers, runLogger, sink, &runObserver{
		runID:   summary.RunID,
		ledger:  store,
		metrics: recorder,
		bar:     bar,
		logger:  runLogger,
	})
	if progress != nil {
		if runErr != nil {
			bar.Abort(false)
		}
		progress.Wait()
	}

	// The writer closes the sink on success; on failure nothing has yet.
	if closeErr := sink.Close(); closeErr != nil {
		logging.WarnWithContext(logger, "run log incomplete", "run_log_failed",
			logging.String("log_path", summary.LogPath),
			logging.Error(closeErr),
		)
	}
	<-sinkDone

	summary.Written = stats.Chunks
	summary.Abandoned = stats.Abandoned
	summary.Rows = stats.Rows
	summary.Elapsed = opts.now().Sub(started)

	if store != nil {
		if err := store.FinishRun(context.Background(), summary.RunID, runErr); err != nil {
			logger.Warn("ledger finish failed", logging.Error(err))
		}
		_ = store.Close()
	}
	if err := recorder.WriteTextfile(cfg.Metrics.Textfile, opts.now()); err != nil {
		logging.WarnWithContext(logger, "metrics textfile not written", "metrics_failed",
			logging.String("metrics_path", cfg.Metrics.Textfile),
			logging.Error(err),
		)
	}

	if runErr != nil {
		return summary, runErr
	}
	summary.Outcome = OutcomeCompleted
	return summary, nil
}

// execute runs the manager, the writer and the analyzer pool until the writer
// has seen every worker terminate.
func execute(ctx context.Context, opts Options, plan *Plan, workers int, logger *slog.Logger, sink *logging.Sink, observer results.Observer) (results.Stats, error) {
	cfg := opts.Config
	manager, err := scheduler.New(plan.AudioFiles(), workers, logger)
	if err != nil {
		return results.Stats{}, Wrap(ErrConfiguration, "manager", "build", "", err)
	}
	for w, path := range manager.InitialBindings() {
		logging.Trace(logger, "initial binding",
			logging.Int(logging.FieldWorker, w),
			logging.String(logging.FieldFile, path),
		)
	}

	requests := make(chan scheduler.Request, workers)
	events := make(chan results.Event, workers)
	sendSide := make([]chan<- scheduler.Assignment, workers)
	recvSide := make([]<-chan scheduler.Assignment, workers)
	for w := 0; w < workers; w++ {
		ch := make(chan scheduler.Assignment, 1)
		sendSide[w] = ch
		recvSide[w] = ch
	}

	writer := results.NewWriter(results.WriterOptions{
		InputRoot:  cfg.Paths.InputDir,
		OutputRoot: cfg.Paths.OutputDir,
		Suffix:     cfg.Analysis.OutputSuffix,
		Workers:    workers,
		Logger:     logger,
		Observer:   observer,
		OnTerminate: func() {
			_ = sink.Close()
		},
	})
	if err := writer.Prepare(plan.Inputs); err != nil {
		return results.Stats{}, Wrap(ErrWriter, "writer", "prepare output tree", "", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx, requests, sendSide)
	})
	g.Go(func() error {
		err := writer.Run(gctx, events)
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		return Wrap(ErrWriter, "writer", "run", "", err)
	})
	g.Go(func() error {
		return analyzer.RunPool(gctx, analyzer.PoolOptions{
			Decoder: decoderFor(opts, plan.Model),
			Factory: factoryFor(opts, plan.Model),
			Logger:  logger,
		}, requests, recvSide, events)
	})
	err = g.Wait()
	return writer.Stats(), err
}

func startSink(opts Options, logPath string, started time.Time) (*logging.Sink, error) {
	cfg := opts.Config
	writer, err := logging.OpenRunLog(logPath, cfg.Logging.MaxLogMB)
	if err != nil {
		return nil, err
	}
	out := opts.Console
	if out == nil {
		out = os.Stdout
	}
	console, err := logging.NewConsoleHandler(out, cfg.Logging.Format, logging.LevelTrace, false)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}
	return logging.NewSink(logging.SinkOptions{
		Writer:    writer,
		Console:   console,
		Verbosity: cfg.Logging.Verbosity,
		Now:       opts.Now,
		Started:   started,
	}), nil
}

func logBanner(logger *slog.Logger, opts Options, plan *Plan, summary Summary, started time.Time) {
	cfg := opts.Config
	logging.NewComponentLogger(logger, "batch").Info("analysis started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("start_time", started.Format(time.RFC3339)),
		logging.String("model", plan.Model.Name),
		logging.Int("cpus", cfg.Analysis.CPUs),
		logging.Float64("memory_gb", cfg.Analysis.MemoryGB),
		logging.Float64("chunk_length", summary.ChunkLength),
		logging.Int("workers", summary.Workers),
		logging.Int("files", summary.Files),
		logging.Int("chunks", summary.Chunks),
		logging.String("input_dir", cfg.Paths.InputDir),
		logging.String("output_dir", cfg.Paths.OutputDir),
		logging.Int(logging.FieldVerbosity, cfg.Logging.Verbosity),
	)
}

func openLedger(ctx context.Context, opts Options, logger *slog.Logger, plan *Plan, summary Summary, started time.Time) *ledger.Store {
	cfg := opts.Config
	if !cfg.Ledger.Enabled {
		return nil
	}
	store, err := ledger.Open(cfg.Ledger.Path)
	if err == nil {
		err = store.BeginRun(ctx, ledger.Run{
			ID:          summary.RunID,
			Model:       plan.Model.Name,
			InputDir:    cfg.Paths.InputDir,
			OutputDir:   cfg.Paths.OutputDir,
			Workers:     summary.Workers,
			ChunkLength: summary.ChunkLength,
			Files:       summary.Files,
			Chunks:      summary.Chunks,
			StartedAt:   started,
		})
		if err != nil {
			_ = store.Close()
		}
	}
	if err != nil {
		logging.WarnWithContext(logger, "ledger unavailable; run history not recorded", "ledger_failed",
			logging.String("ledger_path", cfg.Ledger.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "results are unaffected"),
			logging.String(logging.FieldErrorHint, "delete the ledger file if its schema is outdated"),
		)
		return nil
	}
	return store
}
