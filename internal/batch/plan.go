package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"buzzbatch/internal/analyzer"
	"buzzbatch/internal/config"
	"buzzbatch/internal/coverage"
	"buzzbatch/internal/deps"
	"buzzbatch/internal/discovery"
	"buzzbatch/internal/logging"
	"buzzbatch/internal/media/decode"
	"buzzbatch/internal/media/ffprobe"
	"buzzbatch/internal/model"
	"buzzbatch/internal/resources"
	"buzzbatch/internal/results"
	"buzzbatch/internal/scheduler"
)

// DurationProber reports the length of an audio file in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Options configures Prepare and Run. Zero-valued collaborators fall back to
// the ffmpeg/ffprobe implementations and the built-in classifier.
type Options struct {
	Config *config.Config
	// Paths bypasses discovery when non-empty.
	Paths []string
	// Logger receives messages before the run's log sink exists.
	Logger *slog.Logger

	Prober  DurationProber
	Decoder analyzer.Decoder
	Factory analyzer.BackendFactory

	// Console receives sink console output. Defaults to os.Stdout.
	Console io.Writer
	// Progress shows a progress bar when stderr is a terminal.
	Progress bool
	Now      func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// FilePlan is the planning result for one input.
type FilePlan struct {
	scheduler.AudioFile
	OutputPath string
	Err        error
}

// Plan is everything known before analysis starts.
type Plan struct {
	Model    *model.Model
	Solution resources.Solution
	Inputs   []string
	Files    []FilePlan
	Chunks   int
	Pending  float64
	Skipped  int
}

// AudioFiles returns the probed files for the assignment manager.
func (p *Plan) AudioFiles() []scheduler.AudioFile {
	out := make([]scheduler.AudioFile, 0, len(p.Files))
	for _, f := range p.Files {
		if f.Err != nil {
			continue
		}
		out = append(out, f.AudioFile)
	}
	return out
}

// Workers returns the number of analyzers to start: the solved count, never
// more than there are chunks.
func (p *Plan) Workers() int {
	workers := p.Solution.Workers
	if p.Chunks < workers {
		workers = p.Chunks
	}
	return workers
}

// Prepare checks dependencies, loads the model, solves resources, discovers
// inputs and plans the chunks still missing from each output table.
func Prepare(ctx context.Context, opts Options) (*Plan, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, Wrap(ErrConfiguration, "batch", "prepare", "configuration is required", nil)
	}
	logger := logging.NewComponentLogger(opts.Logger, "planner")

	if err := checkDependencies(opts); err != nil {
		return nil, err
	}

	m, err := model.Load(cfg.Paths.ModelsDir, cfg.Analysis.Model)
	if err != nil {
		return nil, Wrap(ErrConfiguration, "model", "load", "", err)
	}

	solution, err := resources.Solve(resources.Budget{
		MemoryBytes: resources.GiB(cfg.Analysis.MemoryGB),
		CPUs:        cfg.Analysis.CPUs,
		Footprint:   m.ResourceFootprint(),
	})
	if err != nil {
		return nil, Wrap(ErrResources, "resources", "solve", "", err)
	}
	logger.Debug("resources solved",
		logging.Int("workers", solution.Workers),
		logging.Float64("chunk_length", solution.ChunkLength),
		logging.Float64("memory_gb", cfg.Analysis.MemoryGB),
	)

	inputs, err := findInputs(cfg, opts.Paths)
	if err != nil {
		return nil, err
	}

	if err := checkOutputConflicts(cfg, inputs); err != nil {
		return nil, err
	}

	plan := &Plan{Model: m, Solution: solution, Inputs: inputs}
	prober := opts.Prober
	if prober == nil {
		prober = ffprobe.Prober{Binary: cfg.Analysis.FFprobeBinary}
	}
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fp, err := planFile(ctx, cfg, prober, plan, input)
		if err != nil {
			var fatal *fatalPlanError
			if errors.As(err, &fatal) {
				return nil, fatal.err
			}
			plan.Skipped++
			fp.Err = err
			logging.WarnWithContext(logger, "input skipped", "input_skipped",
				logging.String(logging.FieldFile, input),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file is not analysed in this run"),
				logging.String(logging.FieldErrorHint, "check the file plays with ffprobe"),
			)
		}
		plan.Files = append(plan.Files, fp)
		if fp.Err == nil {
			plan.Chunks += len(fp.Chunks)
			plan.Pending += coverage.Total(fp.Chunks)
		}
	}
	logger.Info("planning complete",
		logging.Int("files", len(inputs)),
		logging.Int("chunks", plan.Chunks),
		logging.Duration("pending_duration", seconds(plan.Pending)),
		logging.Int("skipped", plan.Skipped),
	)
	return plan, nil
}

type fatalPlanError struct{ err error }

func (e *fatalPlanError) Error() string { return e.err.Error() }

func planFile(ctx context.Context, cfg *config.Config, prober DurationProber, plan *Plan, input string) (FilePlan, error) {
	outPath := results.OutputPath(cfg.Paths.InputDir, cfg.Paths.OutputDir, input, cfg.Analysis.OutputSuffix)
	fp := FilePlan{AudioFile: scheduler.AudioFile{Path: input}, OutputPath: outPath}

	duration, err := prober.Duration(ctx, input)
	if err != nil {
		return fp, fmt.Errorf("probe duration: %w", err)
	}
	fp.Duration = duration
	if err := plan.planCoverage(cfg, &fp); err != nil {
		return fp, &fatalPlanError{err: err}
	}
	return fp, nil
}

// planCoverage reads the existing output table of fp and derives its chunks.
// A table the writer could not merge into is a configuration error: it would
// otherwise fail or be overwritten after workers have started.
func (p *Plan) planCoverage(cfg *config.Config, fp *FilePlan) error {
	table, err := results.ReadTable(fp.OutputPath)
	if err != nil {
		return Wrap(ErrConfiguration, "planner", "read coverage", fp.OutputPath, err)
	}
	if want := scoreColumns(cfg, p.Model); len(table.Rows) > 0 && !slices.Equal(table.Classes, want) {
		return Wrap(ErrConfiguration, "planner", "score columns differ",
			fmt.Sprintf("%s has %s, this run writes %s", fp.OutputPath, describeColumns(table.Classes), describeColumns(want)), nil)
	}
	var covered []coverage.Interval
	if len(table.Rows) > 0 {
		covered = table.Coverage()
	}
	fp.AudioFile = scheduler.PlanFile(fp.Path, fp.Duration, covered, p.Model.FrameLength(), p.Solution.ChunkLength, cfg.Analysis.Pad)
	return nil
}

// refresh re-reads every output table and re-plans against it, reusing the
// probed durations. Run calls it once it holds the output lock so tables
// written by a concurrent run since Prepare are not analysed twice.
func (p *Plan) refresh(cfg *config.Config) error {
	p.Chunks, p.Pending = 0, 0
	for i := range p.Files {
		fp := &p.Files[i]
		if fp.Err != nil {
			continue
		}
		if err := p.planCoverage(cfg, fp); err != nil {
			return err
		}
		p.Chunks += len(fp.Chunks)
		p.Pending += coverage.Total(fp.Chunks)
	}
	return nil
}

// scoreColumns returns the per-class columns the built-in backend writes.
func scoreColumns(cfg *config.Config, m *model.Model) []string {
	if !cfg.Analysis.FullScores {
		return nil
	}
	return m.ClassNames()
}

func describeColumns(classes []string) string {
	if len(classes) == 0 {
		return "best-class columns only"
	}
	return "score columns for " + strings.Join(classes, ", ")
}

// checkOutputConflicts rejects inputs that would share an output table, such
// as a.wav and a.flac in one directory.
func checkOutputConflicts(cfg *config.Config, inputs []string) error {
	owners := make(map[string]string, len(inputs))
	for _, input := range inputs {
		out := results.OutputPath(cfg.Paths.InputDir, cfg.Paths.OutputDir, input, cfg.Analysis.OutputSuffix)
		if prev, ok := owners[out]; ok {
			return Wrap(ErrConfiguration, "planner", "output path conflict",
				fmt.Sprintf("%s and %s both write %s", prev, input, out), nil)
		}
		owners[out] = input
	}
	return nil
}

func findInputs(cfg *config.Config, paths []string) ([]string, error) {
	if len(paths) > 0 {
		inputs, err := discovery.Resolve(paths)
		if err != nil {
			return nil, Wrap(ErrConfiguration, "discovery", "resolve paths", "", err)
		}
		return inputs, nil
	}
	if _, err := os.Stat(cfg.Paths.InputDir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	inputs, err := discovery.Find(cfg.Paths.InputDir, cfg.Analysis.Formats)
	if err != nil {
		return nil, Wrap(ErrConfiguration, "discovery", "find inputs", "", err)
	}
	return inputs, nil
}

func checkDependencies(opts Options) error {
	cfg := opts.Config
	var reqs []deps.Requirement
	for _, req := range deps.MediaRequirements(cfg.Analysis.FFmpegBinary, cfg.Analysis.FFprobeBinary) {
		if req.Name == "FFmpeg" && opts.Decoder != nil {
			continue
		}
		if req.Name == "FFprobe" && opts.Prober != nil {
			continue
		}
		reqs = append(reqs, req)
	}
	if len(reqs) == 0 {
		return nil
	}
	if err := deps.Missing(deps.CheckBinaries(reqs)); err != nil {
		return Wrap(ErrConfiguration, "deps", "check binaries", "", err)
	}
	return nil
}

func decoderFor(opts Options, m *model.Model) analyzer.Decoder {
	if opts.Decoder != nil {
		return opts.Decoder
	}
	return decode.FFmpeg{Binary: opts.Config.Analysis.FFmpegBinary, SampleRate: m.SampleRate}
}

func factoryFor(opts Options, m *model.Model) analyzer.BackendFactory {
	if opts.Factory != nil {
		return opts.Factory
	}
	return analyzer.ModelBackendFactory(m, opts.Config.Analysis.FullScores)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
