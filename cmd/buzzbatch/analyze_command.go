package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"buzzbatch/internal/batch"
	"buzzbatch/internal/config"
)

type analyzeFlags struct {
	inputDir   string
	outputDir  string
	model      string
	cpus       int
	memoryGB   float64
	pad        bool
	fullScores bool
	verbosity  int
	logFormat  string
	paths      []string
	progress   bool
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyse every uncovered span of the input tree",
		Long: "Analyse audio files under the input directory, appending results to the\n" +
			"mirrored output tables. Spans already present in a table are skipped, so an\n" +
			"interrupted run resumes where it stopped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ApplyOverrides(flags.overrides(cmd)); err != nil {
				return fmt.Errorf("apply flags: %w", err)
			}
			logger, err := consoleLogger(cmd, cfg)
			if err != nil {
				return err
			}

			summary, err := batch.Run(cmd.Context(), batch.Options{
				Config:   cfg,
				Paths:    flags.paths,
				Logger:   logger,
				Console:  cmd.OutOrStdout(),
				Progress: flags.progress,
			})
			if err != nil {
				if hint := batch.Hint(err); hint != "" {
					return fmt.Errorf("%w (hint: %s)", err, hint)
				}
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, summary.Describe())
			if summary.Outcome == batch.OutcomeCompleted {
				fmt.Fprint(out, renderSummary(summary))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.inputDir, "input", "", "Input directory (overrides paths.input_dir)")
	f.StringVar(&flags.outputDir, "output", "", "Output root (overrides paths.output_dir)")
	f.StringVar(&flags.model, "model", "", "Model name under paths.models_dir")
	f.IntVar(&flags.cpus, "cpus", 0, "Maximum number of analyzer workers")
	f.Float64Var(&flags.memoryGB, "memory-gb", 0, "Memory budget in GiB shared by all workers")
	f.BoolVar(&flags.pad, "pad", false, "Keep trailing gaps shorter than one frame")
	f.BoolVar(&flags.fullScores, "full-scores", false, "Write one score column per model class")
	f.IntVarP(&flags.verbosity, "verbosity", "v", 0, "Console verbosity: 0 info, 1 debug, 2 trace")
	f.StringVar(&flags.logFormat, "log-format", "", "Console log format: console or json")
	f.StringArrayVar(&flags.paths, "path", nil, "Analyse only this file (repeatable)")
	f.BoolVar(&flags.progress, "progress", true, "Show a progress bar when stderr is a terminal")
	return cmd
}

func (f *analyzeFlags) overrides(cmd *cobra.Command) config.Overrides {
	changed := cmd.Flags().Changed
	var o config.Overrides
	if changed("input") {
		o.InputDir = &f.inputDir
	}
	if changed("output") {
		o.OutputDir = &f.outputDir
	}
	if changed("model") {
		o.Model = &f.model
	}
	if changed("cpus") {
		o.CPUs = &f.cpus
	}
	if changed("memory-gb") {
		o.MemoryGB = &f.memoryGB
	}
	if changed("pad") {
		o.Pad = &f.pad
	}
	if changed("full-scores") {
		o.FullScores = &f.fullScores
	}
	if changed("verbosity") {
		o.Verbosity = &f.verbosity
	}
	if changed("log-format") {
		o.LogFormat = &f.logFormat
	}
	return o
}

func renderSummary(s batch.Summary) string {
	rows := [][]string{
		{"Run", s.RunID},
		{"Workers", fmt.Sprintf("%d", s.Workers)},
		{"Chunk length", formatSeconds(s.ChunkLength)},
		{"Chunks written", fmt.Sprintf("%d / %d", s.Written, s.Chunks)},
		{"Chunks abandoned", fmt.Sprintf("%d", s.Abandoned)},
		{"Rows", fmt.Sprintf("%d", s.Rows)},
		{"Files skipped", fmt.Sprintf("%d", s.Skipped)},
		{"Run log", s.LogPath},
	}
	return renderKeyValues(rows) + "\n"
}
