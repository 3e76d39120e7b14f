package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"buzzbatch/internal/batch"
	"buzzbatch/internal/coverage"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var paths []string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the chunks the next analyze run would process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := consoleLogger(cmd, cfg)
			if err != nil {
				return err
			}
			plan, err := batch.Prepare(cmd.Context(), batch.Options{Config: cfg, Paths: paths, Logger: logger})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(plan.Inputs) == 0 {
				fmt.Fprintf(out, "No audio files found under %s\n", cfg.Paths.InputDir)
				return nil
			}
			fmt.Fprintln(out, renderPlan(cfg.Paths.InputDir, plan))
			fmt.Fprintf(out, "Workers: %d  Chunk length: %s  Chunks: %d  Pending: %s\n",
				plan.Workers(), formatSeconds(plan.Solution.ChunkLength), plan.Chunks,
				time.Duration(plan.Pending*float64(time.Second)).Round(time.Second).String())
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&paths, "path", nil, "Plan only this file (repeatable)")
	return cmd
}

func renderPlan(inputRoot string, plan *batch.Plan) string {
	headers := []string{"File", "Duration", "Covered", "Gaps", "Chunks", "Status"}
	rows := make([][]string, 0, len(plan.Files))
	for _, f := range plan.Files {
		name := f.Path
		if rel, err := filepath.Rel(inputRoot, f.Path); err == nil {
			name = rel
		}
		if f.Err != nil {
			rows = append(rows, []string{name, "-", "-", "-", "-", "skipped: " + f.Err.Error()})
			continue
		}
		status := "pending"
		if f.Complete() {
			status = "complete"
		}
		rows = append(rows, []string{
			name,
			formatSeconds(f.Duration),
			formatSeconds(coverage.Total(f.Covered)),
			fmt.Sprintf("%d", len(f.Gaps)),
			fmt.Sprintf("%d", len(f.Chunks)),
			status,
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft})
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%.1fs", v)
}
