package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"buzzbatch/internal/batch"
	"buzzbatch/internal/coverage"
	"buzzbatch/internal/ledger"
	"buzzbatch/internal/scheduler"
	"buzzbatch/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	inputDir   string
	outputDir  string
	modelsDir  string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		inputDir:   filepath.Join(base, "in"),
		outputDir:  filepath.Join(base, "out"),
		modelsDir:  filepath.Join(base, "models"),
	}
	if err := os.MkdirAll(env.inputDir, 0o755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}
	testsupport.WriteModel(t, env.modelsDir, "general", testsupport.ModelOptions{ModelMB: 1, KBPerSecond: 1024})
	testsupport.StubBinaries(t, filepath.Join(base, "bin"))

	content := fmt.Sprintf(`[paths]
input_dir = %q
output_dir = %q
models_dir = %q

[analysis]
cpus = 1
memory_gb = 1.0
`, env.inputDir, env.outputDir, env.modelsDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestAnalyzeWithNoInput(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"analyze", "--progress=false"}, env.configPath)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	requireContains(t, out, "no audio files found")
}

func TestAnalyzeRejectsBadFlags(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"analyze", "--log-format", "xml"}, env.configPath)
	if err == nil {
		t.Fatal("expected invalid log format to fail")
	}
	requireContains(t, err.Error(), "logging.format")
}

func TestAnalyzeMissingModelIsConfigurationError(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"analyze", "--model", "owls"}, env.configPath)
	if err == nil {
		t.Fatal("expected missing model to fail")
	}
	requireContains(t, err.Error(), "configuration error")
	requireContains(t, err.Error(), "hint:")
}

func TestPlanWithNoInput(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"plan"}, env.configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "No audio files found")
}

func TestRenderHistory(t *testing.T) {
	rendered := renderHistory([]ledger.Run{{
		ID:         "0123456789abcdef",
		Model:      "general",
		Workers:    2,
		Chunks:     4,
		Written:    3,
		Abandoned:  1,
		Rows:       120,
		Status:     ledger.RunCompleted,
		StartedAt:  time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 5, 1, 8, 1, 30, 0, time.UTC),
	}})
	requireContains(t, rendered, "01234567")
	requireContains(t, rendered, "1m30s")
	requireContains(t, rendered, "completed")
}

func TestRenderPlan(t *testing.T) {
	plan := &batch.Plan{Files: []batch.FilePlan{
		{AudioFile: scheduler.PlanFile("/in/a.wav", 25, []coverage.Interval{{Start: 0, End: 5}}, 1, 10, false)},
		{AudioFile: scheduler.AudioFile{Path: "/in/b.wav"}, Err: fmt.Errorf("no audio stream")},
	}}
	rendered := renderPlan("/in", plan)
	requireContains(t, rendered, "a.wav")
	requireContains(t, rendered, "25.0s")
	requireContains(t, rendered, "pending")
	requireContains(t, rendered, "skipped: no audio stream")
}

func TestHistoryListsRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	store, err := ledger.Open(filepath.Join(env.outputDir, "ledger.db"))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	ctx := context.Background()
	if err := store.BeginRun(ctx, ledger.Run{ID: "feedfacecafe", Model: "general", InputDir: env.inputDir, OutputDir: env.outputDir, Workers: 1, ChunkLength: 10}); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.FinishRun(ctx, "feedfacecafe", nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	_ = store.Close()

	out, _, err = runCLI(t, []string{"history", "--limit", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "feedface")
	requireContains(t, out, "completed")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.outputDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}
