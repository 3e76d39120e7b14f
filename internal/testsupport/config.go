package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"buzzbatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a finalized config seeded with unique temp directories
// per test. CPUs and memory are fixed so results do not depend on the host.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputDir = filepath.Join(base, "input")
	cfgVal.Paths.ModelsDir = filepath.Join(base, "models")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Analysis.CPUs = 1
	cfgVal.Analysis.MemoryGB = 1
	cfgVal.Logging.Verbosity = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := os.MkdirAll(builder.cfg.Paths.InputDir, 0o755); err != nil {
		t.Fatalf("mkdir input dir: %v", err)
	}
	if err := builder.cfg.Finalize(); err != nil {
		t.Fatalf("finalize config: %v", err)
	}
	return builder.cfg
}

// WithResources fixes the worker cap and memory budget.
func WithResources(cpus int, memoryGB float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.CPUs = cpus
		b.cfg.Analysis.MemoryGB = memoryGB
	}
}

// WithModel selects the model name.
func WithModel(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.Model = name
	}
}

// WithLedger enables the run ledger at its default location.
func WithLedger(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Enabled = enabled
	}
}

// WithMetrics enables the metrics textfile at its default location.
func WithMetrics(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.Enabled = enabled
	}
}

// WithStubbedBinaries stubs binaries in a bin directory under the config's
// temp root. See StubBinaries.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		StubBinaries(b.t, filepath.Join(b.baseDir, "bin"), names...)
	}
}

// StubBinaries writes stub executables for the provided names into binDir and
// prepends it to PATH for the rest of the test. If names is empty, ffmpeg and
// ffprobe are stubbed.
func StubBinaries(t testing.TB, binDir string, names ...string) {
	t.Helper()
	if len(names) == 0 {
		names = []string{"ffmpeg", "ffprobe"}
	}
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	script := []byte("#!/bin/sh\nexit 0\n")
	for _, name := range names {
		target := filepath.Join(binDir, name)
		if err := os.WriteFile(target, script, 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InputDir)
}
