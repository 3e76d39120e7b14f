package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// ModelOptions describes a minimal model descriptor for tests.
type ModelOptions struct {
	FrameLengthMS int
	SampleRate    int
	ModelMB       float64
	KBPerSecond   float64
}

// WriteModel writes <modelsDir>/<name>/model.yaml with a single "buzz" class
// covering the whole band.
func WriteModel(t testing.TB, modelsDir, name string, opts ModelOptions) string {
	t.Helper()

	if opts.FrameLengthMS <= 0 {
		opts.FrameLengthMS = 1000
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 100
	}
	dir := filepath.Join(modelsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir model dir: %v", err)
	}
	content := fmt.Sprintf(`name: %s
frame_length_ms: %d
sample_rate: %d
footprint:
  model_mb: %g
  kb_per_second: %g
classes:
  - name: buzz
    semantic: insect
    low_hz: 0
    high_hz: %g
`, name, opts.FrameLengthMS, opts.SampleRate, opts.ModelMB, opts.KBPerSecond, float64(opts.SampleRate)/2)
	path := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}
