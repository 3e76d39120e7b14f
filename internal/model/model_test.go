package model

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testDescriptor = `
frame_length_ms: 100
sample_rate: 8000
footprint:
  model_mb: 64
  kb_per_second: 32
classes:
  - name: low_hum
    semantic: ambient
    low_hz: 0
    high_hz: 300
  - name: wingbeat
    semantic: ins_buzz
    low_hz: 300
    high_hz: 1000
  - name: hiss
    low_hz: 1000
    high_hz: 4000
`

func writeModel(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "bees")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestLoad(t *testing.T) {
	root := writeModel(t, testDescriptor)
	m, err := Load(root, "bees")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "bees" || m.Dir() != filepath.Join(root, "bees") {
		t.Fatalf("unexpected identity %q %q", m.Name, m.Dir())
	}
	if m.FrameLength() != 0.1 || m.FrameSamples() != 800 {
		t.Fatalf("frame = %v s / %d samples", m.FrameLength(), m.FrameSamples())
	}
	if got := strings.Join(m.ClassNames(), ","); got != "low_hum,wingbeat,hiss" {
		t.Fatalf("classes = %s", got)
	}
	if m.SemanticLabel(1) != "ins_buzz" || m.SemanticLabel(2) != "hiss" {
		t.Fatalf("semantic labels wrong: %q %q", m.SemanticLabel(1), m.SemanticLabel(2))
	}
	fp := m.ResourceFootprint()
	if fp.ModelBytes != 64<<20 || fp.BytesPerSecond != 32<<10 {
		t.Fatalf("footprint = %+v", fp)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(t.TempDir(), "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	bad := strings.Replace(testDescriptor, "high_hz: 4000", "high_hz: 9000", 1)
	if _, err := Load(writeModel(t, bad), "bees"); err == nil || !strings.Contains(err.Error(), "outside") {
		t.Fatalf("expected band error, got %v", err)
	}
	dup := strings.Replace(testDescriptor, "name: hiss", "name: wingbeat", 1)
	if _, err := Load(writeModel(t, dup), "bees"); err == nil {
		t.Fatal("expected duplicate class error")
	}
}

func sine(freq float64, rate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(rate)))
	}
	return out
}

func TestSpectralClassifierPicksBand(t *testing.T) {
	m, err := Load(writeModel(t, testDescriptor), "bees")
	if err != nil {
		t.Fatal(err)
	}
	c := NewSpectralClassifier(m)

	tests := []struct {
		freq float64
		want string
	}{
		{100, "low_hum"},
		{500, "wingbeat"},
		{2000, "hiss"},
	}
	for _, tt := range tests {
		frames := c.Classify(sine(tt.freq, 8000, 1600))
		if len(frames) != 2 {
			t.Fatalf("%v Hz: %d frames", tt.freq, len(frames))
		}
		for _, f := range frames {
			idx, score := f.Best()
			if m.Classes[idx].Name != tt.want || score < 0.5 {
				t.Errorf("%v Hz: best = %s (%.2f), want %s", tt.freq, m.Classes[idx].Name, score, tt.want)
			}
		}
	}
}

func TestSpectralClassifierPartialFrame(t *testing.T) {
	m, err := Load(writeModel(t, testDescriptor), "bees")
	if err != nil {
		t.Fatal(err)
	}
	frames := NewSpectralClassifier(m).Classify(sine(500, 8000, 1000))
	if len(frames) != 2 {
		t.Fatalf("frames = %d", len(frames))
	}
	if frames[1].Start != 0.1 || frames[1].End != 0.125 {
		t.Fatalf("partial frame = %v-%v", frames[1].Start, frames[1].End)
	}
	if NewSpectralClassifier(m).Classify(nil) != nil {
		t.Fatal("expected no frames for empty input")
	}
}

func TestSilenceScoresZero(t *testing.T) {
	m, err := Load(writeModel(t, testDescriptor), "bees")
	if err != nil {
		t.Fatal(err)
	}
	frames := NewSpectralClassifier(m).Classify(make([]float32, 800))
	for _, s := range frames[0].Scores {
		if s != 0 {
			t.Fatalf("silence scored %v", frames[0].Scores)
		}
	}
}
