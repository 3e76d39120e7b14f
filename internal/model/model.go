package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"buzzbatch/internal/resources"
)

// FileName is the descriptor file expected in every model directory.
const FileName = "model.yaml"

// Class is one raw class scored by the classifier. Its score is the share of
// spectral energy between LowHz and HighHz.
type Class struct {
	Name     string  `yaml:"name"`
	Semantic string  `yaml:"semantic"`
	LowHz    float64 `yaml:"low_hz"`
	HighHz   float64 `yaml:"high_hz"`
}

// Footprint declares memory use per worker.
type Footprint struct {
	ModelMB     float64 `yaml:"model_mb"`
	KBPerSecond float64 `yaml:"kb_per_second"`
}

// Model describes a model directory.
type Model struct {
	Name          string    `yaml:"name"`
	FrameLengthMS int       `yaml:"frame_length_ms"`
	SampleRate    int       `yaml:"sample_rate"`
	Footprint     Footprint `yaml:"footprint"`
	Classes       []Class   `yaml:"classes"`

	dir string
}

// Load reads <modelsDir>/<name>/model.yaml.
func Load(modelsDir, name string) (*Model, error) {
	dir := filepath.Join(modelsDir, name)
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("model %q not found in %s", name, modelsDir)
		}
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Join(dir, FileName), err)
	}
	if strings.TrimSpace(m.Name) == "" {
		m.Name = name
	}
	m.dir = dir
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	return &m, nil
}

// Validate checks that the descriptor is usable.
func (m *Model) Validate() error {
	if m.FrameLengthMS <= 0 {
		return errors.New("frame_length_ms must be positive")
	}
	if m.SampleRate <= 0 {
		return errors.New("sample_rate must be positive")
	}
	if len(m.Classes) == 0 {
		return errors.New("at least one class is required")
	}
	seen := make(map[string]struct{}, len(m.Classes))
	nyquist := float64(m.SampleRate) / 2
	for i, class := range m.Classes {
		if class.Name == "" {
			return fmt.Errorf("class %d has no name", i)
		}
		if _, dup := seen[class.Name]; dup {
			return fmt.Errorf("class %q declared twice", class.Name)
		}
		seen[class.Name] = struct{}{}
		if class.LowHz < 0 || class.HighHz <= class.LowHz || class.HighHz > nyquist {
			return fmt.Errorf("class %q band %v-%v Hz is outside 0-%v Hz", class.Name, class.LowHz, class.HighHz, nyquist)
		}
	}
	return nil
}

// Dir returns the directory the model was loaded from.
func (m *Model) Dir() string {
	return m.dir
}

// FrameLength returns the analysis frame length in seconds.
func (m *Model) FrameLength() float64 {
	return float64(m.FrameLengthMS) / 1000
}

// FrameSamples returns the number of samples in one frame.
func (m *Model) FrameSamples() int {
	return m.FrameLengthMS * m.SampleRate / 1000
}

// ClassNames returns the raw class names in declaration order.
func (m *Model) ClassNames() []string {
	out := make([]string, len(m.Classes))
	for i, class := range m.Classes {
		out[i] = class.Name
	}
	return out
}

// SemanticLabel returns the semantic label of raw class i, falling back to the
// raw name.
func (m *Model) SemanticLabel(i int) string {
	if label := strings.TrimSpace(m.Classes[i].Semantic); label != "" {
		return label
	}
	return m.Classes[i].Name
}

// ResourceFootprint converts the declared footprint for the resource solver.
// Zero values fall back to the solver defaults.
func (m *Model) ResourceFootprint() resources.Footprint {
	fp := resources.DefaultFootprint()
	if m.Footprint.ModelMB > 0 {
		fp.ModelBytes = uint64(m.Footprint.ModelMB * (1 << 20))
	}
	if m.Footprint.KBPerSecond > 0 {
		fp.BytesPerSecond = uint64(m.Footprint.KBPerSecond * (1 << 10))
	}
	return fp
}
