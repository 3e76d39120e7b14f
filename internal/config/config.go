package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input, output, and model directory configuration.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	ModelsDir string `toml:"models_dir"`
}

// Analysis contains the knobs of the batch analysis itself.
type Analysis struct {
	Model string `toml:"model"`
	// CPUs caps the number of concurrent analyzer workers. 0 uses every CPU.
	CPUs int `toml:"cpus"`
	// MemoryGB is the memory budget shared by all workers. 0 uses half of
	// physical memory.
	MemoryGB float64 `toml:"memory_gb"`
	// Pad keeps trailing gaps shorter than one frame instead of dropping them.
	Pad bool `toml:"pad"`
	// FullScores writes one score column per raw model class instead of the
	// best semantic class only.
	FullScores    bool     `toml:"full_scores"`
	Formats       []string `toml:"formats"`
	OutputSuffix  string   `toml:"output_suffix"`
	FFmpegBinary  string   `toml:"ffmpeg_binary"`
	FFprobeBinary string   `toml:"ffprobe_binary"`
}

// Logging contains configuration for console output and the run log.
type Logging struct {
	Format string `toml:"format"`
	// Verbosity bounds console output: 0 info and above, 1 adds debug, 2 adds trace.
	Verbosity     int `toml:"verbosity"`
	RetentionDays int `toml:"retention_days"`
	MaxLogMB      int `toml:"max_log_mb"`
}

// Metrics controls the Prometheus textfile written at the end of a run.
type Metrics struct {
	Enabled  bool   `toml:"enabled"`
	Textfile string `toml:"textfile"`
}

// Ledger controls the SQLite run history.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for buzzbatch.
//
// Configuration sections by subsystem:
//   - Paths: input tree, output root and model directory
//   - Analysis: model, resource budget and output table shape
//   - Logging: console format, verbosity and run log retention
//   - Metrics: Prometheus textfile output
//   - Ledger: SQLite run history
type Config struct {
	Paths    Paths    `toml:"paths"`
	Analysis Analysis `toml:"analysis"`
	Logging  Logging  `toml:"logging"`
	Metrics  Metrics  `toml:"metrics"`
	Ledger   Ledger   `toml:"ledger"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// Finalize normalizes derived values and validates the result. Callers that
// mutate a loaded config (for example from command line flags) call it again.
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("buzzbatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ModelDir returns the directory holding the configured model.
func (c *Config) ModelDir() string {
	return filepath.Join(c.Paths.ModelsDir, c.Analysis.Model)
}

// LockPath returns the path of the lock file guarding the output root.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.OutputDir, ".buzzbatch.lock")
}

// EnsureDirectories creates the output root.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.OutputDir, err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
