package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeAnalysis(); err != nil {
		return err
	}
	c.normalizeLogging()
	return c.normalizeOutputs()
}

func (c *Config) normalizePaths() error {
	var err error
	c.Analysis.Model = strings.TrimSpace(c.Analysis.Model)
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		c.Paths.InputDir = defaultInputDir
	}
	if c.Paths.InputDir, err = expandPath(c.Paths.InputDir); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ModelsDir) == "" {
		c.Paths.ModelsDir = defaultModelsDir
	}
	if c.Paths.ModelsDir, err = expandPath(c.Paths.ModelsDir); err != nil {
		return fmt.Errorf("paths.models_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" && c.Analysis.Model != "" {
		c.Paths.OutputDir = filepath.Join(c.Paths.ModelsDir, c.Analysis.Model, "output")
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAnalysis() error {
	if c.Analysis.CPUs == 0 {
		c.Analysis.CPUs = cpuCount()
	}
	if c.Analysis.MemoryGB == 0 {
		total, err := systemMemory()
		if err != nil {
			return fmt.Errorf("analysis.memory_gb: not set and physical memory unknown: %w", err)
		}
		c.Analysis.MemoryGB = float64(total) * defaultMemoryShare / (1 << 30)
	}

	formats := make([]string, 0, len(c.Analysis.Formats))
	seen := make(map[string]struct{}, len(c.Analysis.Formats))
	for _, format := range c.Analysis.Formats {
		format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
		if format == "" {
			continue
		}
		if _, ok := seen[format]; ok {
			continue
		}
		seen[format] = struct{}{}
		formats = append(formats, format)
	}
	c.Analysis.Formats = formats

	c.Analysis.OutputSuffix = strings.TrimSpace(c.Analysis.OutputSuffix)
	if c.Analysis.OutputSuffix == "" {
		c.Analysis.OutputSuffix = defaultOutputSuffix
	}
	c.Analysis.FFmpegBinary = strings.TrimSpace(c.Analysis.FFmpegBinary)
	if c.Analysis.FFmpegBinary == "" {
		c.Analysis.FFmpegBinary = defaultFFmpegBinary
	}
	c.Analysis.FFprobeBinary = strings.TrimSpace(c.Analysis.FFprobeBinary)
	if c.Analysis.FFprobeBinary == "" {
		c.Analysis.FFprobeBinary = defaultFFprobeBinary
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Verbosity > maxVerbosity {
		c.Logging.Verbosity = maxVerbosity
	}
	if c.Logging.MaxLogMB <= 0 {
		c.Logging.MaxLogMB = defaultMaxLogMB
	}
}

func (c *Config) normalizeOutputs() error {
	var err error
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Textfile) == "" {
		c.Metrics.Textfile = filepath.Join(c.Paths.OutputDir, defaultMetricsTextfile)
	}
	if c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	if c.Ledger.Enabled && strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = filepath.Join(c.Paths.OutputDir, defaultLedgerFile)
	}
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}
