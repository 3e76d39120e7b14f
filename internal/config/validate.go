package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.InputDir == "" {
		return errors.New("paths.input_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.OutputDir == c.Paths.InputDir {
		return errors.New("paths.output_dir must differ from paths.input_dir")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.Model == "" {
		return errors.New("analysis.model must be set")
	}
	if strings.ContainsAny(c.Analysis.Model, `/\`) || c.Analysis.Model != filepath.Base(c.Analysis.Model) {
		return fmt.Errorf("analysis.model %q must be a directory name under paths.models_dir", c.Analysis.Model)
	}
	if c.Analysis.CPUs < 0 {
		return errors.New("analysis.cpus must be positive")
	}
	if c.Analysis.MemoryGB < 0 {
		return errors.New("analysis.memory_gb must be positive")
	}
	if len(c.Analysis.Formats) == 0 {
		return errors.New("analysis.formats must list at least one extension")
	}
	if strings.ContainsRune(c.Analysis.OutputSuffix, filepath.Separator) {
		return fmt.Errorf("analysis.output_suffix %q must not contain a path separator", c.Analysis.OutputSuffix)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	if c.Logging.Verbosity < 0 {
		return errors.New("logging.verbosity must be 0, 1 or 2")
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}
