package config

import "path/filepath"

// Overrides carries command line values that replace configured ones. Nil
// fields leave the config untouched.
type Overrides struct {
	InputDir   *string
	OutputDir  *string
	Model      *string
	CPUs       *int
	MemoryGB   *float64
	Pad        *bool
	FullScores *bool
	Verbosity  *int
	LogFormat  *string
}

// ApplyOverrides replaces configured values and finalizes the config again.
// Paths that were derived from the output directory or the model name follow
// the new values unless they were set explicitly.
func (c *Config) ApplyOverrides(o Overrides) error {
	outputDerived := c.Paths.OutputDir == filepath.Join(c.Paths.ModelsDir, c.Analysis.Model, "output")
	ledgerDerived := c.Ledger.Path == filepath.Join(c.Paths.OutputDir, defaultLedgerFile)
	metricsDerived := c.Metrics.Textfile == filepath.Join(c.Paths.OutputDir, defaultMetricsTextfile)
	previousOutput := c.Paths.OutputDir

	if o.InputDir != nil {
		c.Paths.InputDir = *o.InputDir
	}
	if o.Model != nil {
		c.Analysis.Model = *o.Model
		if o.OutputDir == nil && outputDerived {
			c.Paths.OutputDir = ""
		}
	}
	if o.OutputDir != nil {
		c.Paths.OutputDir = *o.OutputDir
	}
	if o.CPUs != nil {
		c.Analysis.CPUs = *o.CPUs
	}
	if o.MemoryGB != nil {
		c.Analysis.MemoryGB = *o.MemoryGB
	}
	if o.Pad != nil {
		c.Analysis.Pad = *o.Pad
	}
	if o.FullScores != nil {
		c.Analysis.FullScores = *o.FullScores
	}
	if o.Verbosity != nil {
		c.Logging.Verbosity = *o.Verbosity
	}
	if o.LogFormat != nil {
		c.Logging.Format = *o.LogFormat
	}

	if c.Paths.OutputDir != previousOutput {
		if ledgerDerived {
			c.Ledger.Path = ""
		}
		if metricsDerived {
			c.Metrics.Textfile = ""
		}
	}
	return c.Finalize()
}
