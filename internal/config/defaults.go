package config

import (
	"runtime"

	"buzzbatch/internal/resources"
)

const (
	defaultConfigPath       = "~/.config/buzzbatch/config.toml"
	defaultInputDir         = "./audio_in"
	defaultModelsDir        = "./models"
	defaultModel            = "general"
	defaultOutputSuffix     = "_buzz.csv"
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultLogFormat        = "console"
	defaultVerbosity        = 1
	defaultLogRetentionDays = 30
	defaultMaxLogMB         = 100
	defaultMetricsTextfile  = "metrics.prom"
	defaultLedgerFile       = "ledger.db"
	defaultMemoryShare      = 0.5
	maxVerbosity            = 2
)

var defaultFormats = []string{"wav", "mp3", "flac", "ogg", "m4a", "aac", "opus"}

// systemMemory is replaced in tests.
var systemMemory = resources.SystemMemory

// cpuCount is replaced in tests.
var cpuCount = runtime.NumCPU

// Default returns a Config populated with repository defaults. Host-dependent
// values (CPUs, memory, output directory) are left zero and filled in by
// normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			ModelsDir: defaultModelsDir,
		},
		Analysis: Analysis{
			Model:         defaultModel,
			Formats:       append([]string(nil), defaultFormats...),
			OutputSuffix:  defaultOutputSuffix,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Verbosity:     defaultVerbosity,
			RetentionDays: defaultLogRetentionDays,
			MaxLogMB:      defaultMaxLogMB,
		},
		Ledger: Ledger{
			Enabled: true,
		},
	}
}
