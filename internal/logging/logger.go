package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"buzzbatch/internal/config"
)

// LevelTrace is below Debug and carries per-request scheduling chatter.
const LevelTrace = slog.LevelDebug - 4

// Options describes console logger construction parameters.
type Options struct {
	Level       string
	Format      string
	Writer      io.Writer
	Development bool
}

// New constructs a console logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	handler, err := NewConsoleHandler(writer, opts.Format, level, opts.Development || level <= slog.LevelDebug)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

// NewFromConfig creates a console logger honouring the configured format and
// verbosity. It is used before a run's sink exists and by commands that never
// start one.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	handler, err := NewConsoleHandler(os.Stdout, cfg.Logging.Format, LevelForVerbosity(cfg.Logging.Verbosity), false)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

// NewConsoleHandler returns the console (pretty) or JSON handler.
func NewConsoleHandler(w io.Writer, format string, level slog.Level, addSource bool) (slog.Handler, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		return newPrettyHandler(w, levelVar, addSource), nil
	case "json":
		return newJSONHandler(w, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
}

// Verbosity maps a slog level onto the run's integer verbosity scale where a
// lower number is more critical.
func Verbosity(level slog.Level) int {
	switch {
	case level >= slog.LevelInfo:
		return 0
	case level >= slog.LevelDebug:
		return 1
	default:
		return 2
	}
}

// LevelForVerbosity returns the lowest slog level visible at verbosity v.
func LevelForVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelInfo
	case v == 1:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	case level >= slog.LevelDebug:
		return "DEBUG"
	default:
		return "TRACE"
	}
}
