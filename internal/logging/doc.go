// Package logging assembles the slog loggers used across buzzbatch and owns the
// run's log sink.
//
// Console output uses the pretty or JSON handlers in this package. During a
// run, every component logs through a handler that forwards records to a
// single Sink goroutine; the sink stamps each record, appends it to the run
// log unconditionally and echoes it to the console only when its verbosity is
// within the configured limit. Verbosity is derived from slog levels: Info and
// above is 0, Debug is 1, Trace is 2.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits the same fields and ends up in the same run log.
package logging
