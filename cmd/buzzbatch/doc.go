// Package main hosts the buzzbatch CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration, applies flag
// overrides, and hands off to internal/batch for planning and analysis. The
// plan and history commands only read state; analyze is the one command that
// writes results.
package main
