// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing audio streams and format metadata
//   - Prober: reports the duration of an audio file
//
// Helper methods on Result provide convenient access to the audio stream,
// duration parsing, and sample rate extraction.
package ffprobe
