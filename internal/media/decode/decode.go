// Package decode turns a span of an audio file into mono float32 PCM using
// ffmpeg.
package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"
)

// FFmpeg decodes spans through an ffmpeg binary.
type FFmpeg struct {
	Binary     string
	SampleRate int
}

// Decode returns the samples of path between start and end seconds, mixed
// down to mono at d.SampleRate.
func (d FFmpeg) Decode(ctx context.Context, path string, start, end float64) ([]float32, error) {
	if end <= start {
		return nil, fmt.Errorf("decode %s: empty span %.3f-%.3f", path, start, end)
	}
	if d.SampleRate <= 0 {
		return nil, errors.New("decode: sample rate must be positive")
	}
	binary := strings.TrimSpace(d.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", end-start),
		"-i", path,
		"-map", "0:a:0",
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", d.SampleRate),
		"-f", "f32le",
		"-",
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	samples, err := ParseF32LE(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("ffmpeg decode %s: no samples in %.3f-%.3f", path, start, end)
	}
	return samples, nil
}

// ParseF32LE converts raw little-endian float32 PCM into samples.
func ParseF32LE(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("pcm stream truncated: %d bytes", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
