package decode

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestParseF32LE(t *testing.T) {
	raw := make([]byte, 12)
	for i, v := range []float32{0.5, -1, 0.25} {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	got, err := ParseF32LE(raw)
	if err != nil {
		t.Fatalf("ParseF32LE: %v", err)
	}
	if len(got) != 3 || got[0] != 0.5 || got[1] != -1 || got[2] != 0.25 {
		t.Fatalf("samples = %v", got)
	}
	if _, err := ParseF32LE(raw[:5]); err == nil {
		t.Fatal("expected error for truncated stream")
	}
}

func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecodePassesSpanAndParsesOutput(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	// Eight zero bytes are two silent float32 samples.
	bin := fakeFFmpeg(t, `echo "$@" > `+argsFile+`
printf '\000\000\000\000\000\000\000\000'`)
	samples, err := FFmpeg{Binary: bin, SampleRate: 16000}.Decode(context.Background(), "/in/a.wav", 5, 7.5)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("samples = %v", samples)
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"-ss 5.000", "-t 2.500", "-i /in/a.wav", "-ar 16000", "-f f32le"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	d := FFmpeg{Binary: fakeFFmpeg(t, "echo 'Invalid data found' >&2\nexit 1"), SampleRate: 16000}
	if _, err := d.Decode(context.Background(), "/in/a.wav", 0, 1); err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected ffmpeg stderr in error, got %v", err)
	}
	if _, err := d.Decode(context.Background(), "/in/a.wav", 2, 2); err == nil {
		t.Fatal("expected error for empty span")
	}
	empty := FFmpeg{Binary: fakeFFmpeg(t, "exit 0"), SampleRate: 16000}
	if _, err := empty.Decode(context.Background(), "/in/a.wav", 0, 1); err == nil {
		t.Fatal("expected error when ffmpeg yields no samples")
	}
}
