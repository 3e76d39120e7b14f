package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteWAVHeader(t *testing.T) {
	path := WriteWAV(t, filepath.Join(t.TempDir(), "site", "a.wav"), 1.5, 100)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 44+150*2 {
		t.Fatalf("size = %d, want %d", len(data), 44+150*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:16]) != "WAVEfmt " || string(data[36:40]) != "data" {
		t.Fatalf("unexpected header %q", data[:44])
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 100 {
		t.Fatalf("sample rate = %d", rate)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); size != 300 {
		t.Fatalf("data size = %d", size)
	}
}
