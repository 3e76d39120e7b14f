package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPruneRunLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "log 2020-01-01_000000.txt")
	current := filepath.Join(dir, "log 2020-01-02_000000.txt")
	fresh := filepath.Join(dir, "log 2026-01-01_000000.txt")
	other := filepath.Join(dir, "a_buzz.csv")
	for _, p := range []string{old, current, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().AddDate(0, 0, -60)
	for _, p := range []string{old, current, other} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatal(err)
		}
	}

	removed := PruneRunLogs(NewNop(), dir, 30, current)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed", old)
	}
	for _, p := range []string{current, fresh, other} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}
}

func TestPruneRunLogsDisabled(t *testing.T) {
	if got := PruneRunLogs(nil, t.TempDir(), 0, ""); got != 0 {
		t.Fatalf("expected no pruning, got %d", got)
	}
}
