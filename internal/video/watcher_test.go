package video

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fastWatcher(dir string) *Watcher {
	return NewWatcher(Options{
		Dir:          dir,
		PollInterval: 5 * time.Millisecond,
		SettleDelay:  10 * time.Millisecond,
	})
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWatcherPromotesNewestStableFile(t *testing.T) {
	dir := t.TempDir()
	runStart := time.Now()

	// A recording from a previous run must never be picked up.
	old := filepath.Join(dir, "previous_run.webm")
	writeFile(t, old, 200*1024)
	if err := os.Chtimes(old, runStart.Add(-time.Hour), runStart.Add(-time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	fresh := filepath.Join(dir, "session", "page-recording.webm")
	writeFile(t, fresh, 200*1024)

	result := fastWatcher(dir).Resolve(context.Background(), runStart, "run_abc.webm", time.Second)

	if !result.Saved {
		t.Fatalf("expected the recording to be saved")
	}
	want := filepath.Join(dir, "run_abc.webm")
	if result.Path != want {
		t.Fatalf("expected path %s, got %s", want, result.Path)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("promoted file missing: %v", err)
	}
	if _, err := os.Stat(fresh); !os.IsNotExist(err) {
		t.Fatalf("source file should have been renamed away")
	}
	if _, err := os.Stat(old); err != nil {
		t.Fatalf("old recording must be untouched: %v", err)
	}
}

func TestWatcherFallbackAcceptsSmallStableFile(t *testing.T) {
	dir := t.TempDir()
	runStart := time.Now()

	// 5 bytes never reaches the size threshold, so the main tier rejects
	// it for the whole window and the fallback picks it up.
	small := filepath.Join(dir, "tiny.webm")
	writeFile(t, small, 5)

	result := fastWatcher(dir).Resolve(context.Background(), runStart, "run_tiny.webm", 50*time.Millisecond)

	if !result.Saved {
		t.Fatalf("expected the small recording to be saved by the fallback tier")
	}
	if result.Path != filepath.Join(dir, "run_tiny.webm") {
		t.Fatalf("unexpected path: %s", result.Path)
	}
}

func TestWatcherNothingFound(t *testing.T) {
	dir := t.TempDir()

	// A non-video file is not a candidate.
	writeFile(t, filepath.Join(dir, "notes.txt"), 100*1024)

	result := fastWatcher(dir).Resolve(context.Background(), time.Now(), "run_x.webm", 30*time.Millisecond)
	if result.Saved {
		t.Fatalf("expected no recording, got %s", result.Path)
	}
}

func TestWatcherIgnoresEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty.webm"), 0)

	result := fastWatcher(dir).Resolve(context.Background(), time.Now(), "run_x.webm", 30*time.Millisecond)
	if result.Saved {
		t.Fatalf("zero-byte files must never be promoted")
	}
}

func TestWatcherSkipsTooDeepDirectories(t *testing.T) {
	dir := t.TempDir()
	runStart := time.Now()

	deep := filepath.Join(dir, "a", "b", "c", "d", "buried.webm")
	writeFile(t, deep, 200*1024)

	w := NewWatcher(Options{
		Dir:          dir,
		PollInterval: 5 * time.Millisecond,
		SettleDelay:  10 * time.Millisecond,
		MaxDepth:     3,
	})
	result := w.Resolve(context.Background(), runStart, "run_x.webm", 30*time.Millisecond)
	if result.Saved {
		t.Fatalf("files beyond the depth limit must be ignored")
	}
}
