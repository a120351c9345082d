// Package video resolves the recording artifact a run produced. The process
// writing the video gives no completion signal, so detection is purely
// filesystem-observational: poll for candidates, check stability, then
// atomically promote to the caller's filename.
package video

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var videoExtensions = map[string]bool{
	".webm": true,
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
}

// Options are the watcher's timing constants. They are configuration, not
// embedded control flow.
type Options struct {
	Dir            string
	PollInterval   time.Duration
	SettleDelay    time.Duration
	SkewTolerance  time.Duration
	MinStableBytes int64
	MaxDepth       int
}

// Watcher discovers, validates, and renames the video artifact produced by
// the tool backend.
type Watcher struct {
	opts Options
}

// NewWatcher creates a watcher, applying defaults for unset options.
func NewWatcher(opts Options) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 750 * time.Millisecond
	}
	if opts.SkewTolerance <= 0 {
		opts.SkewTolerance = 500 * time.Millisecond
	}
	if opts.MinStableBytes <= 0 {
		opts.MinStableBytes = 50 * 1024
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	return &Watcher{opts: opts}
}

// Result reports whether the artifact was captured. Saved=false is never a
// run failure.
type Result struct {
	Saved bool
	Path  string
}

// candidate is an observed video file; at most one per run is promoted.
type candidate struct {
	path    string
	modTime time.Time
	size    int64
}

// Resolve searches for the recording written at or after runStart and
// renames it to desiredFilename under the video root. The two-tier
// stability check trades off grabbing a still-growing file against
// discarding a short but valid recording.
func (w *Watcher) Resolve(ctx context.Context, runStart time.Time, desiredFilename string, timeout time.Duration) Result {
	target := filepath.Join(w.opts.Dir, desiredFilename)
	cutoff := runStart.Add(-w.opts.SkewTolerance)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if c := w.newestCandidate(cutoff, target); c != nil && c.size >= w.opts.MinStableBytes {
			if w.stable(ctx, c) {
				return w.promote(c, target)
			}
		}
		if !sleepCtx(ctx, w.opts.PollInterval) {
			break
		}
	}

	// Fallback tier: accept any non-zero stable file, so very short runs do
	// not lose their legitimately small recording.
	if c := w.newestCandidate(cutoff, target); c != nil && c.size > 0 {
		if w.stable(ctx, c) {
			return w.promote(c, target)
		}
	}

	return Result{Saved: false}
}

// newestCandidate scans the video root (recursed up to MaxDepth levels to
// tolerate per-session subfolders) for the newest video file modified at or
// after the cutoff.
func (w *Watcher) newestCandidate(cutoff time.Time, target string) *candidate {
	var newest *candidate

	root := filepath.Clean(w.opts.Dir)
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if depth(root, path) > w.opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if path == target {
			return nil
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			return nil
		}
		if newest == nil || info.ModTime().After(newest.modTime) {
			newest = &candidate{path: path, modTime: info.ModTime(), size: info.Size()}
		}
		return nil
	})

	return newest
}

// stable re-checks the candidate's size after the settle delay and accepts
// it only if unchanged, to avoid grabbing a file mid-write.
func (w *Watcher) stable(ctx context.Context, c *candidate) bool {
	if !sleepCtx(ctx, w.opts.SettleDelay) {
		return false
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return false
	}
	return info.Size() == c.size
}

func (w *Watcher) promote(c *candidate, target string) Result {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		log.Printf("ERROR: failed to create video directory: %v", err)
		return Result{Saved: false}
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: failed to remove stale video at %s: %v", target, err)
	}
	if err := os.Rename(c.path, target); err != nil {
		log.Printf("ERROR: failed to promote video %s -> %s: %v", c.path, target, err)
		return Result{Saved: false}
	}
	return Result{Saved: true, Path: target}
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
