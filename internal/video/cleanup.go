package video

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Janitor deletes recordings older than the retention window on a fixed
// interval.
type Janitor struct {
	dir       string
	retention time.Duration
	interval  time.Duration
}

// NewJanitor creates a janitor over the video root.
func NewJanitor(dir string, retentionDays int, interval time.Duration) *Janitor {
	return &Janitor{
		dir:       dir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
	}
}

// Run sweeps until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	for {
		deleted, err := j.Sweep()
		if err != nil {
			log.Printf("ERROR: video cleanup failed: %v", err)
		} else if deleted > 0 {
			log.Printf("video cleanup completed: %d video(s) deleted", deleted)
		}

		select {
		case <-time.After(j.interval):
		case <-ctx.Done():
			return
		}
	}
}

// Sweep deletes videos older than the retention window and returns how many
// were removed.
func (j *Janitor) Sweep() (int, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-j.retention)
	deleted := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("ERROR: failed to delete old video %s: %v", entry.Name(), err)
			continue
		}
		deleted++
		log.Printf("deleted old video: %s (age: %s)", entry.Name(), time.Since(info.ModTime()).Round(time.Hour))
	}

	return deleted, nil
}
