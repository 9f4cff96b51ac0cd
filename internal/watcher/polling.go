package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// snapshotRefs records the state of HEAD, packed-refs and every file under
// refs/ in gitDir. Unreadable entries are skipped.
func snapshotRefs(gitDir string) map[string]fileSnapshot {
	state := make(map[string]fileSnapshot)
	record := func(abs string, info fs.FileInfo) {
		rel, err := filepath.Rel(gitDir, abs)
		if err != nil {
			return
		}
		rel = filepath.ToSlash(rel)
		if !IsRefPath(rel) {
			return
		}
		state[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}

	for _, name := range []string{"HEAD", "packed-refs"} {
		p := filepath.Join(gitDir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			record(p, info)
		}
	}
	_ = filepath.WalkDir(filepath.Join(gitDir, "refs"), func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			record(p, info)
		}
		return nil
	})
	return state
}

// diffSnapshots returns the events that turn prev into cur.
func diffSnapshots(prev, cur map[string]fileSnapshot, now time.Time) []RefEvent {
	var events []RefEvent
	for p, snap := range cur {
		old, ok := prev[p]
		switch {
		case !ok:
			events = append(events, RefEvent{Path: p, Operation: OpCreate, Timestamp: now})
		case old != snap:
			events = append(events, RefEvent{Path: p, Operation: OpModify, Timestamp: now})
		}
	}
	for p := range prev {
		if _, ok := cur[p]; !ok {
			events = append(events, RefEvent{Path: p, Operation: OpDelete, Timestamp: now})
		}
	}
	return events
}

// poll rescans the ref files every interval and feeds differences to add.
// It is the fallback for file systems where fsnotify is unavailable.
func poll(ctx context.Context, stop <-chan struct{}, gitDir string, interval time.Duration, add func(RefEvent)) {
	state := snapshotRefs(gitDir)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			cur := snapshotRefs(gitDir)
			for _, ev := range diffSnapshots(state, cur, time.Now()) {
				add(ev)
			}
			state = cur
		}
	}
}
