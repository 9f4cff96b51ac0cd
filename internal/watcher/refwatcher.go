package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RefWatcher watches a git directory for ref updates, using fsnotify with
// polling as a fallback.
type RefWatcher struct {
	fsWatcher      *fsnotify.Watcher
	useFsnotify    bool
	debouncer      *Debouncer
	events         chan []RefEvent
	errors         chan error
	stopCh         chan struct{}
	gitDir         string
	opts           Options
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// New creates a RefWatcher. It falls back to polling if fsnotify cannot
// be initialized.
func New(opts Options) (*RefWatcher, error) {
	opts = opts.WithDefaults()

	w := &RefWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []RefEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
			w.useFsnotify = true
		} else {
			slog.Warn("fsnotify_unavailable_polling",
				slog.String("error", err.Error()))
		}
	}
	return w, nil
}

// Start watches gitDir until Stop is called or ctx is cancelled.
func (w *RefWatcher) Start(ctx context.Context, gitDir string) error {
	abs, err := filepath.Abs(gitDir)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return fmt.Errorf("git directory %s is not a directory", abs)
	}
	w.mu.Lock()
	w.gitDir = abs
	w.mu.Unlock()

	go w.forwardDebouncedEvents(ctx)

	if w.useFsnotify {
		if err := w.addWatches(); err != nil {
			return fmt.Errorf("add directories to watcher: %w", err)
		}
		return w.runFsnotify(ctx)
	}
	poll(ctx, w.stopCh, abs, w.opts.PollInterval, w.debouncer.Add)
	if ctx.Err() != nil {
		_ = w.Stop()
		return ctx.Err()
	}
	return nil
}

// addWatches watches gitDir itself, for HEAD and packed-refs, and every
// directory under refs/. fsnotify is not recursive.
func (w *RefWatcher) addWatches() error {
	if err := w.fsWatcher.Add(w.gitDir); err != nil {
		return err
	}
	refs := filepath.Join(w.gitDir, "refs")
	if _, err := os.Stat(refs); err != nil {
		return nil
	}
	return w.addRecursive(refs)
}

func (w *RefWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsWatcher.Add(p)
	})
}

func (w *RefWatcher) runFsnotify(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *RefWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.gitDir, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if isDir {
		// A new ref namespace, e.g. refs/heads/feature/. Files created in
		// it before the watch is added are picked up by the walk.
		if event.Op&fsnotify.Create != 0 && (rel == "refs" || IsRefPath(rel)) {
			_ = w.addRecursive(event.Name)
			w.addExisting(event.Name)
		}
		return
	}
	if !IsRefPath(rel) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(RefEvent{Path: rel, Operation: op, Timestamp: time.Now()})
}

// addExisting reports the ref files already present under dir.
func (w *RefWatcher) addExisting(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.gitDir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if IsRefPath(rel) {
			w.debouncer.Add(RefEvent{Path: rel, Operation: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
}

func (w *RefWatcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) > 0 {
				w.emitEvents(events)
			}
		}
	}
}

func (w *RefWatcher) emitEvents(events []RefEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.events <- events:
	default:
		count := w.droppedBatches.Add(1)
		slog.Warn("event_buffer_full",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped_batches", count))
	}
}

// DroppedBatches returns the number of batches dropped because the consumer
// fell behind.
func (w *RefWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

func (w *RefWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and releases resources. Safe to call multiple times.
func (w *RefWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of debounced batches. It is closed by Stop.
func (w *RefWatcher) Events() <-chan []RefEvent {
	return w.events
}

// Errors returns non-fatal watcher errors. It is closed by Stop.
func (w *RefWatcher) Errors() <-chan error {
	return w.errors
}

// Mode returns "fsnotify" or "polling".
func (w *RefWatcher) Mode() string {
	if w.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}
