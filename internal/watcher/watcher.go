package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation is the kind of change observed on a ref file.
type Operation int

const (
	// OpCreate indicates a ref file appeared.
	OpCreate Operation = iota
	// OpModify indicates a ref file was rewritten.
	OpModify
	// OpDelete indicates a ref file was removed.
	OpDelete
	// OpRename indicates a ref file was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// RefEvent is a change to one file in the git directory.
type RefEvent struct {
	// Path is slash-separated and relative to the git directory,
	// e.g. "HEAD" or "refs/heads/main".
	Path string

	Operation Operation

	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period before a batch is emitted.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode.
	// Default: 2s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 16
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    2 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// IsRefPath reports whether rel, relative to the git directory, names a
// file whose change can move HEAD.
func IsRefPath(rel string) bool {
	rel = filepath.ToSlash(rel)
	if strings.HasSuffix(rel, ".lock") {
		return false
	}
	switch rel {
	case "HEAD", "packed-refs":
		return true
	}
	return strings.HasPrefix(rel, "refs/")
}
