// Package store persists the derived document table and the last-indexed
// commit in SQLite.
//
// Readers never observe a partially applied maintenance cycle: every write
// goes through Update, which runs inside one IMMEDIATE transaction, and the
// commit id is advanced in the same transaction as the entries it describes.
package store

import (
	"encoding/json"
	"time"
)

// Entry is one row of the document table: the cached view of a path live
// at the indexed commit.
type Entry struct {
	Path     string
	Size     int64
	MimeType string

	// Metadata is the front matter as JSON, or nil for NULL.
	Metadata json.RawMessage

	// Title is the first level-1 heading, or nil for NULL.
	Title *string

	// Time is when the path was last touched, in the offset it was recorded in.
	Time time.Time
}

// Options configures the SQLite connection.
type Options struct {
	// BusyTimeout bounds how long a writer waits for another connection's
	// lock before failing with a CacheStoreError.
	BusyTimeout time.Duration

	// CacheMB is the SQLite page cache size in megabytes.
	CacheMB int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		BusyTimeout: 5 * time.Second,
		CacheMB:     16,
	}
}

// Writes counts the rows a transaction touched.
type Writes struct {
	Upserted int
	Deleted  int
}

// Total returns Upserted + Deleted.
func (w Writes) Total() int {
	return w.Upserted + w.Deleted
}
