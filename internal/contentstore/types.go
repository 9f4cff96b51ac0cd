package contentstore

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

// Hash identifies a commit, tree or blob.
type Hash = plumbing.Hash

// ZeroHash is the absent hash.
var ZeroHash = plumbing.ZeroHash

// ParseHash parses a 40-character hex object id.
// It reports false when s is not a well-formed id.
func ParseHash(s string) (Hash, bool) {
	var h Hash
	if len(s) != 2*len(h) {
		return ZeroHash, false
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return ZeroHash, false
	}
	return h, true
}

// ErrStopWalk is returned by a walk visitor to end the walk early.
// Walk itself returns nil in that case.
var ErrStopWalk = errors.New("stop walk")

// Commit is the subset of a commit object the indexer consumes.
type Commit struct {
	ID      Hash
	Tree    Hash
	Parents []Hash
	// Time is the author time, in the author's original UTC offset.
	Time time.Time
	// CommitTime orders the topological walk among unrelated commits.
	CommitTime time.Time
}

// Status classifies a file-level change between two trees.
type Status int

const (
	Added Status = iota
	Modified
	Deleted
	Renamed
	Copied
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	case Copied:
		return "copied"
	default:
		return "unknown"
	}
}

// Delta is a single file-level change between a commit and one parent.
type Delta struct {
	Status Status
	// OldPath is empty for Added.
	OldPath string
	// NewPath is empty for Deleted.
	NewPath string
	// Blob is the new content for every status except Deleted, where it is
	// the removed content.
	Blob Hash
}

// Path returns the path a delta lands on: NewPath, or OldPath for deletions.
func (d Delta) Path() string {
	if d.NewPath != "" {
		return d.NewPath
	}
	return d.OldPath
}

// File is a live path in a tree.
type File struct {
	Path string
	Blob Hash
}
