// Package index keeps the cached document table in step with the
// repository's HEAD.
//
// A maintenance cycle classifies the cache against HEAD and then either does
// nothing, applies only the commits since the last indexed one (Delta), or
// rebuilds from scratch (Full). Both indexers resolve each path with a
// first-seen-wins fold over a newest-to-oldest revision walk.
package index

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/morie/internal/contentstore"
)

// Repository is the subset of the content store the indexers read from.
// *contentstore.Store satisfies it.
type Repository interface {
	Head(ctx context.Context) (contentstore.Hash, error)
	Commit(ctx context.Context, id contentstore.Hash) (*contentstore.Commit, error)
	Files(ctx context.Context, commit contentstore.Hash) ([]contentstore.File, error)
	Changes(ctx context.Context, commit *contentstore.Commit) ([]contentstore.Delta, error)
	Blob(ctx context.Context, id contentstore.Hash) ([]byte, error)
	BlobSize(ctx context.Context, id contentstore.Hash) (int64, error)
	IsAncestor(ctx context.Context, candidate, head contentstore.Hash) (bool, error)
	Walk(ctx context.Context, start, hide contentstore.Hash, visit func(*contentstore.Commit) error) error
}

// CacheState is the cache's position relative to HEAD. It is one of
// Empty, Fresh or Stale.
type CacheState interface {
	isCacheState()
}

// Empty means the cache has never been indexed.
type Empty struct{}

// Fresh means the cache already reflects HEAD.
type Fresh struct {
	Commit contentstore.Hash
}

// Stale means the cache reflects Last, which differs from Head. Whether it
// can be advanced incrementally is for the ancestry oracle to decide.
type Stale struct {
	Last contentstore.Hash
	Head contentstore.Hash
}

func (Empty) isCacheState() {}
func (Fresh) isCacheState() {}
func (Stale) isCacheState() {}

// Classify compares the stored commit id against head. A stored id that is
// not a valid commit hash is treated as Empty.
func Classify(stored string, ok bool, head contentstore.Hash) CacheState {
	if !ok {
		return Empty{}
	}
	last, valid := contentstore.ParseHash(stored)
	if !valid {
		slog.Warn("cache_state_unparseable", slog.String("commit_id", stored))
		return Empty{}
	}
	if last == head {
		return Fresh{Commit: head}
	}
	return Stale{Last: last, Head: head}
}

// Oracle answers whether one commit precedes another.
type Oracle struct {
	repo Repository
}

// NewOracle creates an Oracle over repo.
func NewOracle(repo Repository) *Oracle {
	return &Oracle{repo: repo}
}

// IsAncestor reports whether candidate is reachable from head through parent
// edges. A commit is its own ancestor.
func (o *Oracle) IsAncestor(ctx context.Context, candidate, head contentstore.Hash) (bool, error) {
	if candidate == head {
		return true, nil
	}
	return o.repo.IsAncestor(ctx, candidate, head)
}
