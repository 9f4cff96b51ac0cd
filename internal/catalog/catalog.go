// Package catalog is the query surface over a repository of documents.
//
// List serves metadata from the cache after bringing it up to date with
// HEAD. Get bypasses the cache and reads straight from HEAD's tree.
package catalog

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/morie/internal/contentstore"
	"github.com/Aman-CERP/morie/internal/errors"
	"github.com/Aman-CERP/morie/internal/index"
	"github.com/Aman-CERP/morie/internal/store"
)

// Reader resolves paths against the current HEAD.
// *contentstore.Store satisfies it.
type Reader interface {
	Head(ctx context.Context) (contentstore.Hash, error)
	ReadFile(ctx context.Context, path string) ([]byte, contentstore.Hash, error)
}

// Cache is the read side of the cache store. *store.Store satisfies it.
type Cache interface {
	List(ctx context.Context, filter string) ([]store.Entry, error)
	CommitID(ctx context.Context) (string, bool, error)
	Count(ctx context.Context) (int, error)
}

// Maintainer runs maintenance cycles. *index.Maintainer satisfies it.
type Maintainer interface {
	Maintain(ctx context.Context) (index.Report, error)
	Reindex(ctx context.Context) (index.Report, error)
}

// Dependencies contains the injected dependencies for Catalog.
type Dependencies struct {
	Reader     Reader
	Cache      Cache
	Maintainer Maintainer
}

// Catalog is safe for concurrent use. Concurrent List calls in one process
// share a single in-flight maintenance cycle.
type Catalog struct {
	reader     Reader
	cache      Cache
	maintainer Maintainer
	group      singleflight.Group
	// cycles numbers maintenance cycles in start order.
	cycles atomic.Uint64
}

type cycleResult struct {
	report index.Report
	seq    uint64
}

// New creates a Catalog.
func New(deps Dependencies) (*Catalog, error) {
	if deps.Reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if deps.Maintainer == nil {
		return nil, fmt.Errorf("maintainer is required")
	}
	return &Catalog{
		reader:     deps.Reader,
		cache:      deps.Cache,
		maintainer: deps.Maintainer,
	}, nil
}

// List brings the cache up to date and returns the entries whose path
// matches the glob filter. An empty filter matches every path. Order is
// unspecified.
func (c *Catalog) List(ctx context.Context, filter string) ([]store.Entry, error) {
	if err := store.ValidateFilter(filter); err != nil {
		return nil, err
	}
	if _, err := c.Sync(ctx); err != nil {
		return nil, err
	}
	return c.cache.List(ctx, filter)
}

// Sync runs one maintenance cycle, sharing it with concurrent callers. A
// cycle already running when Sync is called may have resolved HEAD before the
// caller's latest ref update, so Sync waits for it and then joins or starts a
// cycle that began after entry. The returned report is never older than the
// HEAD the caller could observe when calling.
func (c *Catalog) Sync(ctx context.Context) (index.Report, error) {
	entered := c.cycles.Load()
	for {
		v, err, _ := c.group.Do("maintain", func() (any, error) {
			seq := c.cycles.Add(1)
			report, err := c.maintainer.Maintain(ctx)
			return cycleResult{report: report, seq: seq}, err
		})
		res, _ := v.(cycleResult)
		if err != nil || res.seq > entered {
			return res.report, err
		}
	}
}

// Reindex discards the cache and rebuilds it from HEAD.
func (c *Catalog) Reindex(ctx context.Context) (index.Report, error) {
	v, err, _ := c.group.Do("reindex", func() (any, error) {
		return c.maintainer.Reindex(ctx)
	})
	report, _ := v.(index.Report)
	return report, err
}

// Get returns the content of p at HEAD. A path absent from HEAD yields an
// error for which errors.IsNotFound reports true.
func (c *Catalog) Get(ctx context.Context, p string) ([]byte, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	data, _, err := c.reader.ReadFile(ctx, clean)
	return data, err
}

// cleanPath normalizes a caller-supplied path to the slash-separated,
// root-relative form used in trees.
func cleanPath(p string) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" {
		return "", errors.New(errors.ErrCodeInvalidPath, fmt.Sprintf("invalid document path %q", p), nil)
	}
	return clean, nil
}

// Status describes the cache relative to HEAD.
type Status struct {
	Head    contentstore.Hash
	Indexed contentstore.Hash
	// HasIndex is false when the cache has never been built.
	HasIndex bool
	Entries  int
	// Fresh reports whether the cache reflects HEAD.
	Fresh bool
}

// Status reports the cache position without running maintenance.
func (c *Catalog) Status(ctx context.Context) (Status, error) {
	head, err := c.reader.Head(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Head: head}

	id, ok, err := c.cache.CommitID(ctx)
	if err != nil {
		return Status{}, err
	}
	if ok {
		if h, valid := contentstore.ParseHash(id); valid {
			st.Indexed = h
			st.HasIndex = true
		}
	}

	st.Entries, err = c.cache.Count(ctx)
	if err != nil {
		return Status{}, err
	}
	st.Fresh = st.HasIndex && st.Indexed == head
	return st, nil
}
