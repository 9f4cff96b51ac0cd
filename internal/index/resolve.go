package index

import (
	"time"

	"github.com/Aman-CERP/morie/internal/contentstore"
)

type opKind int

const (
	opUpsert opKind = iota
	opTombstone
)

// resolution is the authoritative operation for one path.
type resolution struct {
	kind opKind
	path string
	time time.Time
	blob contentstore.Hash
}

// resolver folds candidate operations with insert-if-absent semantics. Fed
// from a newest-to-oldest walk, the first candidate per path is the one that
// describes the path's latest state.
type resolver struct {
	order []string
	ops   map[string]resolution
}

func newResolver() *resolver {
	return &resolver{ops: make(map[string]resolution)}
}

// offer records r unless its path is already resolved. It reports whether
// r was kept.
func (r *resolver) offer(res resolution) bool {
	if _, ok := r.ops[res.path]; ok {
		return false
	}
	r.ops[res.path] = res
	r.order = append(r.order, res.path)
	return true
}

func (r *resolver) len() int {
	return len(r.order)
}

// split returns upserts and tombstones in resolution order.
func (r *resolver) split() (upserts []resolution, tombstones []string) {
	for _, p := range r.order {
		res := r.ops[p]
		switch res.kind {
		case opUpsert:
			upserts = append(upserts, res)
		case opTombstone:
			tombstones = append(tombstones, res.path)
		}
	}
	return upserts, tombstones
}

// candidates maps one delta onto the operations it implies for the delta
// indexer. A rename both writes the new path and retires the old one.
func candidates(d contentstore.Delta, when time.Time) []resolution {
	switch d.Status {
	case contentstore.Added, contentstore.Modified, contentstore.Copied:
		return []resolution{{kind: opUpsert, path: d.NewPath, time: when, blob: d.Blob}}
	case contentstore.Renamed:
		return []resolution{
			{kind: opUpsert, path: d.NewPath, time: when, blob: d.Blob},
			{kind: opTombstone, path: d.OldPath},
		}
	case contentstore.Deleted:
		return []resolution{{kind: opTombstone, path: d.OldPath}}
	default:
		return nil
	}
}
