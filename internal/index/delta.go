package index

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/morie/internal/contentstore"
)

// Delta applies the commits after last up to and including head, then
// records head as the indexed commit. last must be an ancestor of head.
//
// Each path is settled by the newest commit in the range that touched it: a
// path added and later deleted in the range ends up deleted, and a rename
// both writes the new path and deletes the old one.
func (ix *Indexer) Delta(ctx context.Context, w Writer, last, head contentstore.Hash) (Outcome, error) {
	res := newResolver()
	visited := 0

	err := ix.repo.Walk(ctx, head, last, func(c *contentstore.Commit) error {
		visited++
		deltas, err := ix.repo.Changes(ctx, c)
		if err != nil {
			return err
		}
		for _, d := range deltas {
			for _, cand := range candidates(d, c.Time) {
				res.offer(cand)
			}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	upserts, tombstones := res.split()
	entries, err := ix.buildAll(ctx, upserts)
	if err != nil {
		return Outcome{}, err
	}

	for _, e := range entries {
		if err := w.Upsert(e); err != nil {
			return Outcome{}, err
		}
	}
	for _, path := range tombstones {
		if err := w.Delete(path); err != nil {
			return Outcome{}, err
		}
	}
	if err := w.SetCommitID(head.String()); err != nil {
		return Outcome{}, err
	}

	slog.Debug("delta_index_applied",
		slog.String("from", last.String()),
		slog.String("to", head.String()),
		slog.Int("upserts", len(entries)),
		slog.Int("tombstones", len(tombstones)),
		slog.Int("rows_written", w.Writes().Total()),
		slog.Int("commits_visited", visited))

	return Outcome{Resolved: res.len(), CommitsVisited: visited}, nil
}
