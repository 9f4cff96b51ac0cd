package index

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/morie/internal/contentstore"
)

// Outcome summarizes one indexer run. Row counts come from the store.
type Outcome struct {
	// Resolved is the number of paths the walk settled.
	Resolved int

	// CommitsVisited is the number of commits the walk diffed.
	CommitsVisited int
}

// Full rebuilds the whole entry table for target and records target as the
// indexed commit. Only commits newer than the oldest last-touch of a path
// live at target are diffed.
//
// Merge commits are diffed against each parent independently and the deltas
// unioned, so a path changed differently on two parents may be attributed
// to the wrong commit.
func (ix *Indexer) Full(ctx context.Context, w Writer, target contentstore.Hash) (Outcome, error) {
	files, err := ix.repo.Files(ctx, target)
	if err != nil {
		return Outcome{}, err
	}

	live := make(map[string]contentstore.Hash, len(files))
	for _, f := range files {
		live[f.Path] = f.Blob
	}

	res := newResolver()
	visited := 0
	if len(live) > 0 {
		err = ix.repo.Walk(ctx, target, contentstore.ZeroHash, func(c *contentstore.Commit) error {
			visited++
			deltas, err := ix.repo.Changes(ctx, c)
			if err != nil {
				return err
			}
			for _, d := range deltas {
				if d.Status == contentstore.Deleted {
					continue
				}
				if _, ok := live[d.NewPath]; !ok {
					continue
				}
				delete(live, d.NewPath)
				res.offer(resolution{kind: opUpsert, path: d.NewPath, time: c.Time, blob: d.Blob})
			}
			if len(live) == 0 {
				slog.Debug("full_index_walk_stopped",
					slog.String("at", c.ID.String()),
					slog.Int("commits_visited", visited))
				return contentstore.ErrStopWalk
			}
			return nil
		})
		if err != nil {
			return Outcome{}, err
		}
	}

	if len(live) > 0 {
		// Only reachable when history does not account for a live path.
		c, err := ix.repo.Commit(ctx, target)
		if err != nil {
			return Outcome{}, err
		}
		for path, blob := range live {
			slog.Warn("live path not found in history", slog.String("path", path))
			res.offer(resolution{kind: opUpsert, path: path, time: c.Time, blob: blob})
		}
	}

	upserts, _ := res.split()
	entries, err := ix.buildAll(ctx, upserts)
	if err != nil {
		return Outcome{}, err
	}

	if err := w.ReplaceAll(entries); err != nil {
		return Outcome{}, err
	}
	if err := w.SetCommitID(target.String()); err != nil {
		return Outcome{}, err
	}

	slog.Debug("full_index_applied",
		slog.String("to", target.String()),
		slog.Int("rows_written", w.Writes().Total()),
		slog.Int("commits_visited", visited))

	return Outcome{Resolved: res.len(), CommitsVisited: visited}, nil
}
