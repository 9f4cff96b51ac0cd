package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/morie/internal/contentstore"
	"github.com/Aman-CERP/morie/internal/errors"
	"github.com/Aman-CERP/morie/internal/store"
)

// Strategy is the action a maintenance cycle took.
type Strategy string

const (
	// StrategyNoop means the cache already reflected HEAD.
	StrategyNoop Strategy = "noop"
	// StrategyFull means the entry table was rebuilt from HEAD.
	StrategyFull Strategy = "full"
	// StrategyDelta means only the commits since the last indexed one were applied.
	StrategyDelta Strategy = "delta"
)

// Report describes a completed maintenance cycle.
type Report struct {
	Strategy Strategy

	// From is the previously indexed commit, or ZeroHash if there was none.
	From contentstore.Hash

	// To is the commit the cache reflects afterwards.
	To contentstore.Hash

	// Upserted and Deleted are the rows written.
	Upserted int
	Deleted  int

	// CommitsVisited is the number of commits diffed.
	CommitsVisited int

	Duration time.Duration
}

// Cache is the cache store surface the maintainer needs.
// *store.Store satisfies it.
type Cache interface {
	Update(ctx context.Context, fn func(*store.Tx) error) (store.Writes, error)
}

// MaintainerDependencies contains the injected dependencies for Maintainer.
type MaintainerDependencies struct {
	// Repo is the content store (required).
	Repo Repository

	// Cache is the cache store (required).
	Cache Cache

	// Metrics is optional.
	Metrics *Metrics
}

// Maintainer brings the cache up to date with HEAD. Each cycle runs inside
// one cache transaction, which is also what serializes concurrent cycles:
// a second caller waits for the first to commit and then finds the cache
// fresh.
type Maintainer struct {
	repo    Repository
	cache   Cache
	oracle  *Oracle
	indexer *Indexer
	metrics *Metrics
}

// NewMaintainer creates a Maintainer.
func NewMaintainer(deps MaintainerDependencies, cfg IndexerConfig) (*Maintainer, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	return &Maintainer{
		repo:    deps.Repo,
		cache:   deps.Cache,
		oracle:  NewOracle(deps.Repo),
		indexer: NewIndexer(deps.Repo, cfg),
		metrics: deps.Metrics,
	}, nil
}

// Maintain runs one maintenance cycle: nothing if the cache reflects HEAD,
// a delta update if the indexed commit is an ancestor of HEAD, and a full
// rebuild otherwise.
//
// Once started, a cycle runs to completion or failure regardless of ctx
// cancellation. On failure the cache keeps its previous state and the error
// carries code ERR_505_INDEX_FAILED wrapping the cause.
func (m *Maintainer) Maintain(ctx context.Context) (Report, error) {
	return m.run(ctx, false)
}

// Reindex discards the cache and rebuilds it from HEAD.
func (m *Maintainer) Reindex(ctx context.Context) (Report, error) {
	return m.run(ctx, true)
}

func (m *Maintainer) run(ctx context.Context, force bool) (Report, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	var report Report
	writes, err := m.cache.Update(ctx, func(tx *store.Tx) error {
		report = Report{}
		return m.cycle(ctx, tx, force, &report)
	})
	report.Duration = time.Since(start)

	if err != nil {
		m.metrics.record(report, err)
		slog.Error("maintenance_failed",
			slog.String("strategy", string(report.Strategy)),
			slog.String("error", err.Error()))
		return report, errors.New(errors.ErrCodeIndexFailed,
			fmt.Sprintf("index maintenance failed: %v", err), err)
	}

	report.Upserted = writes.Upserted
	report.Deleted = writes.Deleted
	m.metrics.record(report, nil)

	// Cycles that changed nothing are routine.
	level := slog.LevelInfo
	if writes.Total() == 0 {
		level = slog.LevelDebug
	}
	slog.Log(ctx, level, "maintenance_complete",
		slog.String("strategy", string(report.Strategy)),
		slog.String("from", report.From.String()),
		slog.String("to", report.To.String()),
		slog.Int("upserted", report.Upserted),
		slog.Int("deleted", report.Deleted),
		slog.Int("commits_visited", report.CommitsVisited),
		slog.Duration("duration", report.Duration))

	return report, nil
}

func (m *Maintainer) cycle(ctx context.Context, w Writer, force bool, report *Report) error {
	head, err := m.repo.Head(ctx)
	if err != nil {
		return err
	}
	stored, ok, err := w.CommitID()
	if err != nil {
		return err
	}

	state := Classify(stored, ok, head)
	report.To = head
	switch s := state.(type) {
	case Stale:
		report.From = s.Last
	case Fresh:
		report.From = s.Commit
	}

	strategy, err := m.choose(ctx, state, force)
	if err != nil {
		return err
	}
	report.Strategy = strategy

	var out Outcome
	switch strategy {
	case StrategyNoop:
		return nil
	case StrategyDelta:
		out, err = m.indexer.Delta(ctx, w, report.From, head)
	default:
		out, err = m.indexer.Full(ctx, w, head)
	}
	if err != nil {
		return err
	}
	report.CommitsVisited = out.CommitsVisited
	return nil
}

// choose maps a cache state onto the strategy that restores the invariant.
func (m *Maintainer) choose(ctx context.Context, state CacheState, force bool) (Strategy, error) {
	if force {
		return StrategyFull, nil
	}
	switch s := state.(type) {
	case Fresh:
		return StrategyNoop, nil
	case Stale:
		ok, err := m.oracle.IsAncestor(ctx, s.Last, s.Head)
		if err != nil {
			return "", err
		}
		if ok {
			return StrategyDelta, nil
		}
		slog.Info("indexed commit is not an ancestor of HEAD, rebuilding",
			slog.String("indexed", s.Last.String()),
			slog.String("head", s.Head.String()))
		return StrategyFull, nil
	default:
		return StrategyFull, nil
	}
}
