package index

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/morie/internal/extract"
	"github.com/Aman-CERP/morie/internal/store"
)

// DefaultMaxBlobSize is the largest blob whose content is parsed for
// metadata. Larger blobs are still listed.
const DefaultMaxBlobSize int64 = 32 << 20

// Writer is the transactional write surface of the cache store.
// *store.Tx satisfies it.
type Writer interface {
	CommitID() (string, bool, error)
	SetCommitID(id string) error
	ReplaceAll(entries []store.Entry) error
	Upsert(e store.Entry) error
	Delete(path string) error
	Writes() store.Writes
}

// IndexerConfig tunes entry construction.
type IndexerConfig struct {
	// Workers bounds parallel extraction. Defaults to runtime.NumCPU().
	Workers int

	// ExtractCacheSize is the number of extraction results memoized by blob id.
	ExtractCacheSize int

	// MaxBlobSize caps the blobs handed to the metadata extractor.
	MaxBlobSize int64
}

// Indexer builds cache entries from resolved paths. It holds the extraction
// memo shared by the full and delta indexers.
type Indexer struct {
	repo        Repository
	cache       *extract.Cache
	workers     int
	maxBlobSize int64
}

// NewIndexer creates an Indexer reading from repo.
func NewIndexer(repo Repository, cfg IndexerConfig) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxBlobSize <= 0 {
		cfg.MaxBlobSize = DefaultMaxBlobSize
	}
	return &Indexer{
		repo:        repo,
		cache:       extract.NewCache(cfg.ExtractCacheSize),
		workers:     cfg.Workers,
		maxBlobSize: cfg.MaxBlobSize,
	}
}

// build derives one entry: MIME from the path, size from the blob, and
// metadata and title from its content.
func (ix *Indexer) build(ctx context.Context, res resolution) (store.Entry, error) {
	size, err := ix.repo.BlobSize(ctx, res.blob)
	if err != nil {
		return store.Entry{}, err
	}
	e := store.Entry{
		Path:     res.path,
		Size:     size,
		MimeType: extract.MimeType(res.path),
		Time:     res.time,
	}

	if size > ix.maxBlobSize {
		slog.Debug("skipping metadata for oversized blob",
			slog.String("path", res.path),
			slog.Int64("size", size),
			slog.Int64("max", ix.maxBlobSize))
		return e, nil
	}

	out, err := ix.cache.Extract(res.blob.String(), func() ([]byte, error) {
		return ix.repo.Blob(ctx, res.blob)
	})
	if err != nil {
		return store.Entry{}, err
	}
	e.Metadata = out.Metadata
	e.Title = out.Title
	return e, nil
}

// buildAll builds entries for every upsert, in input order. The first
// failure cancels the rest.
func (ix *Indexer) buildAll(ctx context.Context, upserts []resolution) ([]store.Entry, error) {
	entries := make([]store.Entry, len(upserts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)

	for i, res := range upserts {
		i, res := i, res
		g.Go(func() error {
			e, err := ix.build(gctx, res)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
