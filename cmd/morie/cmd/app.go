package cmd

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aman-CERP/morie/internal/catalog"
	"github.com/Aman-CERP/morie/internal/config"
	"github.com/Aman-CERP/morie/internal/contentstore"
	"github.com/Aman-CERP/morie/internal/index"
	"github.com/Aman-CERP/morie/internal/store"
)

// app is the wired catalog for one repository.
type app struct {
	cfg     *config.Config
	content *contentstore.Store
	cache   *store.Store
	catalog *catalog.Catalog
}

// loadConfig resolves the repository root from --repo or the working
// directory and loads its configuration.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	start := o.repo
	if start == "" {
		start = "."
	}
	root, err := config.FindProjectRoot(start)
	if err != nil {
		return nil, err
	}
	return config.Load(root)
}

// open wires the content store, cache store, maintainer and catalog.
// Maintenance metrics are registered on reg when it is non-nil.
func openApp(cfg *config.Config, reg prometheus.Registerer) (*app, error) {
	content, err := contentstore.Open(cfg.Repository.Path)
	if err != nil {
		return nil, err
	}

	cache, err := store.Open(cfg.CachePath(), store.Options{
		BusyTimeout: cfg.BusyTimeout(),
		CacheMB:     cfg.Cache.CacheMB,
	})
	if err != nil {
		return nil, err
	}

	var metrics *index.Metrics
	if reg != nil {
		metrics = index.NewMetrics(reg)
	}
	maintainer, err := index.NewMaintainer(index.MaintainerDependencies{
		Repo:    content,
		Cache:   cache,
		Metrics: metrics,
	}, index.IndexerConfig{
		Workers:          cfg.Index.Workers,
		ExtractCacheSize: cfg.Index.ExtractCacheSize,
		MaxBlobSize:      cfg.Index.MaxBlobSize,
	})
	if err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("failed to create maintainer: %w", err)
	}

	cat, err := catalog.New(catalog.Dependencies{
		Reader:     content,
		Cache:      cache,
		Maintainer: maintainer,
	})
	if err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}

	slog.Debug("catalog_opened",
		slog.String("repository", cfg.Repository.Path),
		slog.String("cache", cfg.CachePath()))

	return &app{cfg: cfg, content: content, cache: cache, catalog: cat}, nil
}

// openApp loads the configuration and opens the catalog.
func (o *globalOptions) openApp() (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cfg, nil)
}

// Close releases the cache store.
func (a *app) Close() error {
	return a.cache.Close()
}

// shortHash abbreviates a commit id for display.
func shortHash(h contentstore.Hash) string {
	if h.IsZero() {
		return "-"
	}
	return h.String()[:12]
}
