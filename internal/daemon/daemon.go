package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	merrors "github.com/Aman-CERP/morie/internal/errors"
	"github.com/Aman-CERP/morie/internal/index"
	"github.com/Aman-CERP/morie/internal/watcher"
)

// ErrAlreadyRunning is returned by Run when another daemon holds the lock
// for the same data directory.
var ErrAlreadyRunning = errors.New("watch daemon already running")

// Syncer runs one maintenance cycle. *catalog.Catalog satisfies it.
type Syncer interface {
	Sync(ctx context.Context) (index.Report, error)
}

// Dependencies contains the injected dependencies for Daemon.
type Dependencies struct {
	// Syncer is required.
	Syncer Syncer

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Daemon watches a git directory and runs maintenance on every ref change.
type Daemon struct {
	cfg      Config
	syncer   Syncer
	gatherer prometheus.Gatherer
	lock     *FileLock
	pid      *PIDFile

	cycles atomic.Uint64
	failed atomic.Uint64
}

// New creates a Daemon.
func New(cfg Config, deps Dependencies) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid daemon config: %w", err)
	}
	if deps.Syncer == nil {
		return nil, fmt.Errorf("syncer is required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Daemon{
		cfg:      cfg,
		syncer:   deps.Syncer,
		gatherer: deps.Gatherer,
		lock:     NewFileLock(cfg.LockPath()),
		pid:      NewPIDFile(cfg.PIDPath()),
	}, nil
}

// Run holds the lock, brings the cache up to date, and then re-syncs after
// every debounced batch of ref changes until ctx is cancelled.
// Maintenance failures are logged and retried on the next change.
func (d *Daemon) Run(ctx context.Context, gitDir string) error {
	acquired, err := d.lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return ErrAlreadyRunning
	}
	defer func() { _ = d.lock.Unlock() }()

	if err := d.pid.Write(); err != nil {
		return err
	}
	defer func() { _ = d.pid.Remove() }()

	w, err := watcher.New(d.cfg.Watch)
	if err != nil {
		return fmt.Errorf("failed to create ref watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	var ln net.Listener
	if d.cfg.MetricsAddr != "" {
		ln, err = net.Listen("tcp", d.cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", d.cfg.MetricsAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Start(gctx, gitDir)
	})
	if ln != nil {
		srv := &http.Server{Handler: d.MetricsHandler(), ReadHeaderTimeout: 5 * time.Second}
		slog.Info("metrics_listening", slog.String("addr", ln.Addr().String()))
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), d.cfg.ShutdownGracePeriod)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		d.loop(gctx, w)
		return nil
	})

	slog.Info("watch_started",
		slog.String("git_dir", gitDir),
		slog.String("mode", w.Mode()),
		slog.Duration("debounce", d.cfg.Watch.DebounceWindow))

	err = g.Wait()
	slog.Info("watch_stopped",
		slog.Uint64("cycles", d.cycles.Load()),
		slog.Uint64("failed", d.failed.Load()))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *Daemon) loop(ctx context.Context, w *watcher.RefWatcher) {
	d.sync(ctx, "startup", 0)
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			d.sync(ctx, "refs_changed", len(batch))
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			slog.Warn("ref_watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (d *Daemon) sync(ctx context.Context, trigger string, events int) {
	d.cycles.Add(1)
	report, err := d.syncer.Sync(ctx)
	if err != nil {
		d.failed.Add(1)
		slog.Error("watch_sync_failed",
			slog.String("trigger", trigger),
			slog.String("code", merrors.GetCode(err)),
			slog.String("error", err.Error()))
		return
	}
	slog.Info("watch_synced",
		slog.String("trigger", trigger),
		slog.Int("events", events),
		slog.String("strategy", string(report.Strategy)),
		slog.Int("upserted", report.Upserted),
		slog.Int("deleted", report.Deleted))
}

// Cycles returns the number of maintenance cycles started, and how many
// of them failed.
func (d *Daemon) Cycles() (total, failed uint64) {
	return d.cycles.Load(), d.failed.Load()
}

// MetricsHandler serves the gatherer's metrics at /metrics.
func (d *Daemon) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Running reports the PID of the daemon holding cfg's data directory, if
// one is alive.
func Running(cfg Config) (int, bool) {
	return NewPIDFile(cfg.PIDPath()).Running()
}
