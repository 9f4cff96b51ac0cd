// Package daemon runs the long-lived watch process for a repository. It
// keeps the cache warm by running maintenance whenever HEAD or a ref moves,
// so later List calls find the cache fresh.
//
// One daemon runs per data directory, guarded by a file lock.
package daemon

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/morie/internal/watcher"
)

// Config holds configuration for the watch daemon.
type Config struct {
	// DataDir holds the lock and PID files. Required.
	DataDir string

	// MetricsAddr serves Prometheus metrics at /metrics when non-empty.
	MetricsAddr string

	// Watch configures ref change detection.
	Watch watcher.Options

	// ShutdownGracePeriod bounds the metrics server shutdown.
	// Default: 5s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config for dataDir with sensible defaults.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:             dataDir,
		Watch:               watcher.DefaultOptions(),
		ShutdownGracePeriod: 5 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	if c.Watch.DebounceWindow < 0 {
		return fmt.Errorf("debounce window cannot be negative")
	}
	return nil
}

// LockPath returns the path of the single-instance lock file.
func (c Config) LockPath() string {
	return filepath.Join(c.DataDir, "watch.lock")
}

// PIDPath returns the path of the daemon's PID file.
func (c Config) PIDPath() string {
	return filepath.Join(c.DataDir, "watch.pid")
}
