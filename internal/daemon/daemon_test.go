package daemon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/morie/internal/index"
)

// fakeSyncer reports every call on calls and fails while fail is set.
type fakeSyncer struct {
	calls chan struct{}
	fail  atomic.Bool
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{calls: make(chan struct{}, 16)}
}

func (f *fakeSyncer) Sync(context.Context) (index.Report, error) {
	f.calls <- struct{}{}
	if f.fail.Load() {
		return index.Report{}, errors.New("cache store unavailable")
	}
	return index.Report{Strategy: index.StrategyNoop}, nil
}

func (f *fakeSyncer) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("sync not called")
	}
}

// gitDirFixture lays out the ref files of a git directory.
func gitDirFixture(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), ".git")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "refs", "heads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "HEAD"), []byte("ref: refs/heads/master\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "refs", "heads", "master"), []byte("aaaa\n"), 0o644))
	return dir
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig(t.TempDir())
	cfg.Watch.ForcePolling = true
	cfg.Watch.PollInterval = 20 * time.Millisecond
	cfg.Watch.DebounceWindow = 20 * time.Millisecond
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig("/tmp/data")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("/tmp/data", "watch.lock"), cfg.LockPath())
	assert.Equal(t, filepath.Join("/tmp/data", "watch.pid"), cfg.PIDPath())

	cfg.DataDir = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig("/tmp/data")
	cfg.ShutdownGracePeriod = 0
	assert.Error(t, cfg.Validate())
}

func TestFileLock_Exclusive(t *testing.T) {
	// Given: a lock held in a nested, not yet existing directory
	path := filepath.Join(t.TempDir(), "nested", "watch.lock")
	first := NewFileLock(path)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	assert.True(t, first.IsLocked())

	// When: a second lock on the same file tries to acquire it
	second := NewFileLock(path)
	acquired, err = second.TryLock()

	// Then: it fails until the first is released
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.NoError(t, second.Unlock())

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock())
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, second.Unlock())
}

func TestPIDFile(t *testing.T) {
	p := NewPIDFile(filepath.Join(t.TempDir(), "watch.pid"))

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)
	_, running := p.Running()
	assert.False(t, running)

	require.NoError(t, p.Write())
	pid, running := p.Running()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove())
}

func TestPIDFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	_, err := NewPIDFile(path).Read()
	assert.Error(t, err)
}

func TestNew_RequiresSyncer(t *testing.T) {
	_, err := New(DefaultConfig(t.TempDir()), Dependencies{})
	assert.Error(t, err)

	_, err = New(Config{}, Dependencies{Syncer: newFakeSyncer()})
	assert.Error(t, err)
}

func TestDaemon_SyncsOnStartupAndRefChange(t *testing.T) {
	// Given: a running daemon over a git directory
	gitDir := gitDirFixture(t)
	cfg := testConfig(t)
	syncer := newFakeSyncer()
	d, err := New(cfg, Dependencies{Syncer: syncer})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, gitDir) }()

	// Then: the cache is synced once at startup and the PID is published
	syncer.wait(t)
	pid, running := Running(cfg)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	// When: the branch ref moves
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "refs", "heads", "master"), []byte("bbbbbbbb\n"), 0o644))

	// Then: another cycle runs
	syncer.wait(t)

	// When: the context is cancelled
	cancel()

	// Then: Run returns cleanly and releases its files
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	_, running = Running(cfg)
	assert.False(t, running)
	total, failed := d.Cycles()
	assert.GreaterOrEqual(t, total, uint64(2))
	assert.Zero(t, failed)
}

func TestDaemon_SyncFailureKeepsRunning(t *testing.T) {
	// Given: a syncer that fails at startup
	gitDir := gitDirFixture(t)
	syncer := newFakeSyncer()
	syncer.fail.Store(true)
	d, err := New(testConfig(t), Dependencies{Syncer: syncer})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, gitDir) }()
	syncer.wait(t)

	// When: the syncer recovers and a ref changes
	syncer.fail.Store(false)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "packed-refs"), []byte("# pack-refs\n"), 0o644))

	// Then: the daemon is still running and retries
	syncer.wait(t)
	cancel()
	require.NoError(t, <-done)
	_, failed := d.Cycles()
	assert.Equal(t, uint64(1), failed)
}

func TestDaemon_AlreadyRunning(t *testing.T) {
	// Given: another holder of the watch lock
	cfg := testConfig(t)
	holder := NewFileLock(cfg.LockPath())
	acquired, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = holder.Unlock() }()

	// When: a daemon starts for the same data directory
	syncer := newFakeSyncer()
	d, err := New(cfg, Dependencies{Syncer: syncer})
	require.NoError(t, err)
	err = d.Run(context.Background(), gitDirFixture(t))

	// Then: it refuses without syncing
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Empty(t, syncer.calls)
}

func TestDaemon_MissingGitDir(t *testing.T) {
	d, err := New(testConfig(t), Dependencies{Syncer: newFakeSyncer()})
	require.NoError(t, err)

	err = d.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDaemon_MetricsHandler(t *testing.T) {
	// Given: a registry with one observed counter
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "morie_test_cycles_total",
		Help: "Test counter.",
	}).Inc()
	d, err := New(DefaultConfig(t.TempDir()), Dependencies{Syncer: newFakeSyncer(), Gatherer: reg})
	require.NoError(t, err)

	// When: scraping /metrics
	rec := httptest.NewRecorder()
	d.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// Then: the counter is exposed
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "morie_test_cycles_total 1")
}
