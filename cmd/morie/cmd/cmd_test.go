package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the user config at temp directories and clears
// the environment overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	for _, key := range []string{"MORIE_REPO", "MORIE_DATA_DIR", "MORIE_LOG_LEVEL",
		"MORIE_INDEX_WORKERS", "MORIE_WATCH_DEBOUNCE", "MORIE_METRICS_ADDR"} {
		t.Setenv(key, "")
	}
}

// testRepo is an on-disk repository with a worktree.
type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	isolate(t)
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return &testRepo{t: t, dir: dir, repo: repo}
}

// commit writes files (nil content removes the file) and commits them at when.
func (r *testRepo) commit(when time.Time, files map[string]*string) plumbing.Hash {
	r.t.Helper()
	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)
	for p, content := range files {
		full := filepath.Join(r.dir, filepath.FromSlash(p))
		if content == nil {
			_, err := wt.Remove(p)
			require.NoError(r.t, err)
			continue
		}
		require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(r.t, os.WriteFile(full, []byte(*content), 0o644))
		_, err := wt.Add(p)
		require.NoError(r.t, err)
	}
	sig := &object.Signature{Name: "Test User", Email: "test@example.com", When: when}
	h, err := wt.Commit("change", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(r.t, err)
	return h
}

func text(s string) *string { return &s }

// at returns a fixed instant in UTC+2, offset by minutes.
func at(minutes int) time.Time {
	zone := time.FixedZone("", 2*60*60)
	return time.Date(2024, time.March, 1, 12, 0, 0, 0, zone).Add(time.Duration(minutes) * time.Minute)
}

// execute runs the root command with args and returns its stdout.
func execute(ctx context.Context, args ...string) (string, error) {
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}
