// Package storetest builds small in-memory git histories for tests.
package storetest

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

// Op mutates the worktree before a commit.
type Op func(t testing.TB, fs billy.Filesystem, wt *git.Worktree)

// Write creates or overwrites path with content.
func Write(path, content string) Op {
	return func(t testing.TB, fs billy.Filesystem, wt *git.Worktree) {
		t.Helper()
		require.NoError(t, util.WriteFile(fs, path, []byte(content), 0o644))
		_, err := wt.Add(path)
		require.NoError(t, err)
	}
}

// Remove deletes path.
func Remove(path string) Op {
	return func(t testing.TB, fs billy.Filesystem, wt *git.Worktree) {
		t.Helper()
		_, err := wt.Remove(path)
		require.NoError(t, err)
	}
}

// Move renames from to to without touching the content.
func Move(from, to string) Op {
	return func(t testing.TB, fs billy.Filesystem, wt *git.Worktree) {
		t.Helper()
		_, err := wt.Move(from, to)
		require.NoError(t, err)
	}
}

// Repo is an in-memory repository with a worktree.
type Repo struct {
	t    testing.TB
	repo *git.Repository
	fs   billy.Filesystem
	wt   *git.Worktree
}

// New initialises an empty repository on branch master.
func New(t testing.TB) *Repo {
	t.Helper()
	return NewOn(t, memory.NewStorage())
}

// NewOn creates an empty repository whose objects live in st.
func NewOn(t testing.TB, st storage.Storer) *Repo {
	t.Helper()
	fs := memfs.New()
	repo, err := git.Init(st, fs)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &Repo{t: t, repo: repo, fs: fs, wt: wt}
}

// Repository returns the underlying go-git repository.
func (r *Repo) Repository() *git.Repository {
	return r.repo
}

// Commit applies ops and commits on the current branch at when.
func (r *Repo) Commit(msg string, when time.Time, ops ...Op) plumbing.Hash {
	r.t.Helper()
	return r.commit(msg, when, nil, ops...)
}

// Merge applies ops and commits with the current HEAD and other as parents.
// ops must bring the worktree to the merged state.
func (r *Repo) Merge(msg string, when time.Time, other plumbing.Hash, ops ...Op) plumbing.Hash {
	r.t.Helper()
	head, err := r.repo.Head()
	require.NoError(r.t, err)
	return r.commit(msg, when, []plumbing.Hash{head.Hash(), other}, ops...)
}

func (r *Repo) commit(msg string, when time.Time, parents []plumbing.Hash, ops ...Op) plumbing.Hash {
	r.t.Helper()
	for _, op := range ops {
		op(r.t, r.fs, r.wt)
	}
	sig := &object.Signature{Name: "Test User", Email: "test@example.com", When: when}
	h, err := r.wt.Commit(msg, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		Parents:           parents,
		AllowEmptyCommits: true,
	})
	require.NoError(r.t, err)
	return h
}

// Branch creates branch name at from and checks it out.
func (r *Repo) Branch(name string, from plumbing.Hash) {
	r.t.Helper()
	require.NoError(r.t, r.wt.Checkout(&git.CheckoutOptions{
		Hash:   from,
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
		Force:  true,
	}))
}

// Checkout switches to an existing branch.
func (r *Repo) Checkout(name string) {
	r.t.Helper()
	require.NoError(r.t, r.wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Force:  true,
	}))
}

// ResetHard moves the current branch to h, discarding later commits from it.
func (r *Repo) ResetHard(h plumbing.Hash) {
	r.t.Helper()
	require.NoError(r.t, r.wt.Reset(&git.ResetOptions{Commit: h, Mode: git.HardReset}))
}

// Time returns a fixed instant offset by minutes, in a non-UTC zone so tests
// observe offset handling.
func Time(minutes int) time.Time {
	zone := time.FixedZone("", 2*60*60)
	return time.Date(2024, time.March, 1, 12, 0, 0, 0, zone).Add(time.Duration(minutes) * time.Minute)
}
