package contentstore

import (
	"container/heap"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/Aman-CERP/morie/internal/errors"
)

// Store is the content store adapter. All methods are safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	repo *git.Repository
}

// Open opens the git repository containing path.
func Open(path string) (*Store, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.ContentStoreError(fmt.Sprintf("failed to open repository at %s", path), err).
			WithSuggestion("Run morie inside a git repository or pass --repo")
	}
	return New(repo), nil
}

// New wraps an already opened repository. The caller must not use repo
// directly afterwards.
func New(repo *git.Repository) *Store {
	return &Store{repo: repo}
}

// GitDir returns the on-disk git directory, or "" for in-memory repositories.
func (s *Store) GitDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fs, ok := s.repo.Storer.(*filesystem.Storage); ok {
		return fs.Filesystem().Root()
	}
	return ""
}

// Head resolves the current HEAD commit.
func (s *Store) Head(ctx context.Context) (Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.head()
}

func (s *Store) head() (Hash, error) {
	ref, err := s.repo.Head()
	if err != nil {
		return ZeroHash, errors.ContentStoreError("failed to resolve HEAD", err)
	}
	return ref.Hash(), nil
}

// Commit looks up a commit by id.
func (s *Store) Commit(ctx context.Context, id Hash) (*Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.commitObject(id)
	if err != nil {
		return nil, err
	}
	return toCommit(c), nil
}

func (s *Store) commitObject(id Hash) (*object.Commit, error) {
	c, err := s.repo.CommitObject(id)
	if err != nil {
		return nil, errors.ContentStoreError(fmt.Sprintf("failed to read commit %s", id), err).
			WithDetail("commit", id.String())
	}
	return c, nil
}

func toCommit(c *object.Commit) *Commit {
	parents := make([]Hash, len(c.ParentHashes))
	copy(parents, c.ParentHashes)
	return &Commit{
		ID:         c.Hash,
		Tree:       c.TreeHash,
		Parents:    parents,
		Time:       c.Author.When,
		CommitTime: c.Committer.When,
	}
}

// Files enumerates every file path in the commit's tree.
func (s *Store) Files(ctx context.Context, commit Hash) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.commitObject(commit)
	if err != nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, errors.ContentStoreError(fmt.Sprintf("failed to read tree of %s", commit), err)
	}

	var files []File
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		files = append(files, File{Path: f.Name, Blob: f.Hash})
		return nil
	})
	if err != nil {
		return nil, errors.ContentStoreError(fmt.Sprintf("failed to list tree of %s", commit), err)
	}
	return files, nil
}

// Changes diffs the commit's tree against each parent's tree and returns the
// union of the deltas, parent by parent. A root commit is diffed against the
// empty tree. Conflicting changes across parents are not reconciled.
func (s *Store) Changes(ctx context.Context, commit *Commit) ([]Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	to, err := s.repo.TreeObject(commit.Tree)
	if err != nil {
		return nil, errors.ContentStoreError(fmt.Sprintf("failed to read tree of %s", commit.ID), err)
	}

	if len(commit.Parents) == 0 {
		return s.diff(ctx, &object.Tree{}, to)
	}

	var deltas []Delta
	for _, parent := range commit.Parents {
		pc, err := s.commitObject(parent)
		if err != nil {
			return nil, err
		}
		from, err := pc.Tree()
		if err != nil {
			return nil, errors.ContentStoreError(fmt.Sprintf("failed to read tree of %s", parent), err)
		}
		d, err := s.diff(ctx, from, to)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, d...)
	}
	return deltas, nil
}

func (s *Store) diff(ctx context.Context, from, to *object.Tree) ([]Delta, error) {
	changes, err := object.DiffTreeWithOptions(ctx, from, to, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, errors.ContentStoreError("failed to diff trees", err)
	}

	deltas := make([]Delta, 0, len(changes))
	for _, ch := range changes {
		if isSubmodule(ch.From.TreeEntry.Mode) || isSubmodule(ch.To.TreeEntry.Mode) {
			continue
		}
		deltas = append(deltas, classify(ch))
	}
	return deltas, nil
}

func isSubmodule(m filemode.FileMode) bool {
	return m == filemode.Submodule
}

// classify maps a go-git change onto a Delta. go-git reports renames as a
// change whose endpoints carry different names; it never reports copies.
func classify(ch *object.Change) Delta {
	switch {
	case ch.From.Name == "":
		return Delta{Status: Added, NewPath: ch.To.Name, Blob: ch.To.TreeEntry.Hash}
	case ch.To.Name == "":
		return Delta{Status: Deleted, OldPath: ch.From.Name, Blob: ch.From.TreeEntry.Hash}
	case ch.From.Name != ch.To.Name:
		return Delta{Status: Renamed, OldPath: ch.From.Name, NewPath: ch.To.Name, Blob: ch.To.TreeEntry.Hash}
	default:
		return Delta{Status: Modified, OldPath: ch.From.Name, NewPath: ch.To.Name, Blob: ch.To.TreeEntry.Hash}
	}
}

// Blob reads the full content of a blob.
func (s *Store) Blob(ctx context.Context, id Hash) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.repo.BlobObject(id)
	if err != nil {
		return nil, errors.ContentStoreError(fmt.Sprintf("failed to read blob %s", id), err).
			WithDetail("blob", id.String())
	}
	return readBlob(b)
}

// BlobSize returns a blob's size without reading its content.
func (s *Store) BlobSize(ctx context.Context, id Hash) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.repo.BlobObject(id)
	if err != nil {
		return 0, errors.ContentStoreError(fmt.Sprintf("failed to read blob %s", id), err).
			WithDetail("blob", id.String())
	}
	return b.Size, nil
}

func readBlob(b *object.Blob) ([]byte, error) {
	r, err := b.Reader()
	if err != nil {
		return nil, errors.ContentStoreError(fmt.Sprintf("failed to open blob %s", b.Hash), err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.ContentStoreError(fmt.Sprintf("failed to read blob %s", b.Hash), err)
	}
	return data, nil
}

// ReadFile resolves path against the current HEAD tree and returns its content
// along with the HEAD it was read from. HEAD resolution and the tree lookup
// happen under one lock hold. A path absent from HEAD yields a NotFoundError.
func (s *Store) ReadFile(ctx context.Context, path string) ([]byte, Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.head()
	if err != nil {
		return nil, ZeroHash, err
	}
	c, err := s.commitObject(head)
	if err != nil {
		return nil, ZeroHash, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, ZeroHash, errors.ContentStoreError(fmt.Sprintf("failed to read tree of %s", head), err)
	}

	entry, err := tree.FindEntry(path)
	if err != nil {
		if stderrors.Is(err, object.ErrEntryNotFound) || stderrors.Is(err, object.ErrDirectoryNotFound) {
			return nil, head, errors.NotFoundError(path)
		}
		return nil, head, errors.ContentStoreError(fmt.Sprintf("failed to look up %s", path), err)
	}
	if !entry.Mode.IsFile() {
		return nil, head, errors.NotFoundError(path)
	}

	b, err := s.repo.BlobObject(entry.Hash)
	if err != nil {
		return nil, head, errors.ContentStoreError(fmt.Sprintf("failed to read blob for %s", path), err)
	}
	data, err := readBlob(b)
	return data, head, err
}

// IsAncestor reports whether candidate is reachable from head by following
// parent edges. A commit is its own ancestor, and an id the repository does
// not contain is nobody's ancestor.
//
// The search visits commits newest first and gives up once every remaining
// commit is older than candidate, so it reads only the history between the
// two. The lock is held per commit load, not across the search.
func (s *Store) IsAncestor(ctx context.Context, candidate, head Hash) (bool, error) {
	if candidate == head {
		return true, nil
	}
	target, err := s.Commit(ctx, candidate)
	if err != nil {
		if stderrors.Is(err, plumbing.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	start, err := s.Commit(ctx, head)
	if err != nil {
		return false, err
	}

	seen := map[Hash]struct{}{head: {}}
	queue := &commitHeap{start}
	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		c := heap.Pop(queue).(*Commit)
		if c.ID == candidate {
			return true, nil
		}
		if c.CommitTime.Before(target.CommitTime) {
			return false, nil
		}
		for _, p := range c.Parents {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			pc, err := s.Commit(ctx, p)
			if err != nil {
				return false, err
			}
			heap.Push(queue, pc)
		}
	}
	return false, nil
}

// Walk visits commits reachable from start, children before parents, newest
// first among commits with no ordering constraint between them. If hide is
// not ZeroHash, hide and all of its ancestors are excluded (a range walk).
//
// Commit objects are loaded as the walk advances, each under its own lock
// hold, so visit may call back into the Store and an early stop reads little
// more than the commits visited. Ordering relies on committer times not
// decreasing from parent to child; a commit dated before one of its parents
// may be visited after it. Returning ErrStopWalk from visit ends the walk
// without error.
func (s *Store) Walk(ctx context.Context, start, hide Hash, visit func(*Commit) error) error {
	w, err := newWalker(ctx, s, start, hide)
	if err != nil {
		return err
	}
	for {
		c, err := w.next(ctx)
		if err != nil {
			return err
		}
		if c == nil {
			return nil
		}
		if err := visit(c); err != nil {
			if stderrors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
	}
}
