package contentstore_test

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/morie/internal/contentstore"
	"github.com/Aman-CERP/morie/internal/contentstore/storetest"
	merrors "github.com/Aman-CERP/morie/internal/errors"
)

func deltaPaths(deltas []contentstore.Delta) map[string]contentstore.Status {
	out := make(map[string]contentstore.Status, len(deltas))
	for _, d := range deltas {
		out[d.Path()] = d.Status
	}
	return out
}

func walkIDs(t *testing.T, s *contentstore.Store, start, hide contentstore.Hash) []contentstore.Hash {
	t.Helper()
	var ids []contentstore.Hash
	err := s.Walk(context.Background(), start, hide, func(c *contentstore.Commit) error {
		ids = append(ids, c.ID)
		return nil
	})
	require.NoError(t, err)
	return ids
}

func TestStore_HeadAndCommit(t *testing.T) {
	repo := storetest.New(t)
	c1 := repo.Commit("first", storetest.Time(0), storetest.Write("a.md", "# A\n"))
	s := contentstore.New(repo.Repository())
	ctx := context.Background()

	head, err := s.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, c1, head)

	c, err := s.Commit(ctx, c1)
	require.NoError(t, err)
	assert.Empty(t, c.Parents)
	assert.Equal(t, storetest.Time(0).Unix(), c.Time.Unix())
	_, offset := c.Time.Zone()
	assert.Equal(t, 2*60*60, offset)
}

func TestStore_Head_EmptyRepository(t *testing.T) {
	repo := storetest.New(t)
	s := contentstore.New(repo.Repository())

	_, err := s.Head(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, merrors.ErrContentStore))
}

func TestStore_Changes_Classification(t *testing.T) {
	repo := storetest.New(t)
	c1 := repo.Commit("first", storetest.Time(0),
		storetest.Write("a.md", "alpha\n"),
		storetest.Write("b.md", "bravo\n"),
		storetest.Write("c.md", "charlie charlie charlie\n"))
	c2 := repo.Commit("second", storetest.Time(1),
		storetest.Write("a.md", "alpha two\n"),
		storetest.Remove("b.md"),
		storetest.Move("c.md", "d.md"),
		storetest.Write("e.md", "echo\n"))
	s := contentstore.New(repo.Repository())
	ctx := context.Background()

	root, err := s.Commit(ctx, c1)
	require.NoError(t, err)
	rootDeltas, err := s.Changes(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, map[string]contentstore.Status{
		"a.md": contentstore.Added,
		"b.md": contentstore.Added,
		"c.md": contentstore.Added,
	}, deltaPaths(rootDeltas))

	second, err := s.Commit(ctx, c2)
	require.NoError(t, err)
	deltas, err := s.Changes(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, map[string]contentstore.Status{
		"a.md": contentstore.Modified,
		"b.md": contentstore.Deleted,
		"d.md": contentstore.Renamed,
		"e.md": contentstore.Added,
	}, deltaPaths(deltas))

	for _, d := range deltas {
		if d.Status == contentstore.Renamed {
			assert.Equal(t, "c.md", d.OldPath)
			data, err := s.Blob(ctx, d.Blob)
			require.NoError(t, err)
			assert.Equal(t, "charlie charlie charlie\n", string(data))
		}
	}
}

func TestStore_Files(t *testing.T) {
	repo := storetest.New(t)
	c1 := repo.Commit("first", storetest.Time(0),
		storetest.Write("notes/a.md", "a"),
		storetest.Write("b.txt", "b"))
	s := contentstore.New(repo.Repository())

	files, err := s.Files(context.Background(), c1)
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	assert.Equal(t, []string{"b.txt", "notes/a.md"}, paths)
}

func TestStore_Walk_TopologicalOrder(t *testing.T) {
	// Given: base -> side branch and main branch -> merge
	repo := storetest.New(t)
	base := repo.Commit("base", storetest.Time(0), storetest.Write("a.md", "a"))
	main1 := repo.Commit("main", storetest.Time(10), storetest.Write("m.md", "m"))
	repo.Branch("side", base)
	// side commit is newer than main1 but must still precede base
	side := repo.Commit("side", storetest.Time(20), storetest.Write("s.md", "s"))
	repo.Checkout("master")
	merge := repo.Merge("merge", storetest.Time(30), side, storetest.Write("s.md", "s"))
	s := contentstore.New(repo.Repository())

	// When: walking from the merge
	ids := walkIDs(t, s, merge, contentstore.ZeroHash)

	// Then: children come before parents and base is last
	require.Len(t, ids, 4)
	assert.Equal(t, merge, ids[0])
	assert.Equal(t, base, ids[3])
	assert.ElementsMatch(t, []contentstore.Hash{main1, side}, ids[1:3])
}

func TestStore_Walk_RangeExcludesAncestorsOfHide(t *testing.T) {
	repo := storetest.New(t)
	c1 := repo.Commit("c1", storetest.Time(0), storetest.Write("a.md", "1"))
	c2 := repo.Commit("c2", storetest.Time(1), storetest.Write("a.md", "2"))
	c3 := repo.Commit("c3", storetest.Time(2), storetest.Write("a.md", "3"))
	c4 := repo.Commit("c4", storetest.Time(3), storetest.Write("a.md", "4"))
	s := contentstore.New(repo.Repository())

	assert.Equal(t, []contentstore.Hash{c4, c3}, walkIDs(t, s, c4, c2))
	assert.Equal(t, []contentstore.Hash{c4, c3, c2, c1}, walkIDs(t, s, c4, contentstore.ZeroHash))
	assert.Empty(t, walkIDs(t, s, c4, c4))
}

func TestStore_Walk_StopsEarly(t *testing.T) {
	repo := storetest.New(t)
	repo.Commit("c1", storetest.Time(0), storetest.Write("a.md", "1"))
	repo.Commit("c2", storetest.Time(1), storetest.Write("a.md", "2"))
	c3 := repo.Commit("c3", storetest.Time(2), storetest.Write("a.md", "3"))
	s := contentstore.New(repo.Repository())

	visited := 0
	err := s.Walk(context.Background(), c3, contentstore.ZeroHash, func(*contentstore.Commit) error {
		visited++
		return contentstore.ErrStopWalk
	})

	require.NoError(t, err)
	assert.Equal(t, 1, visited)
}

// countingStorage counts commit object reads.
type countingStorage struct {
	*memory.Storage
	commitReads atomic.Int64
}

func (s *countingStorage) EncodedObject(t plumbing.ObjectType, h plumbing.Hash) (plumbing.EncodedObject, error) {
	if t == plumbing.CommitObject {
		s.commitReads.Add(1)
	}
	return s.Storage.EncodedObject(t, h)
}

// linearHistory commits n revisions of a.md and returns their ids, oldest first.
func linearHistory(repo *storetest.Repo, n int) []contentstore.Hash {
	ids := make([]contentstore.Hash, n)
	for i := range ids {
		ids[i] = repo.Commit("c", storetest.Time(i), storetest.Write("a.md", string(rune('a'+i%26))+"\n"))
	}
	return ids
}

func TestStore_Walk_RangeReadsOnlyNewHistory(t *testing.T) {
	// Given: a long linear history advanced by one commit
	st := &countingStorage{Storage: memory.NewStorage()}
	repo := storetest.NewOn(t, st)
	ids := linearHistory(repo, 300)
	head, last := ids[len(ids)-1], ids[len(ids)-2]
	s := contentstore.New(repo.Repository())
	st.commitReads.Store(0)

	// When: walking the range last..head
	got := walkIDs(t, s, head, last)

	// Then: one commit is visited and the old history is not read
	assert.Equal(t, []contentstore.Hash{head}, got)
	assert.LessOrEqual(t, st.commitReads.Load(), int64(4))
}

func TestStore_Walk_EarlyStopReadsLittle(t *testing.T) {
	st := &countingStorage{Storage: memory.NewStorage()}
	repo := storetest.NewOn(t, st)
	ids := linearHistory(repo, 300)
	s := contentstore.New(repo.Repository())
	st.commitReads.Store(0)

	visited := 0
	err := s.Walk(context.Background(), ids[len(ids)-1], contentstore.ZeroHash, func(*contentstore.Commit) error {
		visited++
		return contentstore.ErrStopWalk
	})

	require.NoError(t, err)
	assert.Equal(t, 1, visited)
	assert.LessOrEqual(t, st.commitReads.Load(), int64(4))
}

func TestStore_IsAncestor_ReadsOnlyBetween(t *testing.T) {
	st := &countingStorage{Storage: memory.NewStorage()}
	repo := storetest.NewOn(t, st)
	ids := linearHistory(repo, 300)
	s := contentstore.New(repo.Repository())
	st.commitReads.Store(0)

	ok, err := s.IsAncestor(context.Background(), ids[len(ids)-3], ids[len(ids)-1])

	require.NoError(t, err)
	assert.True(t, ok)
	assert.LessOrEqual(t, st.commitReads.Load(), int64(6))
}

func TestStore_IsAncestor_UnknownCommit(t *testing.T) {
	repo := storetest.New(t)
	head := repo.Commit("c1", storetest.Time(0), storetest.Write("a.md", "1"))
	s := contentstore.New(repo.Repository())

	ok, err := s.IsAncestor(context.Background(), plumbing.NewHash("0123456789abcdef0123456789abcdef01234567"), head)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Walk_RangeHidesSharedBaseBehindMerge(t *testing.T) {
	// Given: main and a side branch forked from base, merged after main moved
	repo := storetest.New(t)
	base := repo.Commit("base", storetest.Time(0), storetest.Write("a.md", "a"))
	main1 := repo.Commit("main", storetest.Time(1), storetest.Write("m.md", "m"))
	repo.Branch("side", base)
	side := repo.Commit("side", storetest.Time(2), storetest.Write("s.md", "s"))
	repo.Checkout("master")
	merge := repo.Merge("merge", storetest.Time(3), side, storetest.Write("s.md", "s"))
	s := contentstore.New(repo.Repository())

	// When: walking everything not already reachable from main1
	got := walkIDs(t, s, merge, main1)

	// Then: base is hidden even though it is first reached through the side branch
	assert.Equal(t, []contentstore.Hash{merge, side}, got)
}

func TestStore_IsAncestor(t *testing.T) {
	repo := storetest.New(t)
	c1 := repo.Commit("c1", storetest.Time(0), storetest.Write("a.md", "1"))
	c2 := repo.Commit("c2", storetest.Time(1), storetest.Write("a.md", "2"))
	repo.Branch("other", c1)
	o1 := repo.Commit("o1", storetest.Time(2), storetest.Write("b.md", "b"))
	s := contentstore.New(repo.Repository())
	ctx := context.Background()

	tests := []struct {
		name      string
		candidate contentstore.Hash
		head      contentstore.Hash
		expected  bool
	}{
		{"parent", c1, c2, true},
		{"self", c2, c2, true},
		{"child is not ancestor", c2, c1, false},
		{"sibling branch", o1, c2, false},
		{"shared base", c1, o1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.IsAncestor(ctx, tt.candidate, tt.head)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestStore_ReadFile(t *testing.T) {
	repo := storetest.New(t)
	c1 := repo.Commit("c1", storetest.Time(0),
		storetest.Write("notes/a.md", "# Alpha\n"))
	s := contentstore.New(repo.Repository())
	ctx := context.Background()

	data, head, err := s.ReadFile(ctx, "notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "# Alpha\n", string(data))
	assert.Equal(t, c1, head)

	_, _, err = s.ReadFile(ctx, "missing.md")
	assert.True(t, merrors.IsNotFound(err))

	_, _, err = s.ReadFile(ctx, "notes")
	assert.True(t, merrors.IsNotFound(err), "directories are not documents")
}

func TestParseHash(t *testing.T) {
	repo := storetest.New(t)
	c1 := repo.Commit("c1", storetest.Time(0), storetest.Write("a.md", "1"))

	h, ok := contentstore.ParseHash(c1.String())
	assert.True(t, ok)
	assert.Equal(t, c1, h)

	_, ok = contentstore.ParseHash("not-a-hash")
	assert.False(t, ok)
	_, ok = contentstore.ParseHash("zz" + c1.String()[2:])
	assert.False(t, ok)
}
