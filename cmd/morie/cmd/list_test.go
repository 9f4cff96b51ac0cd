package cmd

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/morie/internal/errors"
)

const readme = "---\ntitle: Guide\n---\n# Hello *World*\n"

func seeded(t *testing.T) *testRepo {
	r := newTestRepo(t)
	r.commit(at(0), map[string]*string{
		"README.md":  text(readme),
		"docs/a.txt": text("plain\n"),
	})
	return r
}

func TestListCmd_PlainOutput(t *testing.T) {
	// Given: a repository with two committed documents
	r := seeded(t)

	// When: listing without a terminal
	out, err := execute(context.Background(), "--repo", r.dir, "list")

	// Then: one tab-separated row per document, sorted by path
	require.NoError(t, err)
	assert.Equal(t,
		"README.md\t37\ttext/markdown\tHello World\t2024-03-01T12:00:00+02:00\n"+
			"docs/a.txt\t6\ttext/plain\t\t2024-03-01T12:00:00+02:00\n",
		out)
}

func TestListCmd_Filter(t *testing.T) {
	r := seeded(t)

	out, err := execute(context.Background(), "--repo", r.dir, "list", "--filter", "docs/**")

	require.NoError(t, err)
	assert.Contains(t, out, "docs/a.txt")
	assert.NotContains(t, out, "README.md")
}

func TestListCmd_InvalidFilter(t *testing.T) {
	r := seeded(t)

	_, err := execute(context.Background(), "--repo", r.dir, "list", "--filter", "[")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidFilter, errors.GetCode(err))
}

func TestListCmd_JSON(t *testing.T) {
	// Given: a repository with a front matter document
	r := seeded(t)

	// When: listing as JSON
	out, err := execute(context.Background(), "--repo", r.dir, "list", "--json")
	require.NoError(t, err)

	// Then: metadata and title are carried through, null when absent
	var entries []entryJSON
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)

	assert.Equal(t, "README.md", entries[0].Path)
	assert.JSONEq(t, `{"title":"Guide"}`, string(entries[0].Metadata))
	require.NotNil(t, entries[0].Title)
	assert.Equal(t, "Hello World", *entries[0].Title)

	assert.Equal(t, "docs/a.txt", entries[1].Path)
	assert.True(t, len(entries[1].Metadata) == 0 || string(entries[1].Metadata) == "null")
	assert.Nil(t, entries[1].Title)
}

func TestListCmd_FollowsHead(t *testing.T) {
	// Given: a listed repository
	r := seeded(t)
	_, err := execute(context.Background(), "--repo", r.dir, "list")
	require.NoError(t, err)

	// When: a commit adds one document and deletes another
	r.commit(at(10), map[string]*string{
		"docs/b.md":  text("# B\n"),
		"docs/a.txt": nil,
	})
	out, err := execute(context.Background(), "--repo", r.dir, "list")

	// Then: the listing reflects the new HEAD
	require.NoError(t, err)
	assert.Contains(t, out, "docs/b.md\t4\ttext/markdown\tB\t2024-03-01T12:10:00+02:00\n")
	assert.NotContains(t, out, "docs/a.txt")
}

func TestListCmd_NotARepository(t *testing.T) {
	isolate(t)

	_, err := execute(context.Background(), "--repo", t.TempDir(), "list")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeContentStore, errors.GetCode(err))
}
