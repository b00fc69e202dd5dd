package walk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{"a/b", "c"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	for _, f := range []string{"a/b/f1", "a/f2", "c/f3", "f4"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, f), []byte(f), 0o644))
	}
	require.NoError(t, os.Symlink("a", filepath.Join(root, "link")))
	return root
}

func collect(t *testing.T, root string, order Order) []string {
	t.Helper()
	var visited []string
	require.NoError(t, Walk(context.Background(), root, order, func(e Entry, err error) error {
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, e.Path), e.FullPath)
		visited = append(visited, e.Path)
		return nil
	}))
	return visited
}

func TestOrders(t *testing.T) {
	root := tree(t)

	assert.Equal(t, []string{".", "a", "a/b", "a/b/f1", "a/f2", "c", "c/f3", "f4", "link"}, collect(t, root, PreOrder))
	assert.Equal(t, []string{"a/b/f1", "a/b", "a/f2", "a", "c/f3", "c", "f4", "link", "."}, collect(t, root, PostOrder))
	assert.Equal(t, []string{".", "a", "c", "f4", "link", "a/b", "a/f2", "c/f3", "a/b/f1"}, collect(t, root, BreadthFirst))
}

func TestSymlinksNotFollowed(t *testing.T) {
	root := tree(t)
	var linkInfo os.FileInfo
	require.NoError(t, Walk(context.Background(), root, PreOrder, func(e Entry, _ error) error {
		if e.Path == "link" {
			linkInfo = e.Info
		}
		assert.NotContains(t, e.Path, "link/")
		return nil
	}))
	require.NotNil(t, linkInfo)
	assert.True(t, linkInfo.Mode()&os.ModeSymlink != 0)
}

func TestStopAndSkip(t *testing.T) {
	root := tree(t)

	var visited []string
	require.NoError(t, Walk(context.Background(), root, PreOrder, func(e Entry, _ error) error {
		visited = append(visited, e.Path)
		if e.Path == "a/b" {
			return Stop
		}
		return nil
	}))
	assert.Equal(t, []string{".", "a", "a/b"}, visited)

	visited = nil
	require.NoError(t, Walk(context.Background(), root, PreOrder, func(e Entry, _ error) error {
		visited = append(visited, e.Path)
		if e.Path == "a" {
			return SkipDir
		}
		return nil
	}))
	assert.Equal(t, []string{".", "a", "c", "c/f3", "f4", "link"}, visited)

	boom := errors.New("boom")
	err := Walk(context.Background(), root, BreadthFirst, func(e Entry, _ error) error {
		if e.Path == "c" {
			return boom
		}
		return nil
	})
	assert.Equal(t, boom, err)
}

func TestSingleFileAndErrors(t *testing.T) {
	root := tree(t)
	assert.Equal(t, []string{"."}, collect(t, filepath.Join(root, "f4"), PreOrder))

	var got error
	require.NoError(t, Walk(context.Background(), filepath.Join(root, "missing"), PreOrder, func(_ Entry, err error) error {
		got = err
		return nil
	}))
	require.Error(t, got)
	assert.True(t, errors.Is(got, status.ErrNotFound))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Walk(ctx, root, PreOrder, func(Entry, error) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
