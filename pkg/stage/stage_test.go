package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/oneconcern/fileref/internal/rand"
	"github.com/oneconcern/fileref/pkg/archive"
	"github.com/oneconcern/fileref/pkg/content"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/oneconcern/fileref/pkg/mmcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChunk = 4096

func stagedTree(t testing.TB) string {
	t.Helper()
	gen := rand.New(11)
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("file-%d.dat", i)
		if i%2 == 0 {
			name = fmt.Sprintf("file-%d.txt", i)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), gen.Bytes(2*testChunk+i), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), gen.Bytes(100), 0o644))
	require.NoError(t, os.Symlink("file-0.txt", filepath.Join(dir, "link")))
	return dir
}

func newStager(t testing.TB, opts ...Option) (*Stager, *mmcache.Cache) {
	cache := mmcache.New(mmcache.ChunkSize(testChunk))
	t.Cleanup(func() { _ = cache.Close() })
	return New(cache, opts...), cache
}

func collect(t testing.TB, s *Stager, tag string, opts ListOptions) []Page {
	t.Helper()
	var pages []Page
	require.NoError(t, s.List(context.Background(), tag, opts, func(p Page) error {
		pages = append(pages, p)
		return nil
	}))
	return pages
}

func TestMapWalksRegularFiles(t *testing.T) {
	dir := stagedTree(t)
	s, cache := newStager(t)

	mapped, err := s.Map(context.Background(), "t", dir)
	require.NoError(t, err)
	assert.Len(t, mapped, 6, "symlinks and directories are not mapped")
	assert.Equal(t, []string{"t"}, cache.Tags())

	require.NoError(t, s.Unmap(context.Background(), "t"))
	assert.Empty(t, cache.Tags())
	assert.True(t, errors.Is(s.Unmap(context.Background(), "t"), status.ErrNotFound))
}

func TestListPages(t *testing.T) {
	dir := stagedTree(t)
	s, _ := newStager(t)
	_, err := s.Map(context.Background(), "t", dir)
	require.NoError(t, err)

	pages := collect(t, s, "t", ListOptions{PageSize: 4})
	require.Len(t, pages, 3)
	assert.Len(t, pages[0].Filerefs, 4)
	assert.Len(t, pages[1].Filerefs, 2)
	assert.True(t, pages[2].EOF)
	assert.Empty(t, pages[2].Filerefs)
	assert.False(t, pages[0].EOF)

	pages = collect(t, s, "t", ListOptions{Pattern: "*.txt"})
	require.Len(t, pages, 2)
	require.Len(t, pages[0].Filerefs, 4)
	for _, f := range pages[0].Filerefs {
		assert.Equal(t, ".txt", filepath.Ext(f.Path))
	}

	pages = collect(t, s, "unknown", ListOptions{})
	assert.Equal(t, []Page{{EOF: true}}, pages, "an empty listing only has the EOF page")

	err = s.List(context.Background(), "t", ListOptions{Pattern: "["}, func(Page) error { return nil })
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	stop := errors.New("stop")
	var calls int
	err = s.List(context.Background(), "t", ListOptions{PageSize: 1}, func(Page) error {
		calls++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, calls)
}

func TestListContentIDs(t *testing.T) {
	ctx := context.Background()
	dir := stagedTree(t)
	store := content.NewMemory()
	s, _ := newStager(t, Store(store))
	mapped, err := s.Map(ctx, "t", dir)
	require.NoError(t, err)

	pages := collect(t, s, "t", ListOptions{ContentIDs: true})
	require.Len(t, pages, 2)
	require.Len(t, pages[0].IDs, len(mapped))
	assert.Empty(t, pages[0].Filerefs)

	for i, id := range pages[0].IDs {
		b, err := store.Load(ctx, id)
		require.NoError(t, err)
		f, err := fileref.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, mapped[i], f)
	}

	s, _ = newStager(t)
	err = s.List(ctx, "t", ListOptions{ContentIDs: true}, func(Page) error { return nil })
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	dir := stagedTree(t)
	store := content.NewMemory()
	s, _ := newStager(t, Store(store))
	mapped, err := s.Map(ctx, "t", filepath.Join(dir, "file-0.txt"))
	require.NoError(t, err)
	require.Len(t, mapped, 1)

	expected, err := os.ReadFile(filepath.Join(dir, "file-0.txt"))
	require.NoError(t, err)
	e := mapped[0].Blobvec[0]
	data, err := s.Load(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, expected[e.Offset:e.End()], data)

	id, err := store.Store(ctx, []byte("only in the store"))
	require.NoError(t, err)
	data, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "only in the store", string(data))

	_, err = s.Load(ctx, digest.Sum(digest.SHA1, []byte("nowhere")).ID())
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestExtractFromStage(t *testing.T) {
	ctx := context.Background()
	dir := stagedTree(t)
	s, _ := newStager(t)
	_, err := s.Map(ctx, "t", dir)
	require.NoError(t, err)

	a, err := archive.NewCreator(archive.ChunkSize(testChunk)).Create(ctx, dir)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, archive.NewExtractor(archive.Loader(s)).Extract(ctx, a, dest))
	for _, name := range []string{"file-1.dat", "sub/nested.txt"} {
		expected, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		actual, err := os.ReadFile(filepath.Join(dest, name))
		require.NoError(t, err)
		assert.Equal(t, expected, actual, name)
	}
}
