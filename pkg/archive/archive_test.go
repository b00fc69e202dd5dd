package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/oneconcern/fileref/internal/rand"
	"github.com/oneconcern/fileref/pkg/content"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/oneconcern/fileref/pkg/walk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testTree(t)
	store := content.NewMemory()

	for _, order := range []walk.Order{walk.PreOrder, walk.PostOrder, walk.BreadthFirst} {
		t.Run(order.String(), func(t *testing.T) {
			a, err := testCreator(Store(store), Order(order)).Create(ctx, src)
			require.NoError(t, err)
			require.Len(t, a.Entries, 7)

			b, err := Encode(a)
			require.NoError(t, err)
			decoded, err := Decode(b)
			require.NoError(t, err)

			dest := filepath.Join(t.TempDir(), "out")
			require.NoError(t, NewExtractor(Loader(store)).Extract(ctx, decoded, dest))

			expected := snapshot(t, src)
			actual := snapshot(t, dest)
			require.Equal(t, expected, actual)

			content, err := os.ReadFile(filepath.Join(dest, "sparse"))
			require.NoError(t, err)
			assert.Len(t, content, 5*testChunkSize)
			assert.Equal(t, make([]byte, 3*testChunkSize), content[testChunkSize:4*testChunkSize], "holes read as zeroes")
		})
	}
}

func TestEncodings(t *testing.T) {
	src := testTree(t)
	a, err := testCreator().Create(context.Background(), src)
	require.NoError(t, err)

	byPath := make(map[string]*fileref.Fileref)
	for _, f := range a.Entries {
		byPath[f.Path] = f
	}
	require.Contains(t, byPath, "docs/deep/blob.bin")
	assert.Equal(t, fileref.EncodingBlobvec, byPath["docs/deep/blob.bin"].Encoding)
	assert.Len(t, byPath["docs/deep/blob.bin"].Blobvec, 4)
	assert.Equal(t, fileref.EncodingUTF8, byPath["docs/notes.txt"].Encoding)
	assert.Equal(t, fileref.EncodingNone, byPath["empty"].Encoding)
	assert.Equal(t, fileref.Directory, byPath["docs"].Kind())
	assert.Equal(t, "docs/notes.txt", byPath["link"].SymlinkTarget())
	assert.NotContains(t, byPath, ".", "the walked root is not recorded")

	ids := a.IDs()
	seen := make(map[digest.ID]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "ids are listed once")
		seen[id] = true
	}
	for _, e := range byPath["docs/deep/blob.bin"].Blobvec {
		assert.True(t, seen[e.ID])
	}
}

func TestFileRoot(t *testing.T) {
	src := testTree(t)
	a, err := testCreator().Create(context.Background(), filepath.Join(src, "docs", "notes.txt"), filepath.Join(src, "link"))
	require.NoError(t, err)
	require.Len(t, a.Entries, 2)
	assert.Equal(t, "notes.txt", a.Entries[0].Path)
	assert.Equal(t, "link", a.Entries[1].Path)
	assert.Equal(t, fileref.Symlink, a.Entries[1].Kind())
}

func TestCreateMissing(t *testing.T) {
	_, err := testCreator().Create(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestIgnoreFailedRead(t *testing.T) {
	src := testTree(t)
	require.NoError(t, unix.Mkfifo(filepath.Join(src, "docs", "fifo"), 0o600))

	_, err := testCreator().Create(context.Background(), src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrUnsupported))

	a, err := testCreator(IgnoreFailedRead(true)).Create(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, a.Entries, 7)
}

func TestVisitStop(t *testing.T) {
	src := testTree(t)
	var visited []string
	a, err := testCreator(Visit(func(f *fileref.Fileref) error {
		visited = append(visited, f.Path)
		if len(visited) == 2 {
			return walk.Stop
		}
		return nil
	})).Create(context.Background(), src, src)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "docs/deep"}, visited)
	assert.Len(t, a.Entries, 2, "entries recorded before stopping are kept")

	boom := errors.New("boom")
	_, err = testCreator(Visit(func(*fileref.Fileref) error { return boom })).Create(context.Background(), src)
	assert.Equal(t, boom, err)
}

type failingStore struct{}

func (failingStore) Store(context.Context, []byte) (digest.ID, error) {
	return "", errors.New("store unavailable")
}

func TestStoreFailureAborts(t *testing.T) {
	src := testTree(t)
	_, err := testCreator(Store(failingStore{}), MaxInFlight(2)).Create(context.Background(), src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrIO))
	assert.Contains(t, err.Error(), "store unavailable")
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestStoreFailureDuringWalk(t *testing.T) {
	src := t.TempDir()
	gen := rand.New(3)
	for i := 0; i < 32; i++ {
		name := filepath.Join(src, fmt.Sprintf("f%02d", i))
		require.NoError(t, os.WriteFile(name, gen.Bytes(2*testChunkSize), 0o644))
	}

	_, err := testCreator(Store(failingStore{}), MaxInFlight(1)).Create(context.Background(), src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrIO), "got %v", err)
	assert.False(t, errors.Is(err, context.Canceled), "got %v", err)

	var perr *status.PathError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "store", perr.Op)
	assert.Contains(t, perr.Path, "f")
}

func TestAlreadyExists(t *testing.T) {
	ctx := context.Background()
	src := testTree(t)
	store := content.NewMemory()
	a, err := testCreator(Store(store)).Create(ctx, src)
	require.NoError(t, err)

	dest := t.TempDir()
	x := NewExtractor(Loader(store))
	require.NoError(t, x.Extract(ctx, a, dest))

	err = x.Extract(ctx, a, dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrExists))

	require.NoError(t, os.WriteFile(filepath.Join(dest, "docs", "notes.txt"), []byte("changed"), 0o600))
	require.NoError(t, NewExtractor(Loader(store), Overwrite(true)).Extract(ctx, a, dest))
	assert.Equal(t, snapshot(t, src), snapshot(t, dest))
}

func blobvecArchive(data []byte, length int64) *Archive {
	return &Archive{Entries: []*fileref.Fileref{{
		Path:     "f",
		Size:     length,
		Mode:     unix.S_IFREG | 0o644,
		Encoding: fileref.EncodingBlobvec,
		Blobvec:  []fileref.BlobvecEntry{{Offset: 0, Length: length, ID: digest.Sum(digest.SHA1, data).ID()}},
	}}}
}

func TestLengthMismatch(t *testing.T) {
	good := []byte("0123456789")
	a := blobvecArchive(good, int64(len(good)))
	short := loaderFunc(func(context.Context, digest.ID) ([]byte, error) {
		return good[:5], nil
	})

	dest := t.TempDir()
	err := NewExtractor(Loader(short)).Extract(context.Background(), a, dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrProtocol))

	written, err := os.ReadFile(filepath.Join(dest, "f"))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, len(good)), written, "nothing of the blob was written")
}

func TestDigestMismatch(t *testing.T) {
	good := []byte("0123456789")
	a := blobvecArchive(good, int64(len(good)))
	tampered := loaderFunc(func(context.Context, digest.ID) ([]byte, error) {
		return []byte("9876543210"), nil
	})

	err := NewExtractor(Loader(tampered)).Extract(context.Background(), a, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrProtocol))

	dest := t.TempDir()
	require.NoError(t, NewExtractor(Loader(tampered), VerifyDigests(false)).Extract(context.Background(), a, dest))
	written, err := os.ReadFile(filepath.Join(dest, "f"))
	require.NoError(t, err)
	assert.Equal(t, "9876543210", string(written))
}

func TestMissingBlob(t *testing.T) {
	a := blobvecArchive([]byte("abc"), 3)
	err := NewExtractor(Loader(content.NewMemory())).Extract(context.Background(), a, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound))

	err = NewExtractor().Extract(context.Background(), a, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
}

func TestTraversal(t *testing.T) {
	outside := t.TempDir()
	for _, a := range []*Archive{
		{Entries: []*fileref.Fileref{
			{Path: "../escape", Mode: unix.S_IFREG | 0o644, Encoding: fileref.EncodingUTF8, Data: []byte("x"), Size: 1},
		}},
		{Entries: []*fileref.Fileref{
			{Path: "link", Mode: unix.S_IFLNK | 0o777, Encoding: fileref.EncodingUTF8, Data: []byte(outside)},
			{Path: "link/escape", Mode: unix.S_IFREG | 0o644, Encoding: fileref.EncodingUTF8, Data: []byte("x"), Size: 1},
		}},
	} {
		err := NewExtractor().Extract(context.Background(), a, t.TempDir())
		require.Error(t, err)
		assert.True(t, errors.Is(err, status.ErrProtocol))
		_, err = os.Lstat(filepath.Join(outside, "escape"))
		assert.True(t, os.IsNotExist(err))
	}
}

func TestTrace(t *testing.T) {
	ctx := context.Background()
	src := testTree(t)
	store := content.NewMemory()
	a, err := testCreator(Store(store)).Create(ctx, src)
	require.NoError(t, err)

	var traced []string
	x := NewExtractor(Loader(store), Trace(func(f *fileref.Fileref) {
		traced = append(traced, f.Path)
	}))
	require.NoError(t, x.Extract(ctx, a, t.TempDir()))

	expected := make([]string, 0, len(a.Entries))
	for _, f := range a.Entries {
		expected = append(expected, f.Path)
	}
	assert.Equal(t, expected, traced)
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := testTree(t)

	_, err := testCreator().Create(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)

	a, err := testCreator().Create(context.Background(), src)
	require.NoError(t, err)
	err = NewExtractor().Extract(ctx, a, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObjectContainer(t *testing.T) {
	const doc = `{
  "b/file": {"version": 1, "type": "fileref", "path": "ignored", "size": 5, "mtime": 1, "ctime": 1, "mode": 33188, "encoding": "utf-8", "data": "hello"},
  "b": {"version": 1, "type": "fileref", "size": 0, "mtime": 1, "ctime": 1, "mode": 16877},
  "a": {"version": 1, "type": "fileref", "size": 0, "mtime": 1, "ctime": 1, "mode": 41471, "encoding": "utf-8", "data": "b/file"}
}`
	a, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, a.Entries, 3)
	paths := []string{a.Entries[0].Path, a.Entries[1].Path, a.Entries[2].Path}
	assert.Equal(t, []string{"a", "b", "b/file"}, paths)
	assert.True(t, sort.StringsAreSorted(paths))

	dest := t.TempDir()
	require.NoError(t, NewExtractor().Extract(context.Background(), a, dest))
	data, err := os.ReadFile(filepath.Join(dest, "a"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	b, err := EncodeMap(a)
	require.NoError(t, err)
	again, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestDecodeErrors(t *testing.T) {
	for _, doc := range []string{"", "  ", "42", `"x"`, "[", `{"a":`} {
		_, err := Decode([]byte(doc))
		require.Error(t, err, doc)
		assert.True(t, errors.Is(err, status.ErrInvalidArgument), doc)
	}

	_, err := Decode([]byte(`[{"version": 1, "type": "fileref", "path": "x", "size": 1, "mtime": 0, "ctime": 0, "mode": 33188, "encoding": "zip"}]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrProtocol))

	_, err = EncodeMap(&Archive{Entries: []*fileref.Fileref{
		{Path: "x", Mode: unix.S_IFDIR | 0o755},
		{Path: "x", Mode: unix.S_IFDIR | 0o755},
	}})
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
}

func TestList(t *testing.T) {
	a, err := testCreator().Create(context.Background(), testTree(t))
	require.NoError(t, err)

	lines := List(a, false)
	require.Len(t, lines, len(a.Entries))
	assert.Contains(t, lines, "docs/notes.txt")

	long := List(a, true)
	var found bool
	for _, l := range long {
		if bytes.HasSuffix([]byte(l), []byte("link -> docs/notes.txt")) {
			found = true
		}
	}
	assert.True(t, found, "long listing shows symlink targets: %v", long)
}
