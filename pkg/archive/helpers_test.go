package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oneconcern/fileref/internal/rand"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/stretchr/testify/require"
)

const (
	testChunkSize = 4096
	testThreshold = 1024
)

var testTime = time.Date(2019, 3, 14, 15, 9, 26, 0, time.UTC)

type loaderFunc func(context.Context, digest.ID) ([]byte, error)

func (fn loaderFunc) Load(ctx context.Context, id digest.ID) ([]byte, error) {
	return fn(ctx, id)
}

// testTree builds:
//
//	docs/
//	docs/notes.txt      inline text
//	docs/deep/blob.bin  blobvec
//	sparse              blobvec with a hole
//	empty
//	link -> docs/notes.txt
func testTree(t testing.TB) string {
	t.Helper()
	gen := rand.New(42)
	root := t.TempDir()

	write := func(name string, data []byte, mode os.FileMode) {
		pth := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(pth), 0o755))
		require.NoError(t, os.WriteFile(pth, data, mode))
		require.NoError(t, os.Chmod(pth, mode))
		require.NoError(t, os.Chtimes(pth, testTime, testTime))
	}
	write("docs/notes.txt", gen.Text(300), 0o640)
	write("docs/deep/blob.bin", gen.Bytes(3*testChunkSize+17), 0o600)
	write("empty", nil, 0o644)

	sparse := filepath.Join(root, "sparse")
	f, err := os.Create(sparse)
	require.NoError(t, err)
	_, err = f.WriteAt(gen.Bytes(testChunkSize), 0)
	require.NoError(t, err)
	_, err = f.WriteAt(gen.Bytes(testChunkSize), 4*testChunkSize)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.Chtimes(sparse, testTime, testTime))

	require.NoError(t, os.Symlink("docs/notes.txt", filepath.Join(root, "link")))

	for _, dir := range []string{"docs/deep", "docs"} {
		require.NoError(t, os.Chtimes(filepath.Join(root, dir), testTime, testTime))
	}
	return root
}

func testCreator(opts ...CreatorOption) *Creator {
	return NewCreator(append([]CreatorOption{ChunkSize(testChunkSize), SmallFileThreshold(testThreshold)}, opts...)...)
}

// snapshot describes a tree as comparable filerefs
func snapshot(t testing.TB, root string) []*fileref.Fileref {
	t.Helper()
	a, err := testCreator().Create(context.Background(), root)
	require.NoError(t, err)
	for _, f := range a.Entries {
		f.Ctime = 0
	}
	return a.Entries
}
