package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/oneconcern/fileref/pkg/content"
	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testTree(t)
	store := content.NewMemory()
	a, err := testCreator(Store(store)).Create(ctx, src)
	require.NoError(t, err)

	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, WriteBundle(ctx, &buf, a, store, compress))
		if compress {
			assert.Equal(t, zstdMagic, buf.Bytes()[:4])
		}

		back, blobs, err := ReadBundle(ctx, bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, a, back)

		n, err := blobs.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(a.IDs()), n)

		dest := filepath.Join(t.TempDir(), "out")
		require.NoError(t, NewExtractor(Loader(blobs)).Extract(ctx, back, dest))
		assert.Equal(t, snapshot(t, src), snapshot(t, dest))
	}
}

func TestBundleLayout(t *testing.T) {
	ctx := context.Background()
	store := content.NewMemory()
	a, err := testCreator(Store(store)).Create(ctx, testTree(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteBundle(ctx, &buf, a, store, false))

	tr := tar.NewReader(&buf)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	require.NotEmpty(t, names)
	assert.Equal(t, IndexName, names[0])
	for i, id := range a.IDs() {
		assert.Equal(t, "blobs/"+string(id), names[i+1])
	}
}

func TestBundleErrors(t *testing.T) {
	ctx := context.Background()
	a, err := testCreator().Create(ctx, testTree(t))
	require.NoError(t, err)

	err = WriteBundle(ctx, io.Discard, a, nil, false)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	_, _, err = ReadBundle(ctx, bytes.NewReader([]byte("not a tar stream, not zstd either, but long enough to read a header from it")))
	require.Error(t, err)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, writeEntry(tw, "blobs/sha1-0000000000000000000000000000000000000000", []byte("x"), testTime))
	require.NoError(t, tw.Close())
	_, _, err = ReadBundle(ctx, &buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrProtocol), "blob does not match its id")

	buf.Reset()
	tw = tar.NewWriter(&buf)
	require.NoError(t, tw.Close())
	_, _, err = ReadBundle(ctx, &buf)
	assert.True(t, errors.Is(err, status.ErrProtocol), "missing index")
}
