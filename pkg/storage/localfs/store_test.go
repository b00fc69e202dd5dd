// Copyright © 2018 One Concern

package localfs

import (
	"bytes"
	"context"
	"io"
	"sort"
	"testing"

	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/storage"
	"github.com/oneconcern/fileref/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHas(t *testing.T) {
	bs := setupStore(t)

	has, err := bs.Has(context.Background(), "sixteentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "seventeentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "fifteentons")
	require.NoError(t, err)
	require.False(t, has)
}

func TestGet(t *testing.T) {
	bs := setupStore(t)

	b, err := storage.ReadAll(context.Background(), bs, "sixteentons")
	require.NoError(t, err)
	assert.Equal(t, "this is the text", string(b))

	b, err = storage.ReadAll(context.Background(), bs, "seventeentons")
	require.NoError(t, err)
	assert.Equal(t, "this is the text for another thing", string(b))

	_, err = bs.Get(context.Background(), "fifteentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotExists))
}

func TestKeys(t *testing.T) {
	bs := setupStore(t)

	require.NoError(t, bs.Put(context.Background(), "nested/key", bytes.NewBufferString("x"), storage.OverWrite))

	keys, err := bs.Keys(context.Background())
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, []string{"nested/key", "seventeentons", "sixteentons"}, keys)
}

func TestDelete(t *testing.T) {
	bs := setupStore(t)

	require.NoError(t, bs.Delete(context.Background(), "seventeentons"))
	require.NoError(t, bs.Delete(context.Background(), "seventeentons"), "deleting a missing key is not an error")
	k, _ := bs.Keys(context.Background())
	assert.Len(t, k, 1)
}

func TestClear(t *testing.T) {
	bs := setupStore(t)

	require.NoError(t, bs.Clear(context.Background()))
	k, _ := bs.Keys(context.Background())
	require.Empty(t, k)
}

func TestPut(t *testing.T) {
	bs := setupStore(t)

	content := bytes.NewBufferString("here we go once again")
	err := bs.Put(context.Background(), "eighteentons", content, storage.NoOverWrite)
	require.NoError(t, err)

	rdr, err := bs.Get(context.Background(), "eighteentons")
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())

	assert.Equal(t, "here we go once again", string(b))

	k, _ := bs.Keys(context.Background())
	assert.Len(t, k, 3, "the staging area must not leak into keys")

	err = bs.Put(context.Background(), "eighteentons", bytes.NewBufferString("other"), storage.NoOverWrite)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrExists))

	require.NoError(t, bs.Put(context.Background(), "eighteentons", bytes.NewBufferString("other"), storage.OverWrite))
	b, err = storage.ReadAll(context.Background(), bs, "eighteentons")
	require.NoError(t, err)
	assert.Equal(t, "other", string(b))
}

func TestInvalidKeys(t *testing.T) {
	bs := setupStore(t)

	for _, key := range []string{"", nestedPutStageName + "/x", "../escape", "a/../../b"} {
		err := bs.Put(context.Background(), key, bytes.NewBufferString("x"), storage.OverWrite)
		require.Error(t, err, key)
		assert.True(t, errors.Is(err, status.ErrInvalidResource), key)
	}
}

func TestOnDisk(t *testing.T) {
	bs, err := NewDir(t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, bs.String(), "localfs@")

	require.NoError(t, bs.Put(context.Background(), "k", bytes.NewBufferString("v"), storage.NoOverWrite))
	b, err := storage.ReadAll(context.Background(), bs, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(b))
}

func setupStore(t testing.TB) storage.Store {
	t.Helper()

	fs := afero.NewMemMapFs()
	f, err := fs.Create("sixteentons")
	require.NoError(t, err)
	_, err = f.WriteString("this is the text")
	require.NoError(t, err)
	f.Close()

	ff, err := fs.Create("seventeentons")
	require.NoError(t, err)
	_, err = ff.WriteString("this is the text for another thing")
	require.NoError(t, err)
	ff.Close()

	return New(fs)
}
