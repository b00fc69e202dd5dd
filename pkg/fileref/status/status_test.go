package status

import (
	"fmt"
	"testing"

	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestIOKinds(t *testing.T) {
	err := IO("open", "a/b", unix.ENOENT)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, unix.ENOENT))
	assert.False(t, errors.Is(err, ErrIO))
	assert.Contains(t, err.Error(), "a/b")

	err = IO("open", "c", unix.EEXIST)
	assert.True(t, errors.Is(err, ErrExists))

	err = IO("mmap", "d", unix.ENOMEM)
	assert.True(t, errors.Is(err, ErrIO))

	var pe *PathError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "mmap", pe.Op)
	assert.Equal(t, "d", pe.Path)
}

func TestInvalidFormatIsInvalidArgument(t *testing.T) {
	err := ErrInvalidFormat.Wrap(fmt.Errorf("missing separator"))
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.True(t, errors.Is(err, ErrInvalidFormat))
	assert.False(t, errors.Is(ErrInvalidArgument, ErrInvalidFormat))

	perr := Pathf(ErrProtocol, "f", "length %d != %d", 1, 2)
	assert.True(t, errors.Is(perr, ErrProtocol))
	assert.Equal(t, "f: protocol error: length 1 != 2", perr.Error())
}
