package fileref

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oneconcern/fileref/internal/rand"
	"github.com/stretchr/testify/require"
)

const blockSize = 4096

// patternFile writes a file of len(pattern) blocks: 'a' is a block of
// random data, '-' a hole. It returns the path and the content of each block.
func patternFile(t testing.TB, dir, pattern string) (string, [][]byte) {
	t.Helper()

	pth := filepath.Join(dir, "pattern-"+pattern)
	f, err := os.Create(pth)
	require.NoError(t, err)
	defer f.Close()

	blocks := make([][]byte, len(pattern))
	gen := rand.New(int64(len(pattern)))
	for i, c := range pattern {
		blocks[i] = make([]byte, blockSize)
		if c == '-' {
			continue
		}
		blocks[i] = gen.Bytes(blockSize)
		_, err = f.WriteAt(blocks[i], int64(i*blockSize))
		require.NoError(t, err)
	}
	require.NoError(t, f.Truncate(int64(len(pattern)*blockSize)))
	return pth, blocks
}

func writeFile(t testing.TB, dir, name string, content []byte) string {
	t.Helper()
	pth := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(pth), 0o755))
	require.NoError(t, os.WriteFile(pth, content, 0o640))
	return pth
}
