package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	Setup(v, filepath.Join(t.TempDir(), "absent.yaml"))
	_, _, err := Load(v)
	require.Error(t, err, "an explicit config file must exist")

	v = viper.New()
	SetDefaults(v)
	c, used, err := Load(v)
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, Default(), c)

	algo, err := c.Algorithm()
	require.NoError(t, err)
	assert.Equal(t, digest.SHA1, algo)
	n, err := c.ChunkSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), n)
	n, err = c.SmallFileThresholdBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n)
	d, err := c.ValidateIntervalDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
}

func TestGenerateThenLoad(t *testing.T) {
	expected := Default()
	expected.Hash = "blake3"
	expected.ChunkSize = "64k"
	expected.Store = "badger:///var/lib/fileref"
	expected.Designated = false

	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, expected))
	assert.Contains(t, buf.String(), "chunk-size: 64k")

	pth := filepath.Join(t.TempDir(), "fileref.yaml")
	require.NoError(t, os.WriteFile(pth, buf.Bytes(), 0o600))

	v := viper.New()
	Setup(v, pth)
	c, used, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, pth, used)
	assert.Equal(t, expected, c)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FILEREF_CHUNK_SIZE", "2MiB")
	t.Setenv("FILEREF_HASH", "sha256")
	t.Setenv("FILEREF_MAX_IN_FLIGHT", "12")

	v := viper.New()
	Setup(v, "")
	c, _, err := Load(v)
	require.NoError(t, err)
	n, err := c.ChunkSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), n)
	assert.Equal(t, "sha256", c.Hash)
	assert.Equal(t, 12, c.MaxInFlight)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"hash":       func(c *Config) { c.Hash = "md5" },
		"chunk":      func(c *Config) { c.ChunkSize = "-1" },
		"threshold":  func(c *Config) { c.SmallFileThreshold = "lots" },
		"interval":   func(c *Config) { c.ValidateInterval = "soon" },
		"negative":   func(c *Config) { c.ValidateInterval = "-1s" },
		"level":      func(c *Config) { c.LogLevel = "chatty" },
		"in-flight":  func(c *Config) { c.MaxInFlight = -1 },
		"cache-size": func(c *Config) { c.CacheSize = -1 },
	} {
		c := Default()
		mutate(c)
		err := c.Validate()
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, status.ErrInvalidArgument), name)
	}

	c := Default()
	c.ChunkSize = "0"
	c.SmallFileThreshold = ""
	require.NoError(t, c.Validate())
}
