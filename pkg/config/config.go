// Copyright © 2018 One Concern

// Package config loads the settings shared by the fileref commands.
//
// Settings come from a YAML file, overridden by FILEREF_* environment
// variables, overridden by command line flags bound to the same keys.
package config

import (
	"io"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/oneconcern/fileref/internal/pipeline"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/dlogger"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Keys of the settings
const (
	KeyHash               = "hash"
	KeyChunkSize          = "chunk-size"
	KeySmallFileThreshold = "small-file-threshold"
	KeyStore              = "store"
	KeyLogLevel           = "log-level"
	KeyMaxInFlight        = "max-in-flight"
	KeyDesignated         = "designated"
	KeyValidateInterval   = "validate-interval"
	KeyCacheSize          = "cache-size"
)

const (
	// EnvPrefix of the environment overrides
	EnvPrefix = "FILEREF"

	// EnvConfig names an explicit config file
	EnvConfig = "FILEREF_CONFIG"

	// Name of the config file, without extension
	Name = "fileref"
)

// Config of the fileref commands
type Config struct {
	Hash               string `json:"hash" yaml:"hash" mapstructure:"hash"`
	ChunkSize          string `json:"chunk-size" yaml:"chunk-size" mapstructure:"chunk-size"`
	SmallFileThreshold string `json:"small-file-threshold" yaml:"small-file-threshold" mapstructure:"small-file-threshold"`
	Store              string `json:"store" yaml:"store" mapstructure:"store"`
	LogLevel           string `json:"log-level" yaml:"log-level" mapstructure:"log-level"`
	MaxInFlight        int    `json:"max-in-flight" yaml:"max-in-flight" mapstructure:"max-in-flight"`
	Designated         bool   `json:"designated" yaml:"designated" mapstructure:"designated"`
	ValidateInterval   string `json:"validate-interval" yaml:"validate-interval" mapstructure:"validate-interval"`
	CacheSize          int    `json:"cache-size" yaml:"cache-size" mapstructure:"cache-size"`
}

// Default settings
func Default() *Config {
	return &Config{
		Hash:               digest.Default.String(),
		ChunkSize:          "1MiB",
		SmallFileThreshold: "1KiB",
		Store:              "mem://",
		LogLevel:           "info",
		MaxInFlight:        pipeline.DefaultMaxInFlight,
		Designated:         true,
		ValidateInterval:   "5s",
	}
}

// SetDefaults registers the default settings on v
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyHash, d.Hash)
	v.SetDefault(KeyChunkSize, d.ChunkSize)
	v.SetDefault(KeySmallFileThreshold, d.SmallFileThreshold)
	v.SetDefault(KeyStore, d.Store)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyMaxInFlight, d.MaxInFlight)
	v.SetDefault(KeyDesignated, d.Designated)
	v.SetDefault(KeyValidateInterval, d.ValidateInterval)
	v.SetDefault(KeyCacheSize, d.CacheSize)
}

// Setup points v at the config file and the environment.
// The file named by FILEREF_CONFIG wins over the search paths.
func Setup(v *viper.Viper, explicit string) {
	SetDefaults(v)
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fileref")
		v.AddConfigPath("/etc/fileref")
		v.SetConfigName(Name)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads the config file, if any, and returns the validated settings
// along with the file used.
func Load(v *viper.Viper) (*Config, string, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, "", status.ErrInvalidArgument.Wrapf("reading config: %v", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, "", status.ErrInvalidArgument.Wrapf("decoding config: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, "", err
	}
	return &c, v.ConfigFileUsed(), nil
}

// Validate the settings
func (c *Config) Validate() error {
	if _, err := c.Algorithm(); err != nil {
		return err
	}
	if _, err := c.ChunkSizeBytes(); err != nil {
		return err
	}
	if _, err := c.SmallFileThresholdBytes(); err != nil {
		return err
	}
	if _, err := c.ValidateIntervalDuration(); err != nil {
		return err
	}
	if !validLevel(c.LogLevel) {
		return status.ErrInvalidArgument.Wrapf("%s must be one of %s", KeyLogLevel, strings.Join(dlogger.Levels(), ", "))
	}
	if c.MaxInFlight < 0 {
		return status.ErrInvalidArgument.Wrapf("negative %s %d", KeyMaxInFlight, c.MaxInFlight)
	}
	if c.CacheSize < 0 {
		return status.ErrInvalidArgument.Wrapf("negative %s %d", KeyCacheSize, c.CacheSize)
	}
	return nil
}

// Algorithm of the content ids
func (c *Config) Algorithm() (digest.Algorithm, error) {
	return digest.ParseAlgorithm(c.Hash)
}

// ChunkSizeBytes parses the chunk size
func (c *Config) ChunkSizeBytes() (int64, error) {
	return parseSize(KeyChunkSize, c.ChunkSize)
}

// SmallFileThresholdBytes parses the small file threshold
func (c *Config) SmallFileThresholdBytes() (int64, error) {
	return parseSize(KeySmallFileThreshold, c.SmallFileThreshold)
}

// ValidateIntervalDuration parses the validation interval of the mmap cache
func (c *Config) ValidateIntervalDuration() (time.Duration, error) {
	if c.ValidateInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ValidateInterval)
	if err != nil {
		return 0, status.ErrInvalidArgument.Wrapf("%s: %v", KeyValidateInterval, err)
	}
	if d < 0 {
		return 0, status.ErrInvalidArgument.Wrapf("negative %s %v", KeyValidateInterval, d)
	}
	return d, nil
}

func validLevel(level string) bool {
	for _, l := range dlogger.Levels() {
		if l == level {
			return true
		}
	}
	return false
}

// parseSize accepts "4096", "64k", "1MiB"... Sizes are powers of 1024.
func parseSize(key, s string) (int64, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	if strings.HasPrefix(strings.TrimSpace(s), "-") {
		return 0, status.ErrInvalidArgument.Wrapf("negative %s %q", key, s)
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, status.ErrInvalidArgument.Wrapf("%s: %v", key, err)
	}
	return n, nil
}

// Generate writes c as YAML
func Generate(w io.Writer, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
