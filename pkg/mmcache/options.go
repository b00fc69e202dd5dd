package mmcache

import (
	"time"

	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// DefaultValidateInterval is the minimum delay between two checks of the size of a mapped file
	DefaultValidateInterval = 5 * time.Second

	// DefaultChunkSize of the blobs of mapped files
	DefaultChunkSize = 1 << 20
)

// Clock tells the time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures the cache
type Option func(*Cache)

// Designated allows this process to map files. A cache which is not
// designated refuses Map.
func Designated(enabled bool) Option {
	return func(c *Cache) {
		c.designated = enabled
	}
}

// ValidateInterval sets how often the size of a mapped file is checked
func ValidateInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.interval = d
		}
	}
}

// ChunkSize used by Map when none is given
func ChunkSize(n int64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// Hash sets the digest algorithm of mapped blobs
func Hash(algo digest.Algorithm) Option {
	return func(c *Cache) {
		c.algo = algo
	}
}

// Logger for the cache
func Logger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.l = l
		}
	}
}

// Registerer exports the cache metrics
func Registerer(reg prometheus.Registerer) Option {
	return func(c *Cache) {
		c.reg = reg
	}
}

// WithClock replaces the system clock
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}
