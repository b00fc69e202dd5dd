package content

import (
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option to configure the blob store
type Option func(*BlobStore)

// Hash sets the algorithm used to compute content ids
func Hash(algo digest.Algorithm) Option {
	return func(s *BlobStore) {
		s.algo = algo
	}
}

// Logger for the blob store
func Logger(l *zap.Logger) Option {
	return func(s *BlobStore) {
		if l != nil {
			s.l = l
		}
	}
}

// CacheSize sets the number of loaded blobs kept in memory
func CacheSize(n int) Option {
	return func(s *BlobStore) {
		s.cacheSize = n
	}
}

// MaxInFlight bounds the number of concurrent requests in batch operations
func MaxInFlight(n int) Option {
	return func(s *BlobStore) {
		s.maxInFlight = n
	}
}

// VerifyOnLoad checks loaded blobs against their id (enabled by default)
func VerifyOnLoad(enabled bool) Option {
	return func(s *BlobStore) {
		s.verify = enabled
	}
}

// Registerer exports the store metrics
func Registerer(reg prometheus.Registerer) Option {
	return func(s *BlobStore) {
		s.m = metrics.NewContent(reg)
	}
}
