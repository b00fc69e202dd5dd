// Package metrics declares the prometheus collectors exported by the
// content store, the storage backends and the mmap cache.
//
// Collectors are always usable. They are only exported when a
// prometheus.Registerer is supplied.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fileref"

// Cache collectors for the mmap cache
type Cache struct {
	Hits               prometheus.Counter
	Misses             prometheus.Counter
	ValidationFailures prometheus.Counter
	Regions            prometheus.Gauge
	Entries            prometheus.Gauge
	MappedBytes        prometheus.Gauge
}

// NewCache builds the cache collectors and registers them on reg, if not nil
func NewCache(reg prometheus.Registerer) *Cache {
	c := &Cache{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Number of lookups served from a mapped region.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Number of lookups for a digest not in the cache.",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "validation_failures_total",
			Help: "Number of cached blobs rejected on validation.",
		}),
		Regions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "regions",
			Help: "Number of live mapped regions.",
		}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "entries",
			Help: "Number of digests resolvable from the cache.",
		}),
		MappedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "mapped_bytes",
			Help: "Total size of the live mappings.",
		}),
	}
	register(reg, c.Hits, c.Misses, c.ValidationFailures, c.Regions, c.Entries, c.MappedBytes)
	return c
}

// Content collectors for the content store
type Content struct {
	Stores     prometheus.Counter
	Duplicates prometheus.Counter
	Loads      prometheus.Counter
	CacheHits  prometheus.Counter
	Bytes      prometheus.Counter
}

// NewContent builds the content store collectors and registers them on reg, if not nil
func NewContent(reg prometheus.Registerer) *Content {
	c := &Content{
		Stores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "content", Name: "stores_total",
			Help: "Number of blobs written to the backend.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "content", Name: "duplicates_total",
			Help: "Number of store requests for a blob already present.",
		}),
		Loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "content", Name: "loads_total",
			Help: "Number of blobs read from the backend.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "content", Name: "lru_hits_total",
			Help: "Number of loads served from the in-memory LRU.",
		}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "content", Name: "stored_bytes_total",
			Help: "Number of bytes written to the backend.",
		}),
	}
	register(reg, c.Stores, c.Duplicates, c.Loads, c.CacheHits, c.Bytes)
	return c
}

// Storage collectors for an instrumented storage backend
type Storage struct {
	Calls  *prometheus.CounterVec
	Errors *prometheus.CounterVec
}

// NewStorage builds backend call counters and registers them on reg, if not nil
func NewStorage(reg prometheus.Registerer) *Storage {
	s := &Storage{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "calls_total",
			Help: "Number of calls to the storage backend.",
		}, []string{"backend", "op"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "errors_total",
			Help: "Number of failed calls to the storage backend.",
		}, []string{"backend", "op"}),
	}
	register(reg, s.Calls, s.Errors)
	return s
}

func register(reg prometheus.Registerer, cs ...prometheus.Collector) {
	if reg == nil {
		return
	}
	reg.MustRegister(cs...)
}
