// Package content implements a content-addressable blob store on top of a
// storage backend: blobs are keyed by their content id.
package content

import (
	"bytes"
	"context"

	"github.com/docker/go-units"
	lru "github.com/hashicorp/golang-lru"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/oneconcern/fileref/pkg/metrics"
	"github.com/oneconcern/fileref/pkg/storage"
	"github.com/oneconcern/fileref/pkg/storage/localfs"
	storagestatus "github.com/oneconcern/fileref/pkg/storage/status"
	"go.uber.org/zap"
)

const (
	// DefaultCacheSize is the default number of blobs kept in the read cache. Zero disables it.
	DefaultCacheSize = 0

	// MaxCachedBlobSize is the largest blob admitted into the read cache
	MaxCachedBlobSize = 4 * units.MiB
)

// Storer stores a blob and returns its content id
type Storer interface {
	Store(context.Context, []byte) (digest.ID, error)
}

// Loader loads a blob by its content id.
//
// A missing id is reported as status.ErrNotFound.
type Loader interface {
	Load(context.Context, digest.ID) ([]byte, error)
}

// Store both stores and loads blobs
type Store interface {
	Storer
	Loader
}

var _ Store = &BlobStore{}

// BlobStore is a content addressable store on a storage backend.
//
// Storing the same bytes twice yields the same id and writes nothing the second time.
type BlobStore struct {
	backend     storage.Store
	algo        digest.Algorithm
	l           *zap.Logger
	m           *metrics.Content
	cacheSize   int
	lru         *lru.Cache
	maxInFlight int
	verify      bool
}

func defaultsForStore() *BlobStore {
	return &BlobStore{
		algo:      digest.Default,
		l:         zap.NewNop(),
		cacheSize: DefaultCacheSize,
		verify:    true,
	}
}

// New builds a blob store on backend
func New(backend storage.Store, opts ...Option) (*BlobStore, error) {
	s := defaultsForStore()
	s.backend = backend
	for _, apply := range opts {
		apply(s)
	}
	if s.backend == nil {
		s.backend = localfs.NewMemory()
	}
	if !s.algo.Valid() {
		return nil, status.ErrInvalidArgument.Wrapf("unknown hash algorithm %d", s.algo)
	}
	if s.m == nil {
		s.m = metrics.NewContent(nil)
	}
	if s.cacheSize > 0 {
		var err error
		if s.lru, err = lru.New(s.cacheSize); err != nil {
			return nil, status.ErrInvalidArgument.Wrap(err)
		}
	}
	return s, nil
}

// NewMemory builds a blob store backed by memory
func NewMemory(opts ...Option) *BlobStore {
	s, err := New(localfs.NewMemory(), opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Algorithm used to compute content ids
func (s *BlobStore) Algorithm() digest.Algorithm {
	return s.algo
}

// Backend storage
func (s *BlobStore) Backend() storage.Store {
	return s.backend
}

// Store a blob
func (s *BlobStore) Store(ctx context.Context, data []byte) (digest.ID, error) {
	id := digest.Sum(s.algo, data).ID()
	if err := s.put(ctx, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Add stores a blob under a known id, which may use any algorithm.
// The data must hash to id.
func (s *BlobStore) Add(ctx context.Context, id digest.ID, data []byte) error {
	d, err := id.Digest()
	if err != nil {
		return err
	}
	if digest.Sum(d.Algorithm(), data) != d {
		return status.ErrProtocol.Wrapf("blob does not match content id %s", id)
	}
	return s.put(ctx, id, data)
}

func (s *BlobStore) put(ctx context.Context, id digest.ID, data []byte) error {
	key := string(id)
	has, err := s.backend.Has(ctx, key)
	if err != nil {
		return status.ErrIO.Wrap(err)
	}
	if has {
		s.m.Duplicates.Inc()
		s.l.Debug("blob already stored", zap.String("id", key))
		return nil
	}

	err = s.backend.Put(ctx, key, bytes.NewReader(data), storage.NoOverWrite)
	if err != nil && !errors.Is(err, storagestatus.ErrExists) {
		return status.ErrIO.Wrap(err)
	}
	s.m.Stores.Inc()
	s.m.Bytes.Add(float64(len(data)))
	s.l.Debug("blob stored", zap.String("id", key), zap.Int("size", len(data)))
	return nil
}

// Load a blob. The loaded bytes are checked against their id.
func (s *BlobStore) Load(ctx context.Context, id digest.ID) ([]byte, error) {
	d, err := id.Digest()
	if err != nil {
		return nil, err
	}
	if s.lru != nil {
		if v, ok := s.lru.Get(d); ok {
			s.m.CacheHits.Inc()
			return append([]byte(nil), v.([]byte)...), nil
		}
	}

	data, err := storage.ReadAll(ctx, s.backend, string(id))
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotExists) {
			return nil, status.ErrNotFound.Wrapf("content id %s", id)
		}
		return nil, status.ErrIO.Wrap(err)
	}
	s.m.Loads.Inc()

	if s.verify && digest.Sum(d.Algorithm(), data) != d {
		s.l.Warn("stored blob does not match its content id", zap.String("id", string(id)))
		return nil, status.ErrProtocol.Wrapf("blob does not match content id %s", id)
	}
	if s.lru != nil && len(data) <= MaxCachedBlobSize {
		s.lru.Add(d, append([]byte(nil), data...))
	}
	return data, nil
}

// Has the blob?
func (s *BlobStore) Has(ctx context.Context, id digest.ID) (bool, error) {
	return s.backend.Has(ctx, string(id))
}

// Len returns the number of stored blobs
func (s *BlobStore) Len(ctx context.Context) (int, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
