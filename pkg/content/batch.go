package content

import (
	"context"

	"github.com/oneconcern/fileref/internal/pipeline"
	"github.com/oneconcern/fileref/pkg/digest"
)

// StoreAll stores blobs with a bounded number of concurrent requests.
// The ids are returned in the order of blobs.
func (s *BlobStore) StoreAll(ctx context.Context, blobs [][]byte) ([]digest.ID, error) {
	ids := make([]digest.ID, len(blobs))
	err := pipeline.Ordered(ctx, len(blobs), s.maxInFlight,
		func(ctx context.Context, i int) (digest.ID, error) {
			return s.Store(ctx, blobs[i])
		},
		func(i int, id digest.ID) error {
			ids[i] = id
			return nil
		})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// LoadAll loads blobs with a bounded number of concurrent requests.
// The blobs are returned in the order of ids.
func LoadAll(ctx context.Context, loader Loader, ids []digest.ID, maxInFlight int) ([][]byte, error) {
	blobs := make([][]byte, len(ids))
	err := pipeline.Ordered(ctx, len(ids), maxInFlight,
		func(ctx context.Context, i int) ([]byte, error) {
			return loader.Load(ctx, ids[i])
		},
		func(i int, b []byte) error {
			blobs[i] = b
			return nil
		})
	if err != nil {
		return nil, err
	}
	return blobs, nil
}

// LoadAll loads blobs from this store, see LoadAll
func (s *BlobStore) LoadAll(ctx context.Context, ids []digest.ID) ([][]byte, error) {
	return LoadAll(ctx, s, ids, s.maxInFlight)
}
