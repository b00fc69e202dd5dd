// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"

	"github.com/oneconcern/fileref/pkg/storage/status"
)

// MaxObjectSizeInMemory bounds the size of a blob read in memory
const MaxObjectSizeInMemory = 2 * 1024 * 1024 * 1024 // 2 gigs

const (
	// NoOverWrite makes a Put fail with status.ErrExists if the key already exists
	NoOverWrite = true

	// OverWrite replaces an existing key on Put
	OverWrite = false
)

// Store implementations know how to write entries to a K/V model.
//
// Typically this is something file system-like. Examples are S3, local FS, an embedded KV store...
// Implementations of this interface are assumed to be fairly simple.
//
// Get returns an error matching status.ErrNotExists for a missing key.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader, bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	Clear(context.Context) error
}

// ReadAll reads a whole object in memory
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	rdr, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	b, err := io.ReadAll(io.LimitReader(rdr, MaxObjectSizeInMemory+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxObjectSizeInMemory {
		return nil, status.ErrObjectTooBig
	}
	return b, nil
}
