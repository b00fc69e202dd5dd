// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/storage/status"
	"golang.org/x/sync/errgroup"
)

// MultiStoreUnit is used to specify multiple operations, some of which are tolerated to fail
type MultiStoreUnit struct {
	// Store is the backend to be accessed
	Store Store

	// TolerateFailure to false breaks multi-store operations whenever an error is encountered.
	TolerateFailure bool
}

// Mirror duplicates writes to a primary store and a set of replicas.
// Reads are served by the first store holding the key.
func Mirror(primary Store, replicas ...MultiStoreUnit) Store {
	units := make([]MultiStoreUnit, 0, len(replicas)+1)
	units = append(units, MultiStoreUnit{Store: primary})
	units = append(units, replicas...)
	return &mirror{units: units}
}

type mirror struct {
	units []MultiStoreUnit
}

// MultiPut duplicates write operations to an array of stores, under the same name
func MultiPut(ctx context.Context, stores []MultiStoreUnit, name string, buffer []byte, doesNotExist bool) error {
	var g errgroup.Group
	for _, w := range stores {
		w := w
		g.Go(func() error {
			err := w.Store.Put(ctx, name, bytes.NewReader(buffer), doesNotExist)
			if w.TolerateFailure {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func (m *mirror) Has(ctx context.Context, key string) (bool, error) {
	for _, u := range m.units {
		has, err := u.Store.Has(ctx, key)
		if err != nil && !u.TolerateFailure {
			return false, err
		}
		if has {
			return true, nil
		}
	}
	return false, nil
}

func (m *mirror) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var lastErr error = status.ErrNotExists
	for _, u := range m.units {
		rdr, err := u.Store.Get(ctx, key)
		if err == nil {
			return rdr, nil
		}
		if errors.Is(err, status.ErrNotExists) {
			lastErr = err
			continue
		}
		if !u.TolerateFailure {
			return nil, err
		}
	}
	return nil, lastErr
}

func (m *mirror) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	buffer, err := io.ReadAll(io.LimitReader(source, MaxObjectSizeInMemory+1))
	if err != nil {
		return err
	}
	if len(buffer) > MaxObjectSizeInMemory {
		return status.ErrObjectTooBig
	}
	return MultiPut(ctx, m.units, key, buffer, exclusive)
}

func (m *mirror) Delete(ctx context.Context, key string) error {
	for _, u := range m.units {
		if err := u.Store.Delete(ctx, key); err != nil && !u.TolerateFailure {
			return err
		}
	}
	return nil
}

func (m *mirror) Keys(ctx context.Context) ([]string, error) {
	return m.units[0].Store.Keys(ctx)
}

func (m *mirror) Clear(ctx context.Context) error {
	for _, u := range m.units {
		if err := u.Store.Clear(ctx); err != nil && !u.TolerateFailure {
			return err
		}
	}
	return nil
}

func (m *mirror) String() string {
	names := make([]string, 0, len(m.units))
	for _, u := range m.units {
		names = append(names, u.Store.String())
	}
	return "mirror(" + strings.Join(names, ",") + ")"
}
