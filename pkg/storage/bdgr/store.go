// Copyright © 2018 One Concern

// Package bdgr implements a storage.Store on an embedded badger database.
package bdgr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/storage"
	"github.com/oneconcern/fileref/pkg/storage/status"
)

// Store is a badger backed blob store. It must be closed after use.
type Store struct {
	db   *badger.DB
	path string
}

var _ storage.Store = &Store{}

type options struct {
	inMemory bool
	syncs    bool
}

// Option for the badger store
type Option func(*options)

// InMemory keeps the database in memory. The path is ignored.
func InMemory(enabled bool) Option {
	return func(o *options) {
		o.inMemory = enabled
	}
}

// SyncWrites flushes every write to disk
func SyncWrites(enabled bool) Option {
	return func(o *options) {
		o.syncs = enabled
	}
}

// New opens or creates a badger database at pth
func New(pth string, opts ...Option) (*Store, error) {
	o := options{}
	for _, apply := range opts {
		apply(&o)
	}

	var bopts badger.Options
	if o.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
		pth = ""
	} else {
		if err := os.MkdirAll(pth, 0700); err != nil {
			return nil, fmt.Errorf("badger store: mkdir: %w", err)
		}
		bopts = badger.DefaultOptions(pth).WithSyncWrites(o.syncs)
	}

	db, err := badger.Open(bopts.
		WithLoggingLevel(badger.WARNING).
		WithMetricsEnabled(false))
	if err != nil {
		return nil, fmt.Errorf("badger store: open: %w", err)
	}
	return &Store{db: db, path: pth}, nil
}

// Close the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Has a key?
func (s *Store) Has(_ context.Context, key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, e := txn.Get([]byte(key))

		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// Get a copy of the value stored at key
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, e := txn.Get([]byte(key))
		if e != nil {
			return e
		}
		value, e = item.ValueCopy(nil)

		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, status.ErrNotExists.Wrapf("key %q", key)
		}
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(value)), nil
}

// Put a value. Transaction conflicts are retried.
func (s *Store) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	value, err := io.ReadAll(source)
	if err != nil {
		return err
	}

	return backoff.Retry(func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			if exclusive {
				_, e := txn.Get([]byte(key))
				if e == nil {
					return backoff.Permanent(status.ErrExists.Wrapf("key %q", key))
				}
				if !errors.Is(e, badger.ErrKeyNotFound) {
					return backoff.Permanent(e)
				}
			}

			e := txn.Set([]byte(key), value)
			if e != nil {
				if errors.Is(e, badger.ErrConflict) {
					return e // retry
				}

				return backoff.Permanent(e)
			}

			return nil
		})
	},
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), 100), ctx),
	)
}

// Delete a key
func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Keys lists all keys
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}

		return nil
	})

	return keys, err
}

// Clear drops all keys
func (s *Store) Clear(_ context.Context) error {
	return s.db.DropAll()
}

func (s *Store) String() string {
	if s.path == "" {
		return "badger@memory"
	}
	return "badger@" + s.path
}
