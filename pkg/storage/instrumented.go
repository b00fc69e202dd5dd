// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"

	"github.com/oneconcern/fileref/pkg/metrics"
	"go.uber.org/zap"
)

// Instrument decorates a store with debug logging and call counters
func Instrument(logger *zap.Logger, m *metrics.Storage, store Store) Store {
	if m == nil {
		m = metrics.NewStorage(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedStore{
		store:   store,
		metrics: m,
		l:       logger.With(zap.String("backend", store.String())),
	}
}

type instrumentedStore struct {
	store   Store
	metrics *metrics.Storage
	l       *zap.Logger
}

func (i *instrumentedStore) observe(op string, err error, fields ...zap.Field) {
	i.metrics.Calls.WithLabelValues(i.store.String(), op).Inc()
	if err != nil {
		i.metrics.Errors.WithLabelValues(i.store.String(), op).Inc()
		fields = append(fields, zap.Error(err))
	}
	i.l.Debug("storage "+op, fields...)
}

func (i *instrumentedStore) Has(ctx context.Context, key string) (bool, error) {
	has, err := i.store.Has(ctx, key)
	i.observe("has", err, zap.String("key", key), zap.Bool("has", has))
	return has, err
}

func (i *instrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rdr, err := i.store.Get(ctx, key)
	i.observe("get", err, zap.String("key", key))
	return rdr, err
}

func (i *instrumentedStore) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	err := i.store.Put(ctx, key, source, exclusive)
	i.observe("put", err, zap.String("key", key))
	return err
}

func (i *instrumentedStore) Delete(ctx context.Context, key string) error {
	err := i.store.Delete(ctx, key)
	i.observe("delete", err, zap.String("key", key))
	return err
}

func (i *instrumentedStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := i.store.Keys(ctx)
	i.observe("keys", err, zap.Int("count", len(keys)))
	return keys, err
}

func (i *instrumentedStore) Clear(ctx context.Context) error {
	err := i.store.Clear(ctx)
	i.observe("clear", err)
	return err
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}
