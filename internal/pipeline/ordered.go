// Package pipeline runs bounded concurrent work and hands results back in
// their original order.
package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxInFlight bounds the number of pending requests when none is configured
const DefaultMaxInFlight = 1000

// Ordered calls fetch for each index in [0, n) with at most limit items
// fetched or waiting for emission at any time, and calls emit with the
// results in index order. emit calls are serialized.
//
// The first error returned by fetch or emit cancels the remaining work and
// is returned.
func Ordered[T any](ctx context.Context, n, limit int, fetch func(context.Context, int) (T, error), emit func(int, T) error) error {
	if n == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultMaxInFlight
	}
	if limit > n {
		limit = n
	}

	g, gctx := errgroup.WithContext(ctx)
	window := make(chan struct{}, limit)

	var (
		mx      sync.Mutex
		next    int
		pending = make(map[int]T, limit)
	)

	deliver := func(i int, v T) error {
		mx.Lock()
		defer mx.Unlock()

		pending[i] = v
		for {
			w, ok := pending[next]
			if !ok {
				return nil
			}
			delete(pending, next)
			if err := emit(next, w); err != nil {
				return err
			}
			next++
			<-window
		}
	}

launch:
	for i := 0; i < n; i++ {
		select {
		case window <- struct{}{}:
		case <-gctx.Done():
			break launch
		}

		i := i
		g.Go(func() error {
			v, err := fetch(gctx, i)
			if err != nil {
				return err
			}
			return deliver(i, v)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
