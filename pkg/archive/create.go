// Copyright © 2018 One Concern

package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/oneconcern/fileref/internal/pipeline"
	"github.com/oneconcern/fileref/pkg/content"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/oneconcern/fileref/pkg/walk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// adder stores a blob under an id computed by the caller
type adder interface {
	Add(context.Context, digest.ID, []byte) error
}

// Creator builds archives out of file trees
type Creator struct {
	options          []fileref.Option
	store            content.Storer
	maxInFlight      int
	order            walk.Order
	ignoreFailedRead bool
	visit            func(*fileref.Fileref) error
	l                *zap.Logger
}

// NewCreator builds a Creator
func NewCreator(opts ...CreatorOption) *Creator {
	c := &Creator{
		maxInFlight: pipeline.DefaultMaxInFlight,
		order:       walk.PreOrder,
		l:           zap.NewNop(),
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// Create an archive of paths.
//
// A directory is walked and its content recorded relative to it. Any other
// path is recorded under its base name. Blobs are written to the store
// concurrently, and each file stays mapped until all its blobs are stored.
func (c *Creator) Create(ctx context.Context, paths ...string) (*Archive, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxInFlight)

	b := &builder{Creator: c, ctx: gctx, g: g, archive: &Archive{}}
	var err error
	for _, p := range paths {
		if err = b.add(p); err != nil {
			break
		}
	}
	werr := g.Wait()
	switch {
	case err == nil, err == walk.Stop: //nolint:errorlint
		err = werr
	case werr != nil && ctx.Err() == nil && errors.Is(err, context.Canceled):
		// the walk saw the group context cancelled by a failed upload
		err = werr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	c.l.Debug("archive created", zap.Int("entries", b.archive.Len()), zap.Int64("blobs", b.blobs.Load()))
	return b.archive, nil
}

type builder struct {
	*Creator
	ctx     context.Context
	g       *errgroup.Group
	archive *Archive
	stopped bool
	blobs   atomic.Int64
}

func (b *builder) add(pth string) error {
	info, err := os.Lstat(pth)
	if err != nil {
		return b.failed(pth, status.IO("lstat", pth, err))
	}
	if !info.IsDir() {
		return b.record(pth, filepath.Base(pth))
	}

	err = walk.Walk(b.ctx, pth, b.order, func(e walk.Entry, err error) error {
		if err != nil {
			return b.failed(e.FullPath, err)
		}
		if e.Path == "." {
			return nil
		}
		return b.record(e.FullPath, e.Path)
	})
	if err == nil && b.stopped {
		return walk.Stop
	}
	return err
}

// failed decides whether a read failure aborts the archive
func (b *builder) failed(pth string, err error) error {
	if !b.ignoreFailedRead || b.ctx.Err() != nil {
		return err
	}
	b.l.Warn("skipping unreadable object", zap.String("path", pth), zap.Error(err))
	return nil
}

func (b *builder) record(full, name string) error {
	if err := b.ctx.Err(); err != nil {
		return err
	}

	opts := make([]fileref.Option, 0, len(b.options)+1)
	opts = append(opts, b.options...)
	opts = append(opts, fileref.Name(name))

	f, m, err := fileref.CreateMapped(full, opts...)
	if err != nil {
		return b.failed(full, err)
	}
	if m != nil {
		if b.store == nil {
			if err := m.Close(); err != nil {
				return err
			}
		} else {
			b.upload(f, m)
		}
	}

	b.archive.Entries = append(b.archive.Entries, f)
	b.l.Debug("archived", zap.String("path", f.Path), zap.Stringer("kind", f.Kind()), zap.Int64("size", f.Size))

	if b.visit != nil {
		if err := b.visit(f); err != nil {
			if err == walk.Stop { //nolint:errorlint
				b.stopped = true
			}
			return err
		}
	}
	return nil
}

// upload queues the blobs of a mapped file. The mapping is closed once the
// last of them is stored, or failed.
func (b *builder) upload(f *fileref.Fileref, m *fileref.Mapping) {
	remaining := new(atomic.Int64)
	remaining.Store(int64(len(f.Blobvec)))

	for _, e := range f.Blobvec {
		e := e
		data, err := m.Slice(e)
		b.g.Go(func() error {
			defer func() {
				if remaining.Add(-1) == 0 {
					if cerr := m.Close(); cerr != nil {
						b.l.Warn("closing mapping", zap.String("path", m.Path()), zap.Error(cerr))
					}
				}
			}()
			if err != nil {
				return err
			}
			if err := b.ctx.Err(); err != nil {
				return err
			}
			if err := b.put(e.ID, data); err != nil {
				return status.Path(status.ErrIO, "store", f.Path, err)
			}
			b.blobs.Add(1)
			return nil
		})
	}
}

func (b *builder) put(id digest.ID, data []byte) error {
	if a, ok := b.store.(adder); ok {
		return a.Add(b.ctx, id, data)
	}
	stored, err := b.store.Store(b.ctx, data)
	if err != nil {
		return err
	}
	if stored != id {
		return status.ErrInvalidArgument.Wrapf("store hashes with another algorithm: stored %s, expected %s", stored, id)
	}
	return nil
}
