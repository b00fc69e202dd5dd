// Copyright © 2018 One Concern

// Package stage maps files into the mmap cache under a tag, lists them and
// serves their blobs, falling back to a content store for anything not
// staged.
package stage

import (
	"context"
	"os"
	"path"
	"strings"

	"github.com/oneconcern/fileref/internal/pipeline"
	"github.com/oneconcern/fileref/pkg/content"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/oneconcern/fileref/pkg/mmcache"
	"github.com/oneconcern/fileref/pkg/walk"
	"go.uber.org/zap"
)

// DefaultPageSize is the number of filerefs per listed page
const DefaultPageSize = 100

var _ content.Loader = &Stager{}

// Stager stages files for fast access
type Stager struct {
	cache *mmcache.Cache
	store content.Store
	l     *zap.Logger
}

// Option for a Stager
type Option func(*Stager)

// Logger for the stager
func Logger(l *zap.Logger) Option {
	return func(s *Stager) {
		if l != nil {
			s.l = l
		}
	}
}

// Store sets the content store used for listed ids and as a fallback on load
func Store(store content.Store) Option {
	return func(s *Stager) {
		s.store = store
	}
}

// New stager on a cache
func New(cache *mmcache.Cache, opts ...Option) *Stager {
	s := &Stager{cache: cache, l: zap.NewNop()}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// Map files under tag. Directories are walked and the regular files found
// in them are mapped.
func (s *Stager) Map(ctx context.Context, tag string, paths ...string) ([]*fileref.Fileref, error) {
	var mapped []*fileref.Fileref
	mapOne := func(pth string) error {
		f, err := s.cache.Map(pth, tag, 0)
		if err != nil {
			return err
		}
		mapped = append(mapped, f)
		return nil
	}

	for _, pth := range paths {
		if err := ctx.Err(); err != nil {
			return mapped, err
		}
		info, err := os.Lstat(pth)
		if err != nil {
			return mapped, status.IO("lstat", pth, err)
		}
		if !info.IsDir() {
			if err := mapOne(pth); err != nil {
				return mapped, err
			}
			continue
		}

		err = walk.Walk(ctx, pth, walk.PreOrder, func(e walk.Entry, err error) error {
			if err != nil {
				return err
			}
			if !e.Info.Mode().IsRegular() {
				return nil
			}
			return mapOne(e.FullPath)
		})
		if err != nil {
			return mapped, err
		}
	}
	s.l.Info("staged files", zap.String("tag", tag), zap.Int("files", len(mapped)))
	return mapped, nil
}

// Unmap the files staged under tag
func (s *Stager) Unmap(ctx context.Context, tag string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.cache.Unmap(tag)
}

// ListOptions select what List reports
type ListOptions struct {
	// Pattern filters paths, with path.Match syntax. A pattern without a
	// slash is matched against base names. Empty matches everything.
	Pattern string
	// ContentIDs stores each fileref in the content store and lists its id instead
	ContentIDs bool
	// PageSize defaults to DefaultPageSize
	PageSize int
}

// Page of a listing. The last page is empty with EOF set.
type Page struct {
	Filerefs []*fileref.Fileref
	IDs      []digest.ID
	EOF      bool
}

// List the filerefs staged under tag, page by page
func (s *Stager) List(ctx context.Context, tag string, opts ListOptions, fn func(Page) error) error {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Pattern != "" {
		if _, err := path.Match(opts.Pattern, ""); err != nil {
			return status.ErrInvalidArgument.Wrapf("pattern %q: %v", opts.Pattern, err)
		}
	}
	if opts.ContentIDs && s.store == nil {
		return status.ErrInvalidArgument.Wrapf("listing content ids needs a content store")
	}

	baseOnly := !strings.Contains(opts.Pattern, "/")
	var matched []*fileref.Fileref
	for _, f := range s.cache.Regions(tag) {
		if opts.Pattern != "" {
			name := f.Path
			if baseOnly {
				name = path.Base(name)
			}
			if ok, _ := path.Match(opts.Pattern, name); !ok {
				continue
			}
		}
		matched = append(matched, f)
	}

	for start := 0; start < len(matched); start += opts.PageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + opts.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		page := Page{Filerefs: matched[start:end:end]}
		if opts.ContentIDs {
			ids, err := s.storeAll(ctx, page.Filerefs)
			if err != nil {
				return err
			}
			page = Page{IDs: ids}
		}
		if err := fn(page); err != nil {
			return err
		}
	}
	return fn(Page{EOF: true})
}

func (s *Stager) storeAll(ctx context.Context, refs []*fileref.Fileref) ([]digest.ID, error) {
	ids := make([]digest.ID, len(refs))
	err := pipeline.Ordered(ctx, len(refs), pipeline.DefaultMaxInFlight,
		func(ctx context.Context, i int) (digest.ID, error) {
			b, err := fileref.Encode(refs[i])
			if err != nil {
				return "", err
			}
			return s.store.Store(ctx, b)
		},
		func(i int, id digest.ID) error {
			ids[i] = id
			return nil
		},
	)
	return ids, err
}

// Load a blob from the cache, or else from the content store
func (s *Stager) Load(ctx context.Context, id digest.ID) ([]byte, error) {
	data, ref, err := s.cache.Get(id)
	if err == nil {
		defer ref.Release()
		return append([]byte(nil), data...), nil
	}
	if !errors.Is(err, status.ErrNotFound) && !errors.Is(err, status.ErrProtocol) {
		return nil, err
	}
	if s.store == nil {
		return nil, err
	}
	s.l.Debug("blob not staged, loading from store", zap.String("id", string(id)), zap.Error(err))
	return s.store.Load(ctx, id)
}
