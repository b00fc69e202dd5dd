// Copyright © 2018 One Concern

// Package localfs implements a storage.Store on an afero file system.
//
// Objects are first written to a staging area, then renamed into place,
// so concurrent readers never observe a partially written object.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/oneconcern/fileref/pkg/storage"
	"github.com/oneconcern/fileref/pkg/storage/status"
	"github.com/spf13/afero"
)

const nestedPutStageName = ".put-stage"

// New creates a new local file system backed storage model.
//
// When fs is nil, objects are stored under .fileref/objects in the current directory.
func New(fs afero.Fs) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".fileref", "objects"))
	}
	return &localFS{
		fs: fs,
	}
}

// NewMemory creates an in-memory store
func NewMemory() storage.Store {
	return &localFS{fs: afero.NewMemMapFs()}
}

// NewDir creates a store rooted at dir on the OS file system
func NewDir(dir string) (storage.Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("ensuring store directory %q: %w", dir, err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

type localFS struct {
	fs  afero.Fs
	seq uint64
}

func maybeInvalidKey(key string) error {
	pathComponents := strings.Split(strings.TrimLeft(key, "/"), "/")
	if key == "" || pathComponents[0] == nestedPutStageName {
		return fmt.Errorf("key %q conflicts with put staging area name %q: %w", key, nestedPutStageName, status.ErrInvalidResource)
	}
	for _, c := range pathComponents {
		if c == ".." {
			return fmt.Errorf("key %q escapes the store: %w", key, status.ErrInvalidResource)
		}
	}
	return nil
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	if err := maybeInvalidKey(key); err != nil {
		return false, err
	}
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotExists.Wrapf("key %q", key)
	}
	return l.fs.Open(key)
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	if exclusive {
		has, err := l.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists.Wrapf("key %q", key)
		}
	}

	stageKey := filepath.Join(nestedPutStageName, strconv.FormatUint(atomic.AddUint64(&l.seq, 1), 10)+"-"+filepath.Base(key))
	if err := l.fs.MkdirAll(nestedPutStageName, 0700); err != nil {
		return fmt.Errorf("ensuring put staging directory: %w", err)
	}
	target, err := l.fs.OpenFile(stageKey, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create record for %q: %w", key, err)
	}
	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		_ = l.fs.Remove(stageKey)
		return fmt.Errorf("write record for %q: %w", key, err)
	}
	if err = target.Close(); err != nil {
		_ = l.fs.Remove(stageKey)
		return err
	}

	// Rename() doesn't create directories automatically
	if dir := filepath.Dir(key); dir != "." {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("ensuring directories for %q: %w", key, err)
		}
	}
	return l.fs.Rename(stageKey, key)
}

func (l *localFS) Delete(ctx context.Context, key string) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	if err := l.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}

func (l *localFS) Keys(ctx context.Context) ([]string, error) {
	const root = "."
	var res []string
	e := afero.Walk(l.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == root {
			return nil
		}
		if info.IsDir() {
			if info.Name() == nestedPutStageName {
				return filepath.SkipDir
			}
			return nil
		}
		res = append(res, filepath.ToSlash(path))
		return nil
	})
	if e != nil {
		return nil, e
	}
	return res, nil
}

func (l *localFS) Clear(ctx context.Context) error {
	entries, err := afero.ReadDir(l.fs, ".")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := l.fs.RemoveAll(e.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	case *afero.MemMapFs:
		return localfs + "@memory"
	default:
		return localfs
	}
}
