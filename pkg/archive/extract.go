// Copyright © 2018 One Concern

package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/fileref/internal/pipeline"
	"github.com/oneconcern/fileref/pkg/content"
	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/errors"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Extractor writes archives back to a directory
type Extractor struct {
	loader      content.Loader
	overwrite   bool
	trace       func(*fileref.Fileref)
	maxInFlight int
	verify      bool
	l           *zap.Logger
}

// NewExtractor builds an Extractor. Loaded blobs are verified unless
// VerifyDigests(false) is passed.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	x := &Extractor{
		maxInFlight: pipeline.DefaultMaxInFlight,
		verify:      true,
		l:           zap.NewNop(),
	}
	for _, apply := range opts {
		apply(x)
	}
	return x
}

// Extract the archive under dest, in archive order.
//
// Existing directories are reused. Any other existing object is an error
// unless overwriting is enabled. Directory modes and times are set once
// everything else is written. Extraction is not transactional: whatever
// was written before a failure stays.
func (x *Extractor) Extract(ctx context.Context, a *Archive, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return status.IO("mkdir", dest, err)
	}

	var dirs []extracted
	for _, f := range a.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.Validate(); err != nil {
			return err
		}
		target, err := x.target(dest, f.Path)
		if err != nil {
			return err
		}

		switch f.Kind() {
		case fileref.Directory:
			err = x.directory(f, target)
			dirs = append(dirs, extracted{f: f, target: target})
		case fileref.Symlink:
			err = x.symlink(f, target)
		case fileref.RegularFile:
			err = x.regular(ctx, f, target)
		}
		if err != nil {
			return err
		}
		x.l.Debug("extracted", zap.String("path", f.Path), zap.String("target", target))
	}

	// deepest first, so setting times on a child does not touch its parent again
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if err := os.Chmod(d.target, d.f.FileMode()&(os.ModePerm|os.ModeSetuid|os.ModeSetgid|os.ModeSticky)); err != nil {
			return status.IO("chmod", d.target, err)
		}
		if err := setTimes(d.target, d.f); err != nil {
			return err
		}
	}
	return nil
}

type extracted struct {
	f      *fileref.Fileref
	target string
}

// target resolves the destination of an archived path. Paths escaping
// dest, directly or through an extracted symlink, are rejected.
func (x *Extractor) target(dest, pth string) (string, error) {
	rel := fileref.CleanPath(pth)
	for _, elem := range strings.Split(rel, "/") {
		if elem == ".." {
			return "", status.Pathf(status.ErrProtocol, pth, "path escapes the destination")
		}
	}
	rel = filepath.Clean(filepath.FromSlash(rel))
	if rel == "." {
		return dest, nil
	}

	parent := dest
	elems := strings.Split(filepath.Dir(rel), string(filepath.Separator))
	for _, elem := range elems {
		if elem == "." {
			break
		}
		parent = filepath.Join(parent, elem)
		info, err := os.Lstat(parent)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				break
			}
			return "", status.IO("lstat", parent, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "", status.Pathf(status.ErrProtocol, pth, "parent %s is a symbolic link", parent)
		}
	}
	return filepath.Join(dest, rel), nil
}

// clear makes room for a new object at target
func (x *Extractor) clear(target string) error {
	info, err := os.Lstat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return status.IO("lstat", target, err)
	}
	if !x.overwrite {
		return status.Path(status.ErrExists, "extract", target, nil)
	}
	if info.IsDir() {
		return status.Pathf(status.ErrExists, target, "a directory is in the way")
	}
	if err := os.Remove(target); err != nil {
		return status.IO("remove", target, err)
	}
	return nil
}

func (x *Extractor) notify(f *fileref.Fileref) {
	if x.trace != nil {
		x.trace(f)
	}
}

func (x *Extractor) directory(f *fileref.Fileref, target string) error {
	info, err := os.Lstat(target)
	switch {
	case err == nil && info.IsDir():
		x.notify(f)
		return nil
	case err == nil:
		if err := x.clear(target); err != nil {
			return err
		}
	case !errors.Is(err, os.ErrNotExist):
		return status.IO("lstat", target, err)
	}

	x.notify(f)
	// writable until the final mode is set
	if err := os.MkdirAll(target, 0o700); err != nil {
		return status.IO("mkdir", target, err)
	}
	return nil
}

func (x *Extractor) symlink(f *fileref.Fileref, target string) error {
	if err := x.prepare(target); err != nil {
		return err
	}
	x.notify(f)
	if err := os.Symlink(f.SymlinkTarget(), target); err != nil {
		return status.IO("symlink", target, err)
	}
	return setTimes(target, f)
}

func (x *Extractor) regular(ctx context.Context, f *fileref.Fileref, target string) (err error) {
	if err := x.prepare(target); err != nil {
		return err
	}
	if f.Encoding == fileref.EncodingBlobvec && x.loader == nil {
		return status.Pathf(status.ErrInvalidArgument, f.Path, "no content loader to fetch blobs from")
	}

	fd, err := unix.Open(target, unix.O_WRONLY|unix.O_CREAT|unix.O_EXCL|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return status.IO("open", target, err)
	}
	defer func() {
		if fd < 0 {
			return
		}
		if cerr := unix.Close(fd); cerr != nil && err == nil {
			err = status.IO("close", target, cerr)
		}
	}()

	x.notify(f)
	if err := unix.Ftruncate(fd, f.Size); err != nil {
		return status.IO("ftruncate", target, err)
	}

	switch f.Encoding {
	case fileref.EncodingUTF8, fileref.EncodingBase64:
		if err := pwriteAll(fd, f.Data, 0); err != nil {
			return status.IO("write", target, err)
		}
	case fileref.EncodingBlobvec:
		if err := x.blobs(ctx, fd, f, target); err != nil {
			return err
		}
	}

	if err := unix.Fchmod(fd, f.Perm()); err != nil {
		return status.IO("fchmod", target, err)
	}
	cerr := unix.Close(fd)
	fd = -1
	if cerr != nil {
		return status.IO("close", target, cerr)
	}
	return setTimes(target, f)
}

// prepare clears target and creates its missing parents
func (x *Extractor) prepare(target string) error {
	if err := x.clear(target); err != nil {
		return err
	}
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return status.IO("mkdir", parent, err)
	}
	return nil
}

// blobs fetches the blobvec concurrently and writes each blob at its
// offset, in order. Regions between blobs stay holes.
func (x *Extractor) blobs(ctx context.Context, fd int, f *fileref.Fileref, target string) error {
	fetch := func(ctx context.Context, i int) ([]byte, error) {
		e := f.Blobvec[i]
		data, err := x.loader.Load(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("loading blob %s of %s: %w", e.ID, f.Path, err)
		}
		if int64(len(data)) != e.Length {
			return nil, status.Pathf(status.ErrProtocol, f.Path, "blob %s has %d bytes, expected %d", e.ID, len(data), e.Length)
		}
		if x.verify && !digest.Verify(e.ID, data) {
			return nil, status.Pathf(status.ErrProtocol, f.Path, "blob does not match content id %s", e.ID)
		}
		return data, nil
	}
	write := func(i int, data []byte) error {
		if err := pwriteAll(fd, data, f.Blobvec[i].Offset); err != nil {
			return status.IO("write", target, err)
		}
		return nil
	}
	return pipeline.Ordered(ctx, len(f.Blobvec), x.maxInFlight, fetch, write)
}

func pwriteAll(fd int, data []byte, off int64) error {
	for len(data) > 0 {
		n, err := unix.Pwrite(fd, data, off)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		data = data[n:]
		off += int64(n)
	}
	return nil
}

// setTimes applies the recorded mtime to both access and modification
// times. The change time cannot be set.
func setTimes(target string, f *fileref.Fileref) error {
	ts := unix.NsecToTimespec(f.Mtime * 1e9)
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, target, []unix.Timespec{ts, ts}, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return status.IO("utimensat", target, err)
	}
	return nil
}
