// Copyright © 2018 One Concern

package fileref

import (
	"bytes"
	"os"
	"unicode/utf8"

	"github.com/oneconcern/fileref/pkg/fileref/status"
	"golang.org/x/sys/unix"
)

// Create builds the fileref of the object at path.
//
// Regular files are encoded, in order of preference:
//   - without content when empty or fully sparse
//   - with inline content when no larger than the small file threshold
//   - with a blobvec otherwise
func Create(path string, opts ...Option) (*Fileref, error) {
	f, m, err := CreateMapped(path, opts...)
	if err != nil {
		return nil, err
	}
	if m != nil {
		if err := m.Close(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// CreateMapped builds the fileref of the object at path and, when it is
// encoded as a blobvec, returns the mapping of the file so the chunks may
// be handed off without a copy. The caller must close the mapping.
func CreateMapped(path string, opts ...Option) (*Fileref, *Mapping, error) {
	p := defaultParams()
	for _, apply := range opts {
		apply(&p)
	}
	if err := p.validate(); err != nil {
		return nil, nil, err
	}
	name := p.name
	if name == "" {
		name = path
	}
	name = CleanPath(name)

	// open first, then classify the opened object
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOFOLLOW|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if err == unix.ELOOP || err == unix.EMLINK {
			f, err := createSymlink(path, name, &p)
			return f, nil, err
		}
		// sockets fail to open with ENXIO
		var st unix.Stat_t
		if lerr := unix.Lstat(path, &st); lerr == nil && !supported(uint32(st.Mode)) { //nolint:unconvert
			return nil, nil, status.Pathf(status.ErrUnsupported, path, "unsupported file type %o", st.Mode&unix.S_IFMT)
		}
		return nil, nil, status.IO("open", path, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, nil, status.IO("fstat", path, err)
	}

	f := newFromStat(name, &st)
	switch f.Kind() {
	case Directory:
		_ = unix.Close(fd)
		return f, nil, nil
	case RegularFile:
		m, err := fillRegular(f, path, fd, &p)
		if m == nil {
			_ = unix.Close(fd)
		}
		if err != nil {
			return nil, nil, err
		}
		return f, m, nil
	default:
		_ = unix.Close(fd)
		return nil, nil, status.Pathf(status.ErrUnsupported, path, "unsupported file type %o", st.Mode&unix.S_IFMT)
	}
}

func supported(mode uint32) bool {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG, unix.S_IFDIR, unix.S_IFLNK:
		return true
	default:
		return false
	}
}

func newFromStat(name string, st *unix.Stat_t) *Fileref {
	mtime, ctime := statTimes(st)
	return &Fileref{
		Path:  name,
		Size:  st.Size,
		Mtime: mtime,
		Ctime: ctime,
		Mode:  uint32(st.Mode), //nolint:unconvert
	}
}

// fillRegular encodes the content of a regular file. The returned mapping
// owns fd and is only set for a blobvec.
func fillRegular(f *Fileref, path string, fd int, p *params) (*Mapping, error) {
	ok, err := hasData(fd, f.Size)
	if err != nil {
		return nil, status.IO("lseek", path, err)
	}
	if !ok {
		f.Encoding = EncodingNone
		return nil, nil
	}

	if p.threshold > 0 && f.Size <= p.threshold {
		data, err := readAll(fd, f.Size)
		if err != nil {
			return nil, status.IO("read", path, err)
		}
		f.Size = int64(len(data))
		f.Data = data
		f.Encoding = inlineEncoding(data)
		return nil, nil
	}

	m, err := newMapping(path, fd, f.Size)
	if err != nil {
		return nil, err
	}
	entries, err := Chunk(fd, m.Bytes(), f.Size, p.chunkSize, p.algo)
	if err != nil {
		m.unmap()
		return nil, status.IO("chunk", path, err)
	}
	if len(entries) == 0 {
		// holes appeared since the first check
		m.unmap()
		f.Encoding = EncodingNone
		return nil, nil
	}
	f.Encoding = EncodingBlobvec
	f.Blobvec = entries
	return m, nil
}

// inlineEncoding keeps text as is. Anything which is not valid utf-8 text,
// or contains a NUL byte, is base64 encoded.
func inlineEncoding(data []byte) Encoding {
	if utf8.Valid(data) && bytes.IndexByte(data, 0) < 0 {
		return EncodingUTF8
	}
	return EncodingBase64
}

func readAll(fd int, size int64) ([]byte, error) {
	buf := make([]byte, size)
	var off int64
	for off < size {
		n, err := unix.Pread(fd, buf[off:], off)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// the file shrank
			break
		}
		off += int64(n)
	}
	return buf[:off], nil
}

func createSymlink(path, name string, p *params) (*Fileref, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return nil, status.IO("lstat", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFLNK {
		return nil, status.Path(status.ErrIO, "open", path, unix.ELOOP)
	}
	target, err := os.Readlink(path)
	if err != nil {
		return nil, status.IO("readlink", path, err)
	}

	f := newFromStat(name, &st)
	if p.namespace != "" {
		target = p.namespace + NamespaceSeparator + target
	}
	f.Data = []byte(target)
	f.Encoding = inlineEncoding(f.Data)
	return f, nil
}
