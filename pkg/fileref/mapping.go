// Copyright © 2018 One Concern

package fileref

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"golang.org/x/sys/unix"
)

// Mapping is a read-only private memory map of a regular file.
//
// The file descriptor stays open for the lifetime of the mapping,
// so the backing file can be checked with Stat.
type Mapping struct {
	path string
	fd   int
	data []byte
	once sync.Once
	err  error
}

func newMapping(path string, fd int, size int64) (*Mapping, error) {
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, status.IO("mmap", path, err)
	}
	return &Mapping{path: path, fd: fd, data: data}, nil
}

// Path the mapping was created from
func (m *Mapping) Path() string {
	return m.path
}

// Fd is the descriptor of the mapped file. It is closed by Close.
func (m *Mapping) Fd() int {
	return m.fd
}

// Size of the mapping
func (m *Mapping) Size() int64 {
	return int64(len(m.data))
}

// Bytes of the whole mapping. Reading them after Close faults.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Slice returns the mapped bytes of a blobvec entry
func (m *Mapping) Slice(e BlobvecEntry) ([]byte, error) {
	if e.Offset < 0 || e.Length < 0 || e.End() > int64(len(m.data)) {
		return nil, status.Pathf(status.ErrInvalidArgument, m.path, "range [%d,%d) outside of mapping of %d bytes", e.Offset, e.End(), len(m.data))
	}
	return m.data[e.Offset:e.End():e.End()], nil
}

// Stat returns the current size of the backing file
func (m *Mapping) Stat() (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(m.fd, &st); err != nil {
		return 0, status.IO("fstat", m.path, err)
	}
	return st.Size, nil
}

// Sum hashes a mapped range. A fault on the mapping, e.g. when the file
// was truncated, is returned as an error.
func (m *Mapping) Sum(algo digest.Algorithm, off, length int64) (digest.Digest, error) {
	b, err := m.Slice(BlobvecEntry{Offset: off, Length: length})
	if err != nil {
		return digest.Digest{}, err
	}
	d, err := sum(algo, b)
	if err != nil {
		return digest.Digest{}, status.Path(status.ErrIO, "read", m.path, err)
	}
	return d, nil
}

// Close unmaps the file and closes its descriptor
func (m *Mapping) Close() error {
	m.once.Do(func() {
		if err := unix.Munmap(m.data); err != nil {
			m.err = status.IO("munmap", m.path, err)
		}
		m.data = nil
		if err := unix.Close(m.fd); err != nil && m.err == nil {
			m.err = status.IO("close", m.path, err)
		}
	})
	return m.err
}

// unmap releases the mapping but leaves the descriptor open
func (m *Mapping) unmap() {
	m.once.Do(func() {
		_ = unix.Munmap(m.data)
		m.data = nil
	})
}

// sum hashes b, turning a page fault into an error
func sum(algo digest.Algorithm, b []byte) (d digest.Digest, err error) {
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = fmt.Errorf("page fault while hashing mapped data: %v", r)
		}
	}()

	return digest.Sum(algo, b), nil
}
