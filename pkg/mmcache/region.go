package mmcache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/oneconcern/fileref/pkg/fileref"
)

type regionID uint64

// region is one mapped file. It lives as long as its tag holds it or a Ref
// points into it.
type region struct {
	id   regionID
	tag  string
	path string
	f    *fileref.Fileref
	m    *fileref.Mapping // nil when the file has no data
	refs atomic.Int32

	checkMx   sync.Mutex
	lastCheck time.Time
	shrunk    atomic.Bool
}

func (r *region) size() int64 {
	if r.m == nil {
		return 0
	}
	return r.m.Size()
}

// entry locates a blob in the arena
type entry struct {
	region regionID
	off    int64
	length int64
}

// Ref pins a cached blob. The bytes returned by Bytes stay valid until Release.
type Ref struct {
	c    *Cache
	r    *region
	e    entry
	once sync.Once
}

// Bytes of the blob, read-only
func (ref *Ref) Bytes() []byte {
	b := ref.r.m.Bytes()
	return b[ref.e.off : ref.e.off+ref.e.length : ref.e.off+ref.e.length]
}

// Fileref of the mapped file holding the blob
func (ref *Ref) Fileref() *fileref.Fileref {
	return ref.r.f
}

// Path of the mapped file holding the blob
func (ref *Ref) Path() string {
	return ref.r.path
}

// Offset of the blob in the mapped file
func (ref *Ref) Offset() int64 {
	return ref.e.off
}

// Len of the blob
func (ref *Ref) Len() int64 {
	return ref.e.length
}

// Release the reference. Subsequent calls do nothing.
func (ref *Ref) Release() {
	ref.once.Do(func() {
		ref.c.release(ref.r)
	})
}
