// Package mmcache keeps the content of files resident through read-only
// memory maps, and resolves blobs by digest straight out of the mapped
// pages.
//
// Files are mapped under a tag. Lookups share a read lock, while Map and
// Unmap hold the cache exclusively. A blob is always validated against its
// digest before its bytes are handed out by Get.
package mmcache

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oneconcern/fileref/pkg/digest"
	"github.com/oneconcern/fileref/pkg/fileref"
	"github.com/oneconcern/fileref/pkg/fileref/status"
	"github.com/oneconcern/fileref/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Cache of mapped files
type Cache struct {
	designated bool
	interval   time.Duration
	chunkSize  int64
	algo       digest.Algorithm
	clock      Clock
	l          *zap.Logger
	reg        prometheus.Registerer
	m          *metrics.Cache

	mx      sync.RWMutex
	closed  bool
	nextID  regionID
	regions map[regionID]*region
	tags    map[string][]regionID
	index   map[digest.Digest]entry
}

// Stats of the cache
type Stats struct {
	Tags        int
	Regions     int
	Entries     int
	MappedBytes int64
}

// New cache. It may map files unless Designated(false) is passed.
func New(opts ...Option) *Cache {
	c := &Cache{
		designated: true,
		interval:   DefaultValidateInterval,
		chunkSize:  DefaultChunkSize,
		algo:       digest.Default,
		clock:      systemClock{},
		l:          zap.NewNop(),
		regions:    make(map[regionID]*region),
		tags:       make(map[string][]regionID),
		index:      make(map[digest.Digest]entry),
	}
	for _, apply := range opts {
		apply(c)
	}
	c.m = metrics.NewCache(c.reg)
	return c
}

// Map a file under tag and index its blobs. A zero chunk size uses the
// cache default. When a digest is already cached, the existing entry is
// kept.
func (c *Cache) Map(pth, tag string, chunkSize int64) (*fileref.Fileref, error) {
	if !c.designated {
		return nil, status.Pathf(status.ErrUnsupported, pth, "this node is not designated to map files")
	}
	if chunkSize == 0 {
		chunkSize = c.chunkSize
	}
	pth = filepath.Clean(pth)

	c.mx.RLock()
	dup := c.mapped(pth, tag)
	c.mx.RUnlock()
	if dup {
		return nil, status.Pathf(status.ErrExists, pth, "already mapped under tag %q", tag)
	}

	f, m, err := fileref.CreateMapped(pth,
		fileref.Algorithm(c.algo),
		fileref.ChunkSize(chunkSize),
		fileref.SmallFileThreshold(0),
	)
	if err != nil {
		return nil, err
	}
	if f.Kind() != fileref.RegularFile {
		return nil, status.Pathf(status.ErrUnsupported, pth, "only regular files can be mapped, not a %s", f.Kind())
	}

	r := &region{tag: tag, path: pth, f: f, m: m, lastCheck: c.clock.Now()}
	r.refs.Store(1)

	c.mx.Lock()
	if c.closed || c.mapped(pth, tag) {
		closed := c.closed
		c.mx.Unlock()
		if m != nil {
			_ = m.Close()
		}
		if closed {
			return nil, status.ErrUnsupported.Wrapf("cache is closed")
		}
		return nil, status.Pathf(status.ErrExists, pth, "already mapped under tag %q", tag)
	}
	c.nextID++
	r.id = c.nextID
	c.regions[r.id] = r
	c.tags[tag] = append(c.tags[tag], r.id)
	added := c.insert(r)
	c.updateGauges()
	c.mx.Unlock()

	c.m.MappedBytes.Add(float64(r.size()))
	c.l.Debug("mapped file",
		zap.String("path", pth),
		zap.String("tag", tag),
		zap.Int("blobs", len(f.Blobvec)),
		zap.Int("indexed", added),
	)
	return f, nil
}

// mapped tells if path is already mapped under tag. Called with the lock held.
func (c *Cache) mapped(pth, tag string) bool {
	for _, id := range c.tags[tag] {
		if c.regions[id].path == pth {
			return true
		}
	}
	return false
}

// insert indexes the blobs of r not cached yet. Called with the write lock.
func (c *Cache) insert(r *region) int {
	var added int
	for _, e := range r.f.Blobvec {
		d, err := e.ID.Digest()
		if err != nil {
			continue
		}
		if _, ok := c.index[d]; ok {
			continue
		}
		c.index[d] = entry{region: r.id, off: e.Offset, length: e.Length}
		added++
	}
	return added
}

// Unmap every file mapped under tag. Blobs still provided by files mapped
// under other tags are indexed again.
func (c *Cache) Unmap(tag string) error {
	c.mx.Lock()
	ids, ok := c.tags[tag]
	if !ok {
		c.mx.Unlock()
		return status.ErrNotFound.Wrapf("tag %q", tag)
	}
	detached := c.detach(tag, ids)
	repaired := c.repair()
	c.updateGauges()
	c.mx.Unlock()

	for _, r := range detached {
		c.release(r)
	}
	c.l.Debug("unmapped tag", zap.String("tag", tag), zap.Int("regions", len(detached)), zap.Int("repaired", repaired))
	return nil
}

// detach removes the regions of tag and their index entries. Called with the write lock.
func (c *Cache) detach(tag string, ids []regionID) []*region {
	delete(c.tags, tag)
	detached := make([]*region, 0, len(ids))
	for _, id := range ids {
		r := c.regions[id]
		delete(c.regions, id)
		for _, e := range r.f.Blobvec {
			d, err := e.ID.Digest()
			if err != nil {
				continue
			}
			if cur, ok := c.index[d]; ok && cur.region == id {
				delete(c.index, d)
			}
		}
		detached = append(detached, r)
	}
	return detached
}

// repair indexes again the blobs of every remaining region which lost
// their entry. Called with the write lock.
func (c *Cache) repair() int {
	ids := make([]regionID, 0, len(c.regions))
	for id := range c.regions {
		ids = append(ids, id)
	}
	// the oldest mapping wins, as it would have at map time
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var repaired int
	for _, id := range ids {
		repaired += c.insert(c.regions[id])
	}
	return repaired
}

func (c *Cache) release(r *region) {
	if r.refs.Add(-1) > 0 {
		return
	}
	c.m.MappedBytes.Sub(float64(r.size()))
	if r.m == nil {
		return
	}
	if err := r.m.Close(); err != nil {
		c.l.Warn("releasing mapping", zap.String("path", r.path), zap.Error(err))
	}
}

// Lookup a blob. The returned reference must be released.
func (c *Cache) Lookup(d digest.Digest) (*Ref, bool) {
	c.mx.RLock()
	defer c.mx.RUnlock()

	e, ok := c.index[d]
	if !ok {
		return nil, false
	}
	r := c.regions[e.region]
	r.refs.Add(1)
	return &Ref{c: c, r: r, e: e}, true
}

// Validate the blob pinned by ref against d. The size of the backing file
// is checked at most once per validation interval, and a file found shorter
// than its mapping never validates again.
func (c *Cache) Validate(ref *Ref, d digest.Digest) bool {
	r := ref.r
	if !c.checkSize(r) {
		c.m.ValidationFailures.Inc()
		c.l.Debug("mapped file shrank", zap.String("path", r.path))
		return false
	}

	got, err := r.m.Sum(d.Algorithm(), ref.e.off, ref.e.length)
	if err != nil || got != d {
		c.m.ValidationFailures.Inc()
		c.l.Debug("cached blob does not match its digest", zap.String("path", r.path), zap.Stringer("digest", d), zap.Error(err))
		return false
	}
	return true
}

func (c *Cache) checkSize(r *region) bool {
	if r.shrunk.Load() {
		return false
	}

	r.checkMx.Lock()
	defer r.checkMx.Unlock()
	now := c.clock.Now()
	if now.Sub(r.lastCheck) <= c.interval {
		return true
	}
	r.lastCheck = now

	size, err := r.m.Stat()
	if err != nil || size < r.m.Size() {
		r.shrunk.Store(true)
		return false
	}
	return true
}

// Get looks up and validates the blob of id. A missing blob is reported as
// status.ErrNotFound, a blob failing validation as status.ErrProtocol.
// The returned reference must be released once the bytes are no longer used.
func (c *Cache) Get(id digest.ID) ([]byte, *Ref, error) {
	d, err := id.Digest()
	if err != nil {
		return nil, nil, err
	}
	ref, ok := c.Lookup(d)
	if !ok {
		c.m.Misses.Inc()
		return nil, nil, status.ErrNotFound.Wrapf("content id %s is not cached", id)
	}
	if !c.Validate(ref, d) {
		ref.Release()
		return nil, nil, status.ErrProtocol.Wrapf("cached content %s is no longer valid", id)
	}
	c.m.Hits.Inc()
	return ref.Bytes(), ref, nil
}

// Tags currently mapped, sorted
func (c *Cache) Tags() []string {
	c.mx.RLock()
	defer c.mx.RUnlock()

	tags := make([]string, 0, len(c.tags))
	for tag := range c.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Regions returns the filerefs of the files mapped under tag, in map order
func (c *Cache) Regions(tag string) []*fileref.Fileref {
	c.mx.RLock()
	defer c.mx.RUnlock()

	ids := c.tags[tag]
	refs := make([]*fileref.Fileref, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, c.regions[id].f)
	}
	return refs
}

// Stats of the cache
func (c *Cache) Stats() Stats {
	c.mx.RLock()
	defer c.mx.RUnlock()

	s := Stats{Tags: len(c.tags), Regions: len(c.regions), Entries: len(c.index)}
	for _, r := range c.regions {
		s.MappedBytes += r.size()
	}
	return s
}

// updateGauges is called with the write lock
func (c *Cache) updateGauges() {
	c.m.Regions.Set(float64(len(c.regions)))
	c.m.Entries.Set(float64(len(c.index)))
}

// Close unmaps every tag. Mappings pinned by a Ref are released with it.
func (c *Cache) Close() error {
	c.mx.Lock()
	c.closed = true
	var detached []*region
	for tag, ids := range c.tags {
		detached = append(detached, c.detach(tag, ids)...)
	}
	c.updateGauges()
	c.mx.Unlock()

	for _, r := range detached {
		c.release(r)
	}
	return nil
}
