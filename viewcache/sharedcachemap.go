package viewcache

import (
	"container/list"
	"sync"

	"viewkern/fileobj"
)

// Callbacks is the BackingStoreCallbacks external trait (spec §2.2,
// §6): acquire/release around a lazy write, and the write itself.
type Callbacks interface {
	AcquireForLazyWrite(ctx interface{}, wait bool) bool
	ReleaseFromLazyWrite(ctx interface{})
	WriteRegion(ctx interface{}, fileOffset int64, vacb *VACB) error
}

// Sizes mirrors the three size fields initialize_file_cache takes
// (spec §6).
type Sizes struct {
	AllocationSize int64
	FileSize       int64
	ValidDataLen   int64
}

// PrivateCacheMap is the per-handle read-ahead state spec's glossary
// mentions but does not detail. Only the bookkeeping initialize_file_cache
// needs is modeled: which file handle it belongs to.
type PrivateCacheMap struct {
	owner interface{}
}

// SharedCacheMap is the per-file cache aggregate (spec §3.2).
type SharedCacheMap struct {
	File         *fileobj.FileObject
	SectionSize  int64
	FileSize     int64
	PinAccess    bool
	Callbacks    Callbacks
	LazyWriteCtx interface{}

	mu          sync.Mutex // map.lock (spec §5)
	openCount   int32
	dirtyPages  int64
	vacbs       *list.List // ordered strictly increasing by FileOffset, values *VACB
	privateMaps *list.List // values *PrivateCacheMap
	inlinePriv  PrivateCacheMap
	inlineUsed  bool

	// temporary mirrors FO_TEMPORARY_FILE: flush_dirty's lazy-write path
	// (spec §4.1.1 step 2) skips dirty VACBs belonging to a temporary
	// file rather than writing them back.
	temporary bool

	Trace bool

	vc *ViewCache
}

func newSharedCacheMap(vc *ViewCache, f *fileobj.FileObject, sizes Sizes, callbacks Callbacks, ctx interface{}) *SharedCacheMap {
	return &SharedCacheMap{
		File:         f,
		SectionSize:  sizes.AllocationSize,
		FileSize:     sizes.FileSize,
		Callbacks:    callbacks,
		LazyWriteCtx: ctx,
		vacbs:        list.New(),
		privateMaps:  list.New(),
		vc:           vc,
	}
}

// OpenCount returns the number of active handles against this map.
func (s *SharedCacheMap) OpenCount() int32 { return s.openCount }

// DirtyPages returns the per-map dirty page accounting (spec §3.2,
// invariant I2).
func (s *SharedCacheMap) DirtyPages() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyPages
}

// SetTrace sets the map's Trace flag, supplementing spec §3.2's trace
// flag with an operation (original_source's CcRosTraceCacheMap).
// Nothing in this package reads the flag, so setting it prints nothing.
func (s *SharedCacheMap) SetTrace(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trace = on
}

// SetTemporary marks the file as temporary (FO_TEMPORARY_FILE), so the
// lazy writer's flush_dirty pass skips its dirty VACBs instead of
// writing them back.
func (s *SharedCacheMap) SetTemporary(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temporary = on
}

// Temporary reports whether the file is marked temporary.
func (s *SharedCacheMap) Temporary() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temporary
}

// addPrivateMap allocates (or inlines, for the first handle) a private
// cache map, per spec §4.1: "The first private map is inlined into the
// shared map to avoid an allocation."
func (s *SharedCacheMap) addPrivateMap(owner interface{}) *PrivateCacheMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pm *PrivateCacheMap
	if !s.inlineUsed {
		s.inlineUsed = true
		s.inlinePriv = PrivateCacheMap{owner: owner}
		pm = &s.inlinePriv
	} else {
		pm = &PrivateCacheMap{owner: owner}
	}
	s.privateMaps.PushBack(pm)
	s.openCount++
	return pm
}

// removePrivateMapLocked removes pm from the private-map list, freeing
// the inline slot for reuse if pm was inlined. Caller must hold s.mu.
func (s *SharedCacheMap) removePrivateMapLocked(pm *PrivateCacheMap) {
	for e := s.privateMaps.Front(); e != nil; e = e.Next() {
		if e.Value.(*PrivateCacheMap) == pm {
			s.privateMaps.Remove(e)
			break
		}
	}
	if pm == &s.inlinePriv {
		s.inlineUsed = false
	}
}

// lookupLocked finds the VACB covering fileOffset, if any. Caller must
// hold s.mu.
func (s *SharedCacheMap) lookupLocked(fileOffset int64) *VACB {
	for e := s.vacbs.Front(); e != nil; e = e.Next() {
		v := e.Value.(*VACB)
		if v.FileOffset == fileOffset {
			return v
		}
		if v.FileOffset > fileOffset {
			break
		}
	}
	return nil
}

// insertSortedLocked inserts v keeping the list strictly increasing by
// FileOffset and disjoint (spec §3.2 invariant, §9.3's CcRosCreateVacb).
func (s *SharedCacheMap) insertSortedLocked(v *VACB) {
	for e := s.vacbs.Front(); e != nil; e = e.Next() {
		cur := e.Value.(*VACB)
		if cur.FileOffset > v.FileOffset {
			v.perMapElem = s.vacbs.InsertBefore(v, e)
			return
		}
	}
	v.perMapElem = s.vacbs.PushBack(v)
}

func (s *SharedCacheMap) removeLocked(v *VACB) {
	if v.perMapElem != nil {
		s.vacbs.Remove(v.perMapElem)
		v.perMapElem = nil
	}
}

// allVacbsLocked returns a snapshot slice of every VACB currently on
// this map's list (used by flush_cache / delete_file_cache).
func (s *SharedCacheMap) allVacbsLocked() []*VACB {
	out := make([]*VACB, 0, s.vacbs.Len())
	for e := s.vacbs.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*VACB))
	}
	return out
}
