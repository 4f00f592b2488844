// Package viewcache implements the view cache (spec §2-§5): VACB, the
// per-file SharedCacheMap, and the global ViewCache registry with its
// LRU eviction, dirty-writeback, and scheduling of the lazy writer.
//
// Grounded directly on original_source/ntoskrnl/cc/view.c (CcRos*): the
// lock ordering (view_lock before map.lock, dropped around I/O), the
// refcount discipline (0-transition frees, incremented on every list
// membership and every borrow), and the FIFO dirty list / LRU eviction
// policy all mirror that file's CcRosGetVacb/CcRosReleaseVacb/
// CcRosFlushDirtyPages/CcRosTrimCache. Intrusive lists are expressed as
// container/list.List with *list.Element hooks stored on the VACB,
// following biscuit's BlkList_t (biscuit/src/fs/blk.go), which
// wraps container/list the same way for its block cache.
package viewcache

import (
	"container/list"
	"sync/atomic"

	"viewkern/defs"
)

// VACB is one mapped window of a file (spec §3.1).
type VACB struct {
	FileOffset  int64
	BaseAddress uintptr

	valid   int32 // bool, accessed atomically
	dirty   int32 // bool, accessed atomically
	pageOut int32 // bool

	MappedCount int32 // atomic
	RefCount    int32 // atomic
	PinCount    int32 // atomic

	SCMap *SharedCacheMap

	// List hooks. perMap is owned by SCMap.mu; dirty/lru are owned by
	// ViewCache.mu. A nil element means "not currently on that list".
	perMapElem *list.Element
	dirtyElem  *list.Element
	lruElem    *list.Element
}

// Valid reports whether the mapping reflects the backing store.
func (v *VACB) Valid() bool { return atomic.LoadInt32(&v.valid) != 0 }

func (v *VACB) setValid(b bool) { atomic.StoreInt32(&v.valid, boolToI32(b)) }

// Dirty reports whether the VACB has been modified since the last
// flush.
func (v *VACB) Dirty() bool { return atomic.LoadInt32(&v.dirty) != 0 }

func (v *VACB) setDirty(b bool) { atomic.StoreInt32(&v.dirty, boolToI32(b)) }

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// Refs returns the current reference count (spec §3.1 invariant I1).
func (v *VACB) Refs() int32 { return atomic.LoadInt32(&v.RefCount) }

func (v *VACB) incref() int32 {
	c := atomic.AddInt32(&v.RefCount, 1)
	if c <= 0 {
		defs.BugCheck("VACB refcount went non-positive on incref: %d", c)
	}
	return c
}

// decref drops a reference and returns the new count. It does not
// destroy the VACB itself: its caller, ViewCache.releaseRef, does that
// on the 0-transition without holding view_lock (spec §3.1/§9).
func (v *VACB) decref() int32 {
	c := atomic.AddInt32(&v.RefCount, -1)
	if c < 0 {
		defs.BugCheck("VACB refcount went negative on decref")
	}
	if c == 0 && v.Dirty() {
		defs.BugCheck("VACB reached zero refs while still dirty")
	}
	return c
}
