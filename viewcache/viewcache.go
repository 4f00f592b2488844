package viewcache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"viewkern/defs"
	"viewkern/fileobj"
	"viewkern/hashtable"
	"viewkern/mem"
	"viewkern/metrics"
	"viewkern/oommsg"
	"viewkern/stats"
	"viewkern/tinfo"
	"viewkern/tunables"
)

// counters holds the ad hoc per-call-site tallies described in the
// stats package doc; zero-cost unless stats.Stats is enabled.
type counters struct {
	Requests stats.Counter_t
	Releases stats.Counter_t
	Flushes  stats.Counter_t
}

var cache_debug = false

func cache_debugf(format string, args ...interface{}) {
	if cache_debug {
		fmt.Printf("viewcache: "+format+"\n", args...)
	}
}

// ViewCache is the global cache singleton (spec §3.3): the FIFO dirty
// list, the LRU list, the file registry, and the lock ordering
// (view_lock taken before any SharedCacheMap.mu, released around I/O)
// that CcRosFlushDirtyPages/CcRosTrimCache enforce in
// original_source/ntoskrnl/cc/view.c.
type ViewCache struct {
	mu sync.Mutex // view_lock

	dirtyVacbs *list.List // FIFO of *VACB awaiting writeback
	lruVacbs   *list.List // *VACB, most-recently-used at Back

	totalDirtyPages int64
	dirtyThreshold  int64

	registry *hashtable.Hashtable_t // fileobj.FileObject.ID() -> *SharedCacheMap

	provider mem.Provider
	cfg      tunables.Config

	deferred    *deferredQueue
	counters    counters
	flushCycles stats.Cycles_t
}

// Init builds the singleton and registers it as an oommsg.OomCh
// consumer (spec §4.1: "installs itself as a memory-pressure
// consumer"), mirroring biscuit's kernel.go startup pattern of one
// goroutine per background subsystem.
func Init(cfg tunables.Config, provider mem.Provider) *ViewCache {
	vc := &ViewCache{
		dirtyVacbs:     list.New(),
		lruVacbs:       list.New(),
		dirtyThreshold: int64(cfg.DirtyPageThreshold),
		registry:       hashtable.MkHash(tunables.HandleTableSize, 0x1234, 0x5678),
		provider:       provider,
		cfg:            cfg,
		deferred:       newDeferredQueue(1024),
	}
	go vc.oomLoop()
	return vc
}

func (vc *ViewCache) oomLoop() {
	for msg := range oommsg.OomCh {
		vc.TrimCache(msg.Need)
		if msg.Resume != nil {
			msg.Resume <- true
		}
	}
}

// InitializeFileCache creates (or attaches to) the SharedCacheMap for
// f, per spec §4.1/initialize_file_cache.
func (vc *ViewCache) InitializeFileCache(f *fileobj.FileObject, sizes Sizes, callbacks Callbacks, ctx interface{}) (*SharedCacheMap, *PrivateCacheMap) {
	vc.mu.Lock()
	var scMap *SharedCacheMap
	if v, ok := vc.registry.Get(f.ID()); ok {
		scMap = v.(*SharedCacheMap)
	} else {
		scMap = newSharedCacheMap(vc, f, sizes, callbacks, ctx)
		vc.registry.Set(f.ID(), scMap)
	}
	vc.mu.Unlock()

	pm := scMap.addPrivateMap(ctx)
	cache_debugf("initialize_file_cache file=%s open_count=%d", f.ID(), scMap.OpenCount())
	return scMap, pm
}

// ReleaseFileCache is release_file_cache(file) (spec §6): called on
// last handle close. It detaches pm from scMap and decrements
// open_count; open_count == 0 is the necessary and sufficient
// precondition for teardown (spec §3.2), so reaching zero here hands
// off to DeleteFileCache.
func (vc *ViewCache) ReleaseFileCache(ctx context.Context, scMap *SharedCacheMap, pm *PrivateCacheMap) error {
	scMap.mu.Lock()
	scMap.removePrivateMapLocked(pm)
	scMap.openCount--
	last := scMap.openCount == 0
	scMap.mu.Unlock()

	if !last {
		return nil
	}
	return vc.DeleteFileCache(ctx, scMap.File)
}

// lookupSharedCacheMap is the registry accessor used by operations
// that take a raw file identity rather than an already-open
// SharedCacheMap (e.g. delete_file_cache).
func (vc *ViewCache) lookupSharedCacheMap(id uuid.UUID) (*SharedCacheMap, bool) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	v, ok := vc.registry.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*SharedCacheMap), true
}

// RequestRegion returns the VACB covering fileOffset on scMap,
// creating and mapping it if necessary (spec §4.1/request_region,
// grounded on CcRosGetVacb + CcRosCreateVacb). fileOffset must be a
// multiple of the configured granularity; upToDate reports whether an
// existing, already-valid window was found (the caller may skip a
// read-fill when true).
func (vc *ViewCache) RequestRegion(scMap *SharedCacheMap, fileOffset int64) (v *VACB, upToDate bool, err defs.Err_t) {
	if fileOffset%int64(vc.cfg.Granularity) != 0 {
		return nil, false, defs.EINVAL
	}
	aligned := fileOffset

	vc.counters.Requests.Inc()

	scMap.mu.Lock()
	if existing := scMap.lookupLocked(aligned); existing != nil {
		existing.incref()
		scMap.mu.Unlock()
		vc.touchLRU(existing)
		return existing, existing.Valid(), defs.Ok
	}
	scMap.mu.Unlock()

	base, cerr := vc.provider.CreateMappedRegion(vc.cfg.Granularity)
	if cerr != nil {
		return nil, false, defs.ENOMEM
	}

	// RefCount starts at 2: one residency reference for the VACB's
	// combined per-map/LRU list membership, plus one for the caller
	// we're about to hand it to (CcRosCreateVacb's trailing
	// CcRosVacbIncRefCount "reference it to allow release"). The
	// residency reference outlives every release_region/unmap_region
	// call; only trim_cache/delete_file_cache ever drop it.
	created := &VACB{FileOffset: aligned, BaseAddress: base, SCMap: scMap, RefCount: 2}

	// Race resolution: another thread may have created the same VACB
	// while we were unlocked mapping the page (original_source's
	// CcRosCreateVacb handles this by re-checking under the lock and
	// discarding the loser's mapping).
	scMap.mu.Lock()
	if existing := scMap.lookupLocked(aligned); existing != nil {
		scMap.mu.Unlock()
		vc.provider.ReleasePage(base, vc.cfg.Granularity)
		existing.incref()
		vc.touchLRU(existing)
		return existing, existing.Valid(), defs.Ok
	}
	scMap.insertSortedLocked(created)
	scMap.mu.Unlock()

	vc.mu.Lock()
	created.lruElem = vc.lruVacbs.PushBack(created)
	vc.mu.Unlock()
	metrics.LRULength.Inc()

	cache_debugf("request_region file_offset=%d base=%#x (new)", aligned, base)
	return created, false, defs.Ok
}

// touchLRU moves v to the back (most-recently-used end) of the global
// LRU list.
func (vc *ViewCache) touchLRU(v *VACB) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if v.lruElem != nil {
		vc.lruVacbs.MoveToBack(v.lruElem)
	} else {
		v.lruElem = vc.lruVacbs.PushBack(v)
		metrics.LRULength.Inc()
	}
}

// ReleaseRegion pairs with RequestRegion (spec §4.1/release_region,
// grounded on CcRosReleaseVacb): it updates valid unconditionally, marks
// the VACB dirty on the false->true transition, takes the extra
// mapped_count reference on the 0->1 mapped transition, and finally
// drops the reference RequestRegion handed out.
func (vc *ViewCache) ReleaseRegion(scMap *SharedCacheMap, v *VACB, valid, dirty, mapped bool) {
	v.setValid(valid)

	if dirty && !v.Dirty() {
		vc.MarkDirty(v)
	}

	if mapped {
		if atomic.AddInt32(&v.MappedCount, 1) == 1 {
			v.incref()
		}
	}

	vc.releaseRef(v)
}

// UnmapRegion pairs with a prior mapped release, per
// spec §4.1/unmap_region: decrements mapped_count, releasing the extra
// reference on the 1->0 transition.
func (vc *ViewCache) UnmapRegion(v *VACB, nowDirty bool) {
	if nowDirty && !v.Dirty() {
		vc.MarkDirty(v)
	}
	if atomic.AddInt32(&v.MappedCount, -1) == 0 {
		vc.releaseRef(v)
	}
}

// releaseRef drops one reference obtained via RequestRegion,
// PinRegion, or an internal transient borrow. The VACB is destroyed,
// unlinked from every list, and its page handed back to the provider
// on the 0-transition (spec §5: this must happen without holding
// view_lock, which is why the locks below are each taken and released
// independently rather than held across the provider call).
func (vc *ViewCache) releaseRef(v *VACB) {
	vc.counters.Releases.Inc()
	c := v.decref()
	if c > 0 {
		return
	}

	scMap := v.SCMap
	scMap.mu.Lock()
	scMap.removeLocked(v)
	scMap.mu.Unlock()

	vc.mu.Lock()
	if v.lruElem != nil {
		vc.lruVacbs.Remove(v.lruElem)
		v.lruElem = nil
		metrics.LRULength.Dec()
	}
	if v.dirtyElem != nil {
		vc.dirtyVacbs.Remove(v.dirtyElem)
		v.dirtyElem = nil
	}
	vc.mu.Unlock()

	vc.provider.ReleasePage(v.BaseAddress, vc.cfg.Granularity)
	cache_debugf("release_region file_offset=%d destroyed", v.FileOffset)
}

// MarkDirty marks v dirty and enqueues it on the global FIFO dirty
// list if it is not already present (spec §4.1/mark_dirty, grounded
// on CcRosMarkDirtyVacb + CcRosMarkDirtyFile). The false->true
// transition takes a reference for the new dirty-list membership
// (mirroring CcRosMarkDirtyVacb's own CcRosVacbIncRefCount) and moves
// v to the LRU tail (spec §4.1.2(b)), exactly as CcRosMarkDirtyVacb's
// RemoveEntryList/InsertTailList pair does.
func (vc *ViewCache) MarkDirty(v *VACB) {
	already := v.Dirty()
	v.setDirty(true)
	if already {
		return
	}
	v.incref()

	scMap := v.SCMap
	scMap.mu.Lock()
	scMap.dirtyPages++
	scMap.mu.Unlock()

	vc.mu.Lock()
	v.dirtyElem = vc.dirtyVacbs.PushBack(v)
	vc.totalDirtyPages++
	vc.mu.Unlock()
	metrics.DirtyPages.Inc()

	vc.touchLRU(v)
}

// PinRegion and UnpinRegion implement the pin/mapped distinction
// supplemented from original_source (spec §12): pinned VACBs are
// ineligible for trim_cache regardless of MappedCount.
func (vc *ViewCache) PinRegion(v *VACB) {
	v.incref()
	v.PinCount++
}

func (vc *ViewCache) UnpinRegion(v *VACB) {
	if v.PinCount > 0 {
		v.PinCount--
	}
	vc.releaseRef(v)
}

// newBackoffFor gives FlushDirty/TrimCache's restart-from-head loops
// (spec §13's resolution of the "shouldn't loop forever" open
// question) each their own tinfo.Backoff so unrelated callers don't
// share a trip counter.
func newBackoffFor(_ tinfo.Tid_t) *tinfo.Backoff { return &tinfo.Backoff{} }
