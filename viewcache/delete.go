package viewcache

import (
	"context"
	"fmt"

	"viewkern/fileobj"
)

// DeleteFileCache flushes and tears down every VACB belonging to f's
// SharedCacheMap (spec §4.1.3, grounded on CcRosDeleteFileCache), but
// only once open_count has reached zero (spec §3.2: "the necessary and
// sufficient precondition for teardown") — normally driven by
// ReleaseFileCache on the last handle close. Any VACB still referenced
// elsewhere is unlinked from the registry but not destroyed:
// destruction defers to the last releaser's decref (spec §13's
// resolution — the original's "detach and leak" path is rejected in
// favor of deferred destruction, since every VACB here already carries
// a proper refcount).
func (vc *ViewCache) DeleteFileCache(ctx context.Context, f *fileobj.FileObject) error {
	scMap, ok := vc.lookupSharedCacheMap(f.ID())
	if !ok {
		return nil
	}

	scMap.mu.Lock()
	openCount := scMap.openCount
	scMap.mu.Unlock()
	if openCount != 0 {
		return nil
	}

	if err := vc.FlushCache(ctx, scMap); err != nil {
		cache_debugf("delete_file_cache: flush failed for %s: %v", f.ID(), err)
	}

	scMap.mu.Lock()
	vacbs := scMap.allVacbsLocked()
	scMap.mu.Unlock()

	for _, v := range vacbs {
		if v.Dirty() {
			// Force-clean: the file is going away, so a failed flush
			// cannot be retried against it. Log and drop the dirty
			// state rather than bug-checking on the eventual
			// zero-refs-while-dirty invariant.
			fmt.Printf("viewcache: delete_file_cache forcing clean on dirty vacb file_offset=%d\n", v.FileOffset)
			v.setDirty(false)
			scMap.mu.Lock()
			if scMap.dirtyPages > 0 {
				scMap.dirtyPages--
			}
			scMap.mu.Unlock()
			vc.mu.Lock()
			if v.dirtyElem != nil {
				vc.dirtyVacbs.Remove(v.dirtyElem)
				v.dirtyElem = nil
				if vc.totalDirtyPages > 0 {
					vc.totalDirtyPages--
				}
			}
			vc.mu.Unlock()
			// Drop the dirty-list membership reference MarkDirty took;
			// we just unlinked it by hand instead of via flushVacb.
			vc.releaseRef(v)
		}
		if v.MappedCount > 0 {
			fmt.Printf("viewcache: delete_file_cache force-unmapping vacb file_offset=%d mapped=%d\n", v.FileOffset, v.MappedCount)
			v.MappedCount = 0
			// Drop the reference ReleaseRegion/UnmapRegion took on the
			// 0->1 mapped transition.
			vc.releaseRef(v)
		}
		// Drop the residency reference: the file cache is going away,
		// so every VACB's combined per-map/LRU membership ends here.
		vc.releaseRef(v)
	}

	vc.mu.Lock()
	vc.registry.Del(f.ID())
	vc.mu.Unlock()
	return nil
}
