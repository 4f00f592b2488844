package viewcache

import (
	"context"

	"github.com/pkg/errors"

	"viewkern/metrics"
	"viewkern/stats"
	"viewkern/tinfo"
	"viewkern/tracing"
	"viewkern/tunables"
)

// flushVacb performs one VACB's writeback and clears its dirty state
// on success (spec §4.1.1, grounded on CcRosFlushVacb). Caller must
// hold neither vc.mu nor v.SCMap.mu: the backing-store write is
// exactly the suspension point spec §5 says must happen outside both
// locks.
func (vc *ViewCache) flushVacb(ctx context.Context, v *VACB) error {
	start := stats.Now()
	vc.counters.Flushes.Inc()
	scMap := v.SCMap
	err := tracing.FlushVacb(ctx, v.FileOffset, func(ctx context.Context) error {
		return scMap.Callbacks.WriteRegion(scMap.LazyWriteCtx, v.FileOffset, v)
	})
	vc.flushCycles.Add(start)
	if err != nil {
		metrics.FlushTotal.WithLabelValues("error").Inc()
		return errors.Wrapf(err, "flush_vacb: file_offset=%d", v.FileOffset)
	}

	v.setDirty(false)
	scMap.mu.Lock()
	if scMap.dirtyPages > 0 {
		scMap.dirtyPages--
	}
	scMap.mu.Unlock()

	vc.mu.Lock()
	hadDirtyElem := v.dirtyElem != nil
	if hadDirtyElem {
		vc.dirtyVacbs.Remove(v.dirtyElem)
		v.dirtyElem = nil
	}
	if vc.totalDirtyPages > 0 {
		vc.totalDirtyPages--
	}
	vc.mu.Unlock()
	metrics.DirtyPages.Dec()
	metrics.FlushTotal.WithLabelValues("ok").Inc()

	// Drop the dirty-list membership reference MarkDirty took on the
	// false->true transition; flushing is what un-transitions it.
	if hadDirtyElem {
		vc.releaseRef(v)
	}
	return nil
}

// FlushDirty walks the global dirty FIFO, writing back VACBs not
// excluded by a still-active writer, until target pages have been
// freed or the list runs dry (spec §4.1/§4.1.1's
// flush_dirty(target_pages, called_from_lazy) -> pages_freed contract,
// grounded on CcRosFlushDirtyPages). When calledFromLazy is set, a
// dirty VACB belonging to a temporary file is skipped rather than
// written back (spec §4.1.1 step 2) — the lazy writer never forces
// scratch data to disk; only an explicit flush_cache/delete_file_cache
// call does. On every outcome — success, skip, or failure — the walk
// restarts from the head, exactly as the original does, since the
// list may have mutated underneath; tinfo.Backoff bounds that restart
// loop instead of letting it spin forever (spec §13).
func (vc *ViewCache) FlushDirty(ctx context.Context, target int, calledFromLazy bool) (int, error) {
	tid := tinfo.NewThread()
	backoff := newBackoffFor(tid)
	var firstErr error
	freed := 0

	for freed < target {
		vc.mu.Lock()
		e := vc.dirtyVacbs.Front()
		if e == nil {
			vc.mu.Unlock()
			return freed, firstErr
		}
		v := e.Value.(*VACB)
		vc.mu.Unlock()

		// Skip VACBs holding more than the residency reference plus the
		// dirty-list reference (checked before our own borrow is taken):
		// someone else is actively using this one right now
		// (original_source's "if (current->ReferenceCount > 1) continue").
		if v.Refs() > 2 {
			if !backoff.Spin() {
				metrics.FlushDirtyFailureStreak.Inc()
				return freed, firstErr
			}
			continue
		}

		scMap := v.SCMap

		if calledFromLazy && scMap.Temporary() {
			if !backoff.Spin() {
				metrics.FlushDirtyFailureStreak.Inc()
				return freed, firstErr
			}
			continue
		}

		if !scMap.Callbacks.AcquireForLazyWrite(scMap.LazyWriteCtx, false) {
			if !backoff.Spin() {
				metrics.FlushDirtyFailureStreak.Inc()
				return freed, firstErr
			}
			continue
		}

		v.incref()
		err := vc.flushVacb(ctx, v)
		scMap.Callbacks.ReleaseFromLazyWrite(scMap.LazyWriteCtx)
		vc.releaseRef(v)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			metrics.FlushDirtyFailureStreak.Inc()
			if !backoff.Spin() {
				return freed, firstErr
			}
			continue
		}
		freed += vc.cfg.Granularity / tunables.PageSize

		metrics.FlushDirtyFailureStreak.Set(0)
	}
	return freed, firstErr
}

// FlushCache flushes every VACB belonging to scMap, regardless of
// global FIFO order (spec §4.1.3, grounded on CcFlushCache — used by
// NtFlushBuffersFile-equivalent callers that need one file's data
// durable, not the whole cache's).
func (vc *ViewCache) FlushCache(ctx context.Context, scMap *SharedCacheMap) error {
	scMap.mu.Lock()
	vacbs := scMap.allVacbsLocked()
	scMap.mu.Unlock()

	var firstErr error
	for _, v := range vacbs {
		if !v.Dirty() {
			continue
		}
		v.incref()
		if err := vc.flushVacb(ctx, v); err != nil && firstErr == nil {
			firstErr = err
		}
		vc.releaseRef(v)
	}
	return firstErr
}
