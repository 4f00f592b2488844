package viewcache

import (
	"context"

	"viewkern/metrics"
	"viewkern/tinfo"
	"viewkern/tracing"
	"viewkern/tunables"
)

// TrimCache walks the global LRU head-to-tail (least-recently-used
// first) paging out clean, unmapped, unpinned VACBs until at least
// target pages (Granularity/PageSize per trimmed VACB) have been freed
// or the list is exhausted (spec §4.1.2, grounded on CcRosTrimCache).
// When a VACB's page-out succeeds, its residency reference and the
// walk's transient reference are dropped right away; no lock is held
// across the page-out or those drops, so neither runs under view_lock.
// A VACB whose page-out fails stays at the head and is retried under
// the backoff budget.
func (vc *ViewCache) TrimCache(target int) int {
	if target <= 0 {
		target = 1
	}
	tid := tinfo.NewThread()
	backoff := newBackoffFor(tid)
	pages := vc.cfg.Granularity / tunables.PageSize

	freed := 0
	attemptedFlush := false

	for freed < target {
		vc.mu.Lock()
		e := vc.lruVacbs.Front()
		if e == nil {
			vc.mu.Unlock()
			break
		}
		v := e.Value.(*VACB)
		vc.mu.Unlock()

		if v.Dirty() || v.MappedCount > 0 || v.PinCount > 0 {
			// Not trimmable right now; move it to the back so the walk
			// makes progress against the rest of the list instead of
			// spinning on the same head element.
			vc.mu.Lock()
			if v.lruElem != nil {
				vc.lruVacbs.MoveToBack(v.lruElem)
			}
			vc.mu.Unlock()
			if !backoff.Spin() {
				break
			}
			continue
		}

		v.incref()
		if v.Refs() > 2 {
			// Someone else grabbed a reference between our check and
			// our incref; back off and let the walk retry the list.
			vc.releaseRef(v)
			if !backoff.Spin() {
				break
			}
			continue
		}

		err := tracing.PageOut(context.Background(), v.BaseAddress, func(context.Context) error {
			return vc.provider.PageOut(v.BaseAddress, vc.cfg.Granularity)
		})
		if err == nil {
			v.setValid(false)
			freed += pages
			metrics.TrimFreedTotal.Add(float64(pages))
			// Drop the residency reference: a trimmed VACB is unlinked
			// from both lists and its page handed back (spec line 76,
			// "unlinked from both lists... drops the staged VACBs' last
			// reference outside all locks").
			vc.releaseRef(v)
		}
		vc.releaseRef(v)
		if err != nil {
			if !backoff.Spin() {
				break
			}
			continue
		}
		backoff = newBackoffFor(tid)
	}

	// The original retries once with a flush pass if the target went
	// unmet and dirty pages are what's blocking progress (spec §13's
	// resolution: one retry, not an unbounded loop).
	if freed < target && !attemptedFlush {
		attemptedFlush = true
		_, _ = vc.FlushDirty(context.Background(), target-freed, false)
		freed += vc.trimOnce(target - freed)
	}

	return freed
}

// trimOnce is a single non-retrying pass used by TrimCache's
// post-flush retry.
func (vc *ViewCache) trimOnce(target int) int {
	if target <= 0 {
		return 0
	}
	freed := 0
	tid := tinfo.NewThread()
	backoff := newBackoffFor(tid)
	pages := vc.cfg.Granularity / tunables.PageSize
	for freed < target {
		vc.mu.Lock()
		e := vc.lruVacbs.Front()
		if e == nil {
			vc.mu.Unlock()
			break
		}
		v := e.Value.(*VACB)
		vc.mu.Unlock()

		if v.Dirty() || v.MappedCount > 0 || v.PinCount > 0 {
			// Not trimmable right now; move it to the back so the walk
			// makes progress against the rest of the list instead of
			// spinning on the same head element (matches TrimCache's
			// main loop).
			vc.mu.Lock()
			if v.lruElem != nil {
				vc.lruVacbs.MoveToBack(v.lruElem)
			}
			vc.mu.Unlock()
			if !backoff.Spin() {
				break
			}
			continue
		}
		v.incref()
		if v.Refs() > 2 {
			vc.releaseRef(v)
			if !backoff.Spin() {
				break
			}
			continue
		}
		err := vc.provider.PageOut(v.BaseAddress, vc.cfg.Granularity)
		if err == nil {
			v.setValid(false)
			freed += pages
			metrics.TrimFreedTotal.Add(float64(pages))
			// Drop the residency reference, same as TrimCache's main loop.
			vc.releaseRef(v)
		}
		vc.releaseRef(v)
		if err != nil && !backoff.Spin() {
			break
		}
	}
	return freed
}
