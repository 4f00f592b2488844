// Package procacct tracks per-process GDI handle counts: the scalar
// handle-count cap spec's Non-goals carve out ("per-file quota
// enforcement beyond a single scalar handle-count cap"). Grounded on
// accnt.Accnt_t (biscuit/src/accnt/accnt.go): an atomic counter per
// process plus a mutex-guarded map for snapshotting, the same shape
// Accnt_t uses for Userns/Sysns.
package procacct

import (
	"sync"
	"sync/atomic"

	"viewkern/defs"
)

// DefaultHandleCap is the per-process ceiling on live GDI handles.
const DefaultHandleCap = 10000

// Counter is one process's live handle count.
type Counter struct {
	n int64
}

// Count returns the current live handle count.
func (c *Counter) Count() int64 { return atomic.LoadInt64(&c.n) }

func (c *Counter) inc() int64 { return atomic.AddInt64(&c.n, 1) }
func (c *Counter) dec() int64 { return atomic.AddInt64(&c.n, -1) }

// Ledger maps process id to its Counter, grown lazily as processes
// first allocate a handle.
type Ledger struct {
	mu       sync.Mutex
	counters map[defs.Pid_t]*Counter
	cap      int64
}

// NewLedger builds a Ledger enforcing cap handles per process.
func NewLedger(cap int64) *Ledger {
	if cap <= 0 {
		cap = DefaultHandleCap
	}
	return &Ledger{counters: make(map[defs.Pid_t]*Counter), cap: cap}
}

func (l *Ledger) counterFor(pid defs.Pid_t) *Counter {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.counters[pid]
	if !ok {
		c = &Counter{}
		l.counters[pid] = c
	}
	return c
}

// TryIncrement increments pid's handle count, refusing (and leaving
// the count unchanged) if doing so would exceed the cap.
func (l *Ledger) TryIncrement(pid defs.Pid_t) bool {
	if pid == defs.NoPid {
		return true
	}
	c := l.counterFor(pid)
	if c.Count() >= l.cap {
		return false
	}
	c.inc()
	return true
}

// Decrement drops pid's handle count by one; never below zero.
func (l *Ledger) Decrement(pid defs.Pid_t) {
	if pid == defs.NoPid {
		return
	}
	c := l.counterFor(pid)
	if c.Count() > 0 {
		c.dec()
	}
}

// Count reports pid's current live handle count (spec §8 scenario 6:
// "Final per-process handle count is zero" after cleanup_for_process).
func (l *Ledger) Count(pid defs.Pid_t) int64 {
	return l.counterFor(pid).Count()
}

// Forget drops the bookkeeping entry for pid entirely, once its
// process has exited and cleanup_for_process has run.
func (l *Ledger) Forget(pid defs.Pid_t) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, pid)
}
