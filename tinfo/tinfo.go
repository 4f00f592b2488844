// Package tinfo tracks the caller-visible notion of "current thread"
// that the object table's reentrant exclusive lock needs, and the
// bounded short-delay back-off used throughout both cores' contention
// loops.
//
// biscuit's own tinfo package identifies the current thread via
// runtime.Gptr/Setgptr, hooks that only exist in biscuit's forked Go
// runtime. Stock Go exposes no such thing, so here a Tid_t is an opaque
// token the caller obtains once per goroutine (NewThread) and threads
// through calls explicitly, the same way a kernel thread id would be
// passed down a call stack in a language without implicit "current
// thread" access.
package tinfo

import (
	"sync/atomic"
	"time"
)

// Tid_t identifies a logical thread of control for the exclusive-lock
// reentrancy rule in gdiobj (spec §4.2, §4.2.1).
type Tid_t uint64

var nextTid uint64

// NewThread mints a fresh Tid_t. Call once per goroutine that will act
// as a "thread" against the object table or view cache, and pass the
// result explicitly to operations that need to know who is calling.
func NewThread() Tid_t {
	return Tid_t(atomic.AddUint64(&nextTid, 1))
}

// NoTid is never returned by NewThread and marks "no owning thread".
const NoTid Tid_t = 0

// Backoff implements the bounded spin-then-sleep loop used by every
// contention loop in both cores (spec §5, §9: "thread short-delay
// back-off ... augment with a debug assertion that any loop makes
// progress in a bounded number of iterations"). The source leaves
// unbounded spinning as a known TODO; this implementation resolves that
// open question by giving the loop a budget instead of replicating the
// bug.
type Backoff struct {
	tries int
}

// DefaultBudget bounds how many times a Backoff will delay before
// Spin reports exhaustion.
const DefaultBudget = 100000

// Spin delays briefly and reports whether the caller's budget remains.
// Callers retry their loop while Spin returns true and give up with a
// failure result once it returns false (LockObject returns nil;
// FlushDirty and TrimCache return what they have done so far) rather
// than spin forever.
func (b *Backoff) Spin() bool {
	b.tries++
	if b.tries > DefaultBudget {
		return false
	}
	if b.tries > 1 {
		time.Sleep(shortDelay(b.tries))
	}
	return true
}

// shortDelay grows from a few hundred nanoseconds to roughly 50
// microseconds, capped, so a Backoff degrades from pure spinning to a
// real yield under sustained contention without ever blocking for long.
func shortDelay(tries int) time.Duration {
	d := time.Duration(tries) * 200 * time.Nanosecond
	const cap = 50 * time.Microsecond
	if d > cap {
		d = cap
	}
	return d
}
