// Package caller adapts biscuit's distinct-caller-path detector
// (biscuit/src/caller/caller.go) for deduplicating noisy log sites:
// contention back-off exhaustion and lazy-write refusals can fire from
// many call sites, and printing a full stack once per distinct path
// (rather than once per call) keeps debug logs readable.
package caller

import (
	"fmt"
	"runtime"
	"sync"
)

// Callerdump prints the call stack starting at the given depth.
func Callerdump(start int) {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	fmt.Printf("%s", s)
}

// Distinct_caller_t tracks whether a call chain has been seen before.
type Distinct_caller_t struct {
	sync.Mutex
	Enabled bool
	did     map[uintptr]bool
	Whitel  map[string]bool
}

func (dc *Distinct_caller_t) _pchash(pcs []uintptr) uintptr {
	if len(pcs) == 0 {
		panic("d'oh")
	}
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret = ret*31 + pc
	}
	return ret
}

// Len returns the number of unique caller paths recorded.
func (dc *Distinct_caller_t) Len() int {
	dc.Lock()
	ret := len(dc.did)
	dc.Unlock()
	return ret
}

// Distinct reports whether the current call chain is new. It returns
// true along with a formatted stack trace when not seen before.
func (dc *Distinct_caller_t) Distinct() (bool, string) {
	dc.Lock()
	defer dc.Unlock()
	if !dc.Enabled {
		return false, ""
	}

	if dc.did == nil {
		dc.did = make(map[uintptr]bool)
	}

	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return false, ""
	}
	h := dc._pchash(pcs[:n])
	if dc.did[h] {
		return false, ""
	}
	dc.did[h] = true

	s := ""
	frames := runtime.CallersFrames(pcs[:n])
	for {
		fr, more := frames.Next()
		s += fmt.Sprintf("%s:%d\n", fr.File, fr.Line)
		if !more {
			break
		}
	}
	return true, s
}
