// Package stats provides the same compile-time-gated counter idiom the
// teacher uses (biscuit/src/stats/stats.go): Counter_t/Cycles_t fields
// that are no-ops unless Stats/Timing is flipped on, so instrumented
// call sites cost nothing in the default build. This complements the
// always-on Prometheus gauges in the metrics package with cheap
// per-call-site counters meant for ad hoc debugging, not export.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"
)

// Stats and Timing gate counter/cycle accounting, same as biscuit's.
const Stats = false
const Timing = false

// Counter_t is a statistical counter.
type Counter_t int64

// Cycles_t holds an elapsed-time accumulator in nanoseconds. biscuit's
// Cycles_t measures TSC cycles via runtime.Rdtsc(), a hook only its
// forked runtime exposes; stock Go has no cycle counter
// intrinsic, so this measures wall-clock nanoseconds via
// time.Now().UnixNano() instead — coarser, but the only monotonic
// source the standard library offers without cgo.
type Cycles_t int64

// Now returns a timestamp suitable for passing to Add, or 0 if Timing
// is disabled.
func Now() uint64 {
	if Timing {
		return uint64(time.Now().UnixNano())
	}
	return 0
}

// Inc increments the counter.
func (c *Counter_t) Inc() {
	if Stats {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, 1)
	}
}

// Add adds the nanoseconds elapsed since start.
func (c *Cycles_t) Add(start uint64) {
	if Timing {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, int64(Now()-start))
	}
}

// Stats2String converts a struct of counters to a printable string,
// same reflection-based dump biscuit uses.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
		if strings.HasSuffix(t, "Cycles_t") {
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
