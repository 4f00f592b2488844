// Package oommsg is the memory-pressure notification channel ViewCache
// registers itself against in Init (spec §4.1: "installs itself as a
// memory-pressure consumer"). Carried over unchanged from
// biscuit/src/oommsg/oommsg.go — it was already exactly this interface,
// just previously unwired to any consumer.
package oommsg

// OomCh is notified when the system runs low on memory; ViewCache's
// trim_cache is the consumer (spec §4.1, §9 "low-memory pressure
// triggers trim_cache").
var OomCh chan Oommsg_t = make(chan Oommsg_t, 1)

// Oommsg_t is sent on OomCh when memory is under pressure.
type Oommsg_t struct {
	// Need is the number of pages the sender would like freed.
	Need int
	// Resume is closed (or sent true) once the consumer has made its
	// best effort, so the sender can decide whether to escalate.
	Resume chan bool
}
