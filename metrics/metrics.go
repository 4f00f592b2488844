// Package metrics exposes the gauges and counters an operator would
// want from these two cores in production: dirty-page pressure, LRU
// size, and handle-table occupancy. Wired with
// github.com/prometheus/client_golang, the dependency
// talyz-systemd_exporter carries for exactly this kind of
// gauge-per-resource exporter.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// DirtyPages tracks global.dirty_pages (spec §3.3, invariant I2).
	DirtyPages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "view_cache",
		Name:      "dirty_pages",
		Help:      "Total dirty pages across all VACBs awaiting writeback.",
	})

	// LRULength tracks the length of the global LRU list (spec §3.3).
	LRULength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "view_cache",
		Name:      "lru_length",
		Help:      "Number of VACBs on the global LRU list.",
	})

	// FlushTotal counts completed flush_vacb calls, split by outcome.
	FlushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "view_cache",
		Name:      "flush_total",
		Help:      "Completed flush_vacb calls by outcome.",
	}, []string{"outcome"})

	// TrimFreedTotal counts pages freed by trim_cache.
	TrimFreedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "view_cache",
		Name:      "trim_freed_pages_total",
		Help:      "Pages freed cumulatively by trim_cache.",
	})

	// HandlesInUse tracks occupied ObjectTable slots.
	HandlesInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gdi",
		Name:      "handles_in_use",
		Help:      "ObjectTable slots currently allocated.",
	})

	// HandlesFree is registered for ObjectTable slots available for
	// allocation. No code in this module sets it, so it reads zero.
	HandlesFree = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gdi",
		Name:      "handles_free",
		Help:      "ObjectTable slots available for allocation.",
	})

	// FlushDirtyFailureStreak tracks the per-call failure budget noted
	// in spec §9 for flush_dirty's restart-from-head behavior: if the
	// same VACB keeps failing, this climbs instead of the process
	// livelocking silently.
	FlushDirtyFailureStreak = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "view_cache",
		Name:      "flush_dirty_failure_streak",
		Help:      "Consecutive non-progress restarts within one flush_dirty call.",
	})
)

// MustRegister registers every metric above with reg. Call once at
// process startup; tests typically use a throwaway prometheus.Registry.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(DirtyPages, LRULength, FlushTotal, TrimFreedTotal,
		HandlesInUse, HandlesFree, FlushDirtyFailureStreak)
}
