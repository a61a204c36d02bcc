// Package metrics exposes Prometheus counters for the update coordination
// layer. Counters are registered once via promauto and incremented from the
// hot paths; a front end embedding the console can expose them through its
// own registry handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler.

	UpdatesScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "scheduler",
		Name:      "updates_scheduled_total",
		Help:      "Update requests accepted by the scheduler",
	}, []string{"kind"})

	UpdatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "scheduler",
		Name:      "updates_dropped_total",
		Help:      "Update requests dropped because the display was busy",
	}, []string{"kind"})

	UpdatesCoalesced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "scheduler",
		Name:      "updates_coalesced_total",
		Help:      "Update requests superseded by a later request in the same window",
	}, []string{"kind"})

	UpdatesFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "scheduler",
		Name:      "updates_fired_total",
		Help:      "Update operations actually executed",
	}, []string{"kind"})

	UpdatePanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "scheduler",
		Name:      "update_panics_total",
		Help:      "Update operations that panicked and were contained",
	}, []string{"kind"})

	// Fragment cache.

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Fragment cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Fragment cache misses",
	})

	CacheBypasses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "cache",
		Name:      "bypasses_total",
		Help:      "Fragment generations that skipped the cache entirely",
	})

	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Fragment cache evictions by cause",
	}, []string{"cause"}) // "fifo", "pressure", "tier"

	// Memory guardian.

	GuardianSamples = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "guardian",
		Name:      "samples_total",
		Help:      "Memory guardian sampling passes",
	})

	GuardianCleanups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "guardian",
		Name:      "cleanups_total",
		Help:      "Cleanups triggered by memory pressure",
	})

	GuardianFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "guardian",
		Name:      "failures_total",
		Help:      "Consecutive-failure increments during guardian sampling",
	})

	// Render lock.

	LockForcedReleases = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quench",
		Subsystem: "renderlock",
		Name:      "forced_releases_total",
		Help:      "Render lock releases forced by the watchdog",
	})
)
