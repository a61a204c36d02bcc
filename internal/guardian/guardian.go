// Package guardian runs background memory maintenance for the display.
//
// The guardian samples a memory usage ratio on a minutes-scale timer - far
// off the latency-sensitive update path - and, under pressure, triggers the
// fragment cache's emergency eviction and breaks a render lock wedged past
// its watchdog. It never competes with foreground updates: both consult the
// same busy signal, and a busy regime skips the sample outright.
//
// Repeated failures stop the loop rather than retrying forever: after a
// bounded count the guardian raises a manual-reset signal and goes quiet.
// The failure-counting discipline follows the circuit-breaker pattern:
// consecutive failures trip, one success resets.
package guardian

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/quenchlabs/quench/internal/metrics"
	"github.com/quenchlabs/quench/internal/regime"
	"github.com/quenchlabs/quench/internal/schedule"
)

// Cache is the cleanup hook into the fragment cache.
type Cache interface {
	EmergencyEvict()
	Len() int
}

// RenderLock is the watchdog hook into the render lock.
type RenderLock interface {
	ForceReleaseIfExpired() bool
}

// Config tunes the guardian per regime.
type Config struct {
	// Intervals is the sampling period per regime. Minutes-scale; the
	// guardian must never contend with sub-second update delivery.
	Intervals map[regime.Regime]time.Duration

	// Thresholds is the usage ratio above which cleanup triggers.
	Thresholds map[regime.Regime]float64

	// MaxConsecutiveFailures bounds auto-retry. Past it the guardian
	// stops and requires a manual reset.
	MaxConsecutiveFailures int
}

// DefaultConfig returns the stock tuning. Overridable via a tuning profile.
func DefaultConfig() Config {
	return Config{
		Intervals: map[regime.Regime]time.Duration{
			regime.Idle:               2 * time.Minute,
			regime.SystematicRunning:  5 * time.Minute,
			regime.WalkthroughRunning: 5 * time.Minute,
		},
		Thresholds: map[regime.Regime]float64{
			regime.Idle:               0.75,
			regime.SystematicRunning:  0.65,
			regime.WalkthroughRunning: 0.85,
		},
		MaxConsecutiveFailures: 3,
	}
}

// UsageFunc reports the current memory usage ratio in [0,1].
type UsageFunc func() (float64, error)

// HeapUsage is the production usage source: allocated heap over the heap
// the runtime has reserved.
func HeapUsage() (float64, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapSys == 0 {
		return 0, fmt.Errorf("heap usage: HeapSys is zero")
	}
	return float64(m.HeapAlloc) / float64(m.HeapSys), nil
}

// Guardian is the background sampler.
type Guardian struct {
	mu       sync.Mutex
	monitor  *regime.Monitor
	clock    schedule.Clock
	cache    Cache
	lock     RenderLock
	usage    UsageFunc
	config   Config
	failures int
	needs    bool // manual reset required
	stopped  bool
	timer    schedule.Timer
}

// New creates a stopped guardian. A nil usage func uses HeapUsage.
func New(monitor *regime.Monitor, clock schedule.Clock, cache Cache, lock RenderLock, usage UsageFunc, config Config) *Guardian {
	if usage == nil {
		usage = HeapUsage
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = DefaultConfig().MaxConsecutiveFailures
	}
	return &Guardian{
		monitor: monitor,
		clock:   clock,
		cache:   cache,
		lock:    lock,
		usage:   usage,
		config:  config,
	}
}

// Start arms the first sampling timer. Safe to call once.
func (g *Guardian) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = false
	g.armLocked()
}

// Stop cancels the sampling timer.
func (g *Guardian) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopped = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// Sample runs one maintenance pass. Exposed for tests and for the manual
// reset path; the timer chain calls it on the regime-dependent interval.
func (g *Guardian) Sample() {
	metrics.GuardianSamples.Inc()

	if g.monitor.Busy() {
		slog.Debug("guardian sample skipped: display busy")
		return
	}

	ratio, err := g.usage()
	if err != nil {
		g.recordFailure(fmt.Errorf("read usage: %w", err))
		return
	}

	threshold := g.thresholdFor(g.monitor.Current())
	if ratio <= threshold {
		g.recordSuccess()
		return
	}

	slog.Info("memory pressure detected",
		"ratio", ratio,
		"threshold", threshold,
		"cached_fragments", g.cache.Len(),
	)

	metrics.GuardianCleanups.Inc()
	g.cache.EmergencyEvict()
	if g.lock.ForceReleaseIfExpired() {
		slog.Warn("guardian broke a wedged render lock")
	}
	g.recordSuccess()
}

// ManualResetRequired reports whether the guardian has given up on
// auto-retry and needs an operator reset.
func (g *Guardian) ManualResetRequired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.needs
}

// Failures returns the consecutive failure count. Diagnostic only.
func (g *Guardian) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// Reset clears the failure state and restarts sampling. The operator's
// answer to the manual-reset signal.
func (g *Guardian) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures = 0
	g.needs = false
	g.stopped = false
	g.armLocked()
}

// recordFailure counts one failure; past the bound the guardian stops.
func (g *Guardian) recordFailure(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	metrics.GuardianFailures.Inc()
	g.failures++
	if g.failures >= g.config.MaxConsecutiveFailures {
		g.needs = true
		g.stopped = true
		if g.timer != nil {
			g.timer.Stop()
			g.timer = nil
		}
		slog.Error("guardian stopped after repeated failures: manual reset required",
			"failures", g.failures,
			"error", err,
		)
		return
	}
	slog.Warn("guardian sample failed", "failures", g.failures, "error", err)
}

func (g *Guardian) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = 0
}

// armLocked schedules the next sample for the current regime's interval.
// Caller must hold g.mu.
func (g *Guardian) armLocked() {
	if g.stopped {
		return
	}
	interval := g.intervalFor(g.monitor.Current())
	g.timer = g.clock.AfterFunc(interval, func() {
		g.Sample()
		g.mu.Lock()
		g.armLocked()
		g.mu.Unlock()
	})
}

func (g *Guardian) intervalFor(r regime.Regime) time.Duration {
	if d, ok := g.config.Intervals[r]; ok {
		return d
	}
	if d, ok := g.config.Intervals[regime.Idle]; ok {
		return d
	}
	return 2 * time.Minute
}

func (g *Guardian) thresholdFor(r regime.Regime) float64 {
	if t, ok := g.config.Thresholds[r]; ok {
		return t
	}
	return 0.75
}
