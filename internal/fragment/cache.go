// Package fragment memoizes rendered display fragments.
//
// Fragment generation is pure but not cheap, and during a sweep the same
// fragments are requested over and over. The cache is a bounded FIFO
// memoization layer whose capacity depends on the regime that owns the
// display: smallest while the bench suite is hammering it (protect
// responsiveness), larger at idle, largest during a walkthrough (protect
// fidelity of the protected workflow).
//
// During the highest-cost tier of the sweep the cache is bypassed entirely
// unless a walkthrough owns the display: at worst-case update frequency the
// churn of insert-then-evict costs more than regeneration.
package fragment

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/quenchlabs/quench/internal/metrics"
	"github.com/quenchlabs/quench/internal/regime"
	"github.com/quenchlabs/quench/internal/tier"
)

// Limits bounds the cache for one regime.
type Limits struct {
	// Capacity is the steady-state bound. Inserting past it evicts the
	// single oldest entry.
	Capacity int

	// Pressure is the emergency bound, always above Capacity. Exceeding
	// it clears the cache and re-inserts only the most recent RetainK
	// entries.
	Pressure int

	// RetainK is how many of the newest entries survive an emergency
	// eviction.
	RetainK int
}

// Config maps each steady regime to its limits. Transitional and Unknown
// fall back to the systematic limits - the tightest bound - since a busy
// display must never be the reason memory grows.
type Config map[regime.Regime]Limits

// DefaultConfig returns the stock limits. Overridable via a tuning profile.
func DefaultConfig() Config {
	return Config{
		regime.SystematicRunning:  {Capacity: 8, Pressure: 16, RetainK: 2},
		regime.Idle:               {Capacity: 16, Pressure: 32, RetainK: 4},
		regime.WalkthroughRunning: {Capacity: 24, Pressure: 48, RetainK: 8},
	}
}

// SweepState reports which sweep tier is in flight. Satisfied by
// tier.Progress.
type SweepState interface {
	Executing() tier.Tier
}

type entry struct {
	value string
	seq   int64
}

// Cache is the bounded fragment memoizer. Insertion order is the eviction
// order; the logical seq stamped on each entry makes that order explicit
// and survives emergency rebuilds.
type Cache struct {
	mu      sync.Mutex
	monitor *regime.Monitor
	sweep   SweepState
	config  Config
	entries map[string]entry
	order   []string // keys in insertion order
	seq     int64
}

// New creates an empty cache. A nil config uses DefaultConfig.
func New(monitor *regime.Monitor, sweep SweepState, config Config) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	return &Cache{
		monitor: monitor,
		sweep:   sweep,
		config:  config,
		entries: make(map[string]entry),
	}
}

// Get returns the fragment for key, generating and memoizing it on a miss.
//
// Generator errors are never cached and propagate to the caller; isolation
// (error markers, placeholders) is the caller's concern.
//
// The insert-then-evict step is atomic under the cache mutex, so the size
// bound holds at every observation point outside this method.
func (c *Cache) Get(key string, generator func() (string, error)) (string, error) {
	if c.bypass() {
		metrics.CacheBypasses.Inc()
		return generator()
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		metrics.CacheHits.Inc()
		return e.value, nil
	}
	c.mu.Unlock()

	metrics.CacheMisses.Inc()

	// Generate outside the lock: generators may be slow and must not
	// block concurrent hits.
	value, err := generator()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent Get may have inserted the same key; keep the first.
	if e, ok := c.entries[key]; ok {
		return e.value, nil
	}

	c.seq++
	c.entries[key] = entry{value: value, seq: c.seq}
	c.order = append(c.order, key)

	limits := c.limitsLocked()
	if len(c.entries) > limits.Pressure {
		c.emergencyEvictLocked(limits.RetainK)
	} else if len(c.entries) > limits.Capacity {
		c.evictOldestLocked()
	}

	return value, nil
}

// EnterTier is the tier-transition hook. Entering the highest-cost tier
// clears the cache unconditionally so every fragment is freshly generated;
// leaving it needs no action - capacity simply reverts with the regime.
func (c *Cache) EnterTier(t tier.Tier) {
	if t != tier.Q8 {
		return
	}
	c.mu.Lock()
	n := len(c.entries)
	c.clearLocked()
	c.mu.Unlock()

	if n > 0 {
		metrics.CacheEvictions.WithLabelValues("tier").Add(float64(n))
	}
	slog.Debug("fragment cache cleared for highest-cost tier", "evicted", n)
}

// EmergencyEvict clears the cache down to the retain count for the current
// regime. Called by the memory guardian under pressure.
func (c *Cache) EmergencyEvict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emergencyEvictLocked(c.limitsLocked().RetainK)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Len returns the number of cached fragments.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the cached keys in insertion order. Diagnostic only.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// bypass reports whether the cache should be skipped entirely: the sweep is
// in its highest-cost tier and the display is not owned by the protected
// walkthrough regime.
func (c *Cache) bypass() bool {
	if c.sweep == nil || c.sweep.Executing() != tier.Q8 {
		return false
	}
	return c.monitor.Current() != regime.WalkthroughRunning
}

// limitsLocked resolves the limits for the current regime, falling back to
// the tightest configured bound for busy/unknown regimes.
func (c *Cache) limitsLocked() Limits {
	r := c.monitor.Current()
	if l, ok := c.config[r]; ok {
		return l
	}
	if l, ok := c.config[regime.SystematicRunning]; ok {
		return l
	}
	return Limits{Capacity: 8, Pressure: 16, RetainK: 2}
}

// evictOldestLocked removes the single entry with the lowest seq.
func (c *Cache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
	metrics.CacheEvictions.WithLabelValues("fifo").Inc()
}

// emergencyEvictLocked clears the cache and re-inserts only the retain
// newest entries, preserving their relative order and seq stamps.
func (c *Cache) emergencyEvictLocked(retain int) {
	if retain < 0 {
		retain = 0
	}
	if len(c.entries) <= retain {
		return
	}

	evicted := len(c.entries) - retain

	keep := c.order
	if len(keep) > retain {
		keep = keep[len(keep)-retain:]
	}
	kept := make(map[string]entry, retain)
	for _, k := range keep {
		kept[k] = c.entries[k]
	}

	c.entries = kept
	c.order = append([]string(nil), keep...)
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.entries[c.order[i]].seq < c.entries[c.order[j]].seq
	})

	metrics.CacheEvictions.WithLabelValues("pressure").Add(float64(evicted))
	slog.Warn("fragment cache emergency eviction",
		"evicted", evicted,
		"retained", len(c.entries),
	)
}

// clearLocked drops all entries without touching the seq counter, so
// insertion order remains comparable across clears.
func (c *Cache) clearLocked() {
	c.entries = make(map[string]entry)
	c.order = nil
}
