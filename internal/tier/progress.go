package tier

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/quenchlabs/quench/internal/regime"
)

// Progress is the incremental disclosure machine for the sweep test.
//
// The sweep's per-tier cost varies by orders of magnitude, so tiers complete
// at wildly different times. Progress tracks which tiers have finished and
// answers the one question the renderer may ask: which tiers are safe to
// show right now. The load-bearing guarantee is monotonicity - a tier that
// has been shown is never regressed.
//
// Lifecycle: created inert; Activate begins a sweep; MarkExecuting and
// MarkCompleted mutate during the sweep; Deactivate or Reset end it.
//
// All transitions happen on the single execution timeline, so they are
// totally ordered by construction. The internal mutex only guards against
// torn reads from timer callbacks.
type Progress struct {
	mu        sync.Mutex
	monitor   *regime.Monitor
	active    bool
	sequence  []Tier
	executing Tier
	completed Tier
	done      []Tier
}

// State is a point-in-time snapshot of the machine, used by the status
// endpoint and by tests.
type State struct {
	Active         bool   `json:"active"`
	ExecutingTier  string `json:"executing_tier"`
	CompletedTier  string `json:"completed_tier"`
	CompletedTiers []Tier `json:"completed_tiers"`
}

// NewProgress creates an inert machine. The monitor is consulted by
// Reset to protect in-flight walkthrough progress from unrelated cleanup.
func NewProgress(monitor *regime.Monitor) *Progress {
	return &Progress{monitor: monitor, executing: None, completed: None}
}

// Activate begins a sweep over the given tier sequence and clears all
// per-sweep state. An empty sequence activates over the canonical order.
func (p *Progress) Activate(sequence []Tier) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(sequence) == 0 {
		sequence = Canonical
	}
	p.active = true
	p.sequence = append([]Tier(nil), sequence...)
	p.executing = None
	p.completed = None
	p.done = nil

	slog.Debug("sweep disclosure activated", "tiers", len(p.sequence))
}

// MarkExecuting records that a tier has started. The completed slot is
// cleared: an in-flight tier has nothing new to reveal, and the renderer
// must not show partial data for it.
//
// Marking a tier that already completed is ignored - re-executing a shown
// tier would regress the display.
func (p *Progress) MarkExecuting(t Tier) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}
	if p.contains(t) {
		slog.Warn("ignoring execute mark for already completed tier", "tier", t)
		return
	}
	p.executing = t
	p.completed = None
}

// MarkCompleted records that a tier has finished and may be revealed.
// Idempotent: repeated calls with the same tier are no-ops beyond the first.
// The completed list stays a duplicate-free prefix sorted in canonical order.
func (p *Progress) MarkCompleted(t Tier) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}
	p.completed = t
	p.executing = None
	if !p.contains(t) {
		p.done = append(p.done, t)
		sort.Slice(p.done, func(i, j int) bool { return p.done[i] < p.done[j] })
	}
}

// Deactivate ends the sweep and returns the machine to inert. The caller
// arms this after a grace delay once the final tier completes, so the full
// result set stays visible briefly before filtering stops.
func (p *Progress) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = false
	p.sequence = nil
	p.executing = None
	p.completed = None
	p.done = nil
}

// Reset clears the machine to inert.
//
// Unforced resets are refused while a sweep is active under the walkthrough
// regime: walkthrough progress is protected from unrelated cleanup triggers
// (the memory guardian, a stray refresh). A forced reset always clears.
func (p *Progress) Reset(force bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !force && p.active && p.monitor != nil && p.monitor.Current() == regime.WalkthroughRunning {
		slog.Debug("unforced reset refused: sweep active under walkthrough")
		return
	}
	p.active = false
	p.sequence = nil
	p.executing = None
	p.completed = None
	p.done = nil
}

// TiersToShow returns the tiers the renderer may display.
//
// Inert: the full canonical list - there is nothing to filter.
// Active with a tier executing before anything has completed: empty - the
// display must not show partial data for the in-flight tier.
// Otherwise: the completed prefix in canonical order; tiers already shown
// stay visible while a later tier runs.
func (p *Progress) TiersToShow() []Tier {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return append([]Tier(nil), Canonical...)
	}
	if p.executing != None && p.completed == None && len(p.done) == 0 {
		return []Tier{}
	}
	return append([]Tier(nil), p.done...)
}

// Complete reports whether every tier of the activated sequence has
// completed. Always false when inert.
func (p *Progress) Complete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || len(p.sequence) == 0 {
		return false
	}
	for _, t := range p.sequence {
		found := false
		for _, d := range p.done {
			if d == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Executing returns the tier currently in flight, or None.
func (p *Progress) Executing() Tier {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.executing
}

// Active reports whether a sweep is in progress.
func (p *Progress) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Snapshot returns the current state for diagnostics.
func (p *Progress) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return State{
		Active:         p.active,
		ExecutingTier:  p.executing.String(),
		CompletedTier:  p.completed.String(),
		CompletedTiers: append([]Tier(nil), p.done...),
	}
}

// contains reports whether t is already in the completed list.
// Caller must hold p.mu.
func (p *Progress) contains(t Tier) bool {
	for _, d := range p.done {
		if d == t {
			return true
		}
	}
	return false
}
