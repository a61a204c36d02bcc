// Package schedule throttles and coalesces display update requests.
//
// Results arrive in bursts while the display must stay responsive, so the
// scheduler enforces one executed operation per throttle window per update
// kind. Requests that land inside an open window are coalesced trailing-edge:
// the most recently supplied operation wins and runs when the window closes.
// Earlier requests in the same window never run - only the final state must
// converge, so dropping intermediates is safe.
//
// Kinds are independent: each has its own interval and window, and there is
// no ordering guarantee across kinds.
package schedule

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quenchlabs/quench/internal/metrics"
	"github.com/quenchlabs/quench/internal/regime"
)

// Kind identifies one class of display update with its own throttle window.
type Kind string

const (
	// KindTestBed redraws the whole test bed snapshot.
	KindTestBed Kind = "testbed"
	// KindResult updates a single result item.
	KindResult Kind = "result"
)

// window is the per-kind throttle record. Owned exclusively by the
// scheduler and mutated only under its mutex.
type window struct {
	interval  time.Duration
	lastFired time.Time
	pending   bool
	pendingOp func()
	timer     Timer
}

// Scheduler throttles update operations per kind, consulting the regime
// monitor before any work: busy regimes drop requests outright (no backlog,
// no queue growth - the next natural call after idling re-synchronizes).
type Scheduler struct {
	mu      sync.Mutex
	monitor *regime.Monitor
	clock   Clock
	windows map[Kind]*window
	stopped bool
}

// New creates a scheduler with one throttle window per configured kind.
func New(monitor *regime.Monitor, clock Clock, intervals map[Kind]time.Duration) *Scheduler {
	windows := make(map[Kind]*window, len(intervals))
	for kind, interval := range intervals {
		windows[kind] = &window{interval: interval}
	}
	return &Scheduler{
		monitor: monitor,
		clock:   clock,
		windows: windows,
	}
}

// Schedule requests that op run for the given kind, subject to throttling.
//
// Outside an open window the operation runs immediately. Inside one, it is
// captured for the trailing edge; a later Schedule call in the same window
// replaces the captured operation (last write wins). At most one timer is
// armed per kind at any instant.
//
// Busy regimes (trials executing, contradictory flags) drop the request.
// The monitor is consulted again when the timer fires, so an operation
// scheduled in a safe regime becomes a no-op if the regime turned unsafe
// in between.
func (s *Scheduler) Schedule(kind Kind, op func()) error {
	if op == nil {
		return fmt.Errorf("schedule %s: nil operation", kind)
	}

	s.mu.Lock()
	w, ok := s.windows[kind]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("schedule: unknown update kind %q", kind)
	}
	if s.stopped {
		s.mu.Unlock()
		return nil
	}

	if s.monitor.Busy() {
		s.mu.Unlock()
		metrics.UpdatesDropped.WithLabelValues(string(kind)).Inc()
		slog.Debug("update dropped: display busy", "kind", kind)
		return nil
	}

	metrics.UpdatesScheduled.WithLabelValues(string(kind)).Inc()

	now := s.clock.Now()
	elapsed := now.Sub(w.lastFired)
	if w.lastFired.IsZero() || elapsed >= w.interval {
		// A timer armed for this window may not have fired yet even though
		// the boundary has passed. Its captured operation is superseded by
		// this newer one and must never run after it.
		s.clearPendingLocked(w)
		w.lastFired = now
		s.mu.Unlock()
		s.run(kind, op)
		return nil
	}

	if w.pending {
		// Window already armed: replace the captured operation, keep the
		// existing timer (trailing-edge, last write wins).
		w.pendingOp = op
		s.mu.Unlock()
		metrics.UpdatesCoalesced.WithLabelValues(string(kind)).Inc()
		slog.Debug("update coalesced", "kind", kind)
		return nil
	}

	w.pending = true
	w.pendingOp = op
	remaining := w.interval - elapsed
	w.timer = s.clock.AfterFunc(remaining, func() { s.fire(kind) })
	s.mu.Unlock()
	return nil
}

// Flush runs op immediately, bypassing the throttle window - the manual
// resync path. Any operation pending for the kind is superseded: the flush
// redraws everything the pending update would have.
//
// The busy inhibitor still applies; a manual resync must not mutate the
// display mid-trial.
func (s *Scheduler) Flush(kind Kind, op func()) error {
	if op == nil {
		return fmt.Errorf("flush %s: nil operation", kind)
	}

	s.mu.Lock()
	w, ok := s.windows[kind]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("flush: unknown update kind %q", kind)
	}
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	if s.monitor.Busy() {
		s.mu.Unlock()
		metrics.UpdatesDropped.WithLabelValues(string(kind)).Inc()
		slog.Debug("flush dropped: display busy", "kind", kind)
		return nil
	}

	s.clearPendingLocked(w)
	w.lastFired = s.clock.Now()
	s.mu.Unlock()

	s.run(kind, op)
	return nil
}

// Stop cancels all pending timers and rejects further work. Safe to call
// more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for _, w := range s.windows {
		s.clearPendingLocked(w)
	}
}

// Pending reports whether the kind has a deferred operation waiting for its
// window to close. Diagnostic only.
func (s *Scheduler) Pending(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[kind]
	return ok && w.pending
}

// fire is the trailing-edge timer callback. The pending flag is cleared
// before the operation runs, so it can never be left stuck by a panicking
// operation.
func (s *Scheduler) fire(kind Kind) {
	s.mu.Lock()
	w, ok := s.windows[kind]
	if !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	op := w.pendingOp
	w.pending = false
	w.pendingOp = nil
	w.timer = nil

	if op == nil {
		s.mu.Unlock()
		return
	}

	// Regime re-check at fire time: the regime may have turned unsafe
	// since the operation was captured.
	if s.monitor.Busy() {
		s.mu.Unlock()
		metrics.UpdatesDropped.WithLabelValues(string(kind)).Inc()
		slog.Debug("deferred update dropped at fire time: display busy", "kind", kind)
		return
	}

	w.lastFired = s.clock.Now()
	s.mu.Unlock()

	s.run(kind, op)
}

// run executes an operation with panic containment. A failing operation is
// logged and never propagates to the caller or the timer goroutine.
func (s *Scheduler) run(kind Kind, op func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.UpdatePanics.WithLabelValues(string(kind)).Inc()
			slog.Error("update operation panicked", "kind", kind, "panic", r)
		}
	}()

	metrics.UpdatesFired.WithLabelValues(string(kind)).Inc()
	op()
}

// clearPendingLocked cancels the window's timer and discards any captured
// operation. Caller must hold s.mu.
func (s *Scheduler) clearPendingLocked(w *window) {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = false
	w.pendingOp = nil
}
