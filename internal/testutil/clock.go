// Package testutil provides deterministic time and token sources for tests.
//
// All scheduling components take an injected clock, so tests drive the
// timeline explicitly with ManualClock.Advance and never sleep. This keeps
// throttle-window and watchdog tests exact and reproducible.
package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/quenchlabs/quench/internal/schedule"
)

// ManualClock is a test clock whose time only moves when Advance is called.
// Timers armed with AfterFunc fire synchronously, in deadline order, from
// inside Advance - mirroring the single cooperative timeline of production.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex,
// though tests normally drive the clock from one goroutine.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

// Stop cancels the timer. Returns false if it already fired or was stopped.
func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewManualClock creates a clock starting at a fixed, arbitrary epoch.
// The epoch is not zero so IsZero checks on stamped times behave the same
// as with the real clock.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc arms a one-shot timer that fires when the clock advances past
// its deadline.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) schedule.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires every due timer in deadline order.
// Timer callbacks run synchronously with the clock set to their own
// deadline, so a callback that reads Now sees the instant it was armed for.
// Callbacks may arm new timers; those fire too if they fall within the
// advance window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)

	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}
		next.fired = true
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}

	c.now = target
	c.mu.Unlock()
}

// nextDueLocked returns the unfired, unstopped timer with the earliest
// deadline at or before target, or nil. Compacts dead timers as it goes.
// Caller must hold c.mu.
func (c *ManualClock) nextDueLocked(target time.Time) *manualTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			live = append(live, t)
		}
	}
	c.timers = live

	sort.SliceStable(c.timers, func(i, j int) bool {
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})

	if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
		return nil
	}
	return c.timers[0]
}
