// Package render owns the shared render surface: the mutual-exclusion lock
// that guards its mutation, the surface abstraction itself, and a reference
// fragment renderer. Fragment generation is pure; only surface mutation
// needs the lock.
package render

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/quenchlabs/quench/internal/metrics"
	"github.com/quenchlabs/quench/internal/schedule"
)

// ErrLockHeld is returned when the render lock is held within its watchdog
// window and cannot be taken.
var ErrLockHeld = errors.New("render lock held")

// Lock guards mutation of the shared render surface.
//
// It is a boolean flag with a watchdog: a holder that exceeds the watchdog
// timeout is presumed wedged (an exception escaped between acquire and
// release) and the lock is force-released with a logged warning. This is
// the bounded-wait substitute for a real deadline - the single cooperative
// timeline means nobody is actually blocked, but a stuck flag would freeze
// all future display updates.
type Lock struct {
	mu         sync.Mutex
	clock      schedule.Clock
	watchdog   time.Duration
	held       bool
	acquiredAt time.Time
}

// NewLock creates a released lock with the given watchdog timeout.
func NewLock(clock schedule.Clock, watchdog time.Duration) *Lock {
	return &Lock{clock: clock, watchdog: watchdog}
}

// Acquire takes the lock.
//
// If the lock is held past its watchdog timeout it is force-released and
// acquisition is retried once - this is the LockTimeout recovery path.
// A lock held within the watchdog window returns ErrLockHeld; the caller's
// update is simply dropped and a later update converges the display.
func (l *Lock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		if l.clock.Now().Sub(l.acquiredAt) < l.watchdog {
			return ErrLockHeld
		}
		l.forceReleaseLocked()
	}

	l.held = true
	l.acquiredAt = l.clock.Now()
	return nil
}

// Release releases the lock. Must be called on every exit path of the
// holder, including error paths. Releasing a free lock is a no-op.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
}

// Held reports whether the lock is currently held.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// HeldFor returns how long the lock has been held, or zero when free.
func (l *Lock) HeldFor() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return 0
	}
	return l.clock.Now().Sub(l.acquiredAt)
}

// Watchdog returns the configured watchdog timeout.
func (l *Lock) Watchdog() time.Duration {
	return l.watchdog
}

// ForceReleaseIfExpired releases the lock if it has been held past the
// watchdog timeout. Called by the memory guardian. Returns true if a
// release happened.
func (l *Lock) ForceReleaseIfExpired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held || l.clock.Now().Sub(l.acquiredAt) < l.watchdog {
		return false
	}
	l.forceReleaseLocked()
	return true
}

// forceReleaseLocked releases a wedged lock. Caller must hold l.mu.
func (l *Lock) forceReleaseLocked() {
	heldFor := l.clock.Now().Sub(l.acquiredAt)
	l.held = false
	metrics.LockForcedReleases.Inc()
	slog.Warn("render lock force-released past watchdog",
		"held_for", heldFor,
		"watchdog", l.watchdog,
	)
}
