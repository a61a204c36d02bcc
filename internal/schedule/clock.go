package schedule

import "time"

// Timer is a cancellable one-shot timer handle. The scheduler owns exactly
// one handle per pending update kind; re-scheduling replaces the captured
// operation, never arms a second timer.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired or was
	// already stopped.
	Stop() bool
}

// Clock abstracts wall time and timer arming so tests can drive the
// timeline manually (testutil.ManualClock) while production uses the real
// clock. Mirrors the deterministic-clock discipline used by the suite
// runner: no component reads time.Now directly.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

type realTimer struct {
	t *time.Timer
}

func (t realTimer) Stop() bool { return t.t.Stop() }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

// RealClock returns a Clock backed by the runtime's timers.
func RealClock() Clock { return realClock{} }
