// Package regime classifies which execution regime currently owns the live
// display. Two producers (the systematic bench suite and the walkthrough
// runner) flip raw flags; every other component asks this package what those
// flags mean before it touches shared state.
//
// Classification is a pure function of the flags and is recomputed on every
// query. The regime is never stored authoritatively anywhere - components
// that cached it would race the producers.
package regime

import "sync/atomic"

// Regime is the mutually exclusive mode that owns the display.
type Regime int

const (
	// Idle means neither suite is running; the display shows the last
	// converged state and background maintenance may run freely.
	Idle Regime = iota

	// SystematicRunning means the multi-test bench suite owns the display.
	SystematicRunning

	// WalkthroughRunning means the domain walkthrough owns the display.
	// Walkthrough runs are protected: caches grow larger and in-flight
	// progressive state survives unforced resets.
	WalkthroughRunning

	// Transitional means trials are executing right now. It is the global
	// "do no optional work" signal: updates are dropped, maintenance is
	// inhibited, and the next natural call after idling re-synchronizes.
	Transitional

	// Unknown means the flags are contradictory (both suites claiming the
	// display). Treated exactly like Transitional by consumers: suppress
	// all non-essential work.
	Unknown
)

// String returns the regime name for logging and status output.
func (r Regime) String() string {
	switch r {
	case Idle:
		return "idle"
	case SystematicRunning:
		return "systematic"
	case WalkthroughRunning:
		return "walkthrough"
	case Transitional:
		return "transitional"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Flags are the raw signals the execution engines expose.
type Flags struct {
	// TrialsExecuting is true while an individual trial is in flight.
	// It overrides everything else.
	TrialsExecuting bool

	// WalkthroughActive is true while the walkthrough runner owns the
	// session.
	WalkthroughActive bool

	// SystematicRunning is true while the bench suite owns the session.
	SystematicRunning bool
}

// Classify maps raw producer flags to one exclusive regime.
//
// Precedence (first match wins):
//  1. TrialsExecuting           -> Transitional
//  2. walkthrough, not bench    -> WalkthroughRunning
//  3. bench, not walkthrough    -> SystematicRunning
//  4. neither                   -> Idle
//  5. both (contradictory)      -> Unknown
func Classify(f Flags) Regime {
	switch {
	case f.TrialsExecuting:
		return Transitional
	case f.WalkthroughActive && !f.SystematicRunning:
		return WalkthroughRunning
	case f.SystematicRunning && !f.WalkthroughActive:
		return SystematicRunning
	case !f.SystematicRunning && !f.WalkthroughActive:
		return Idle
	default:
		return Unknown
	}
}

// Source supplies the current raw flags. Implemented by AtomicFlags
// (production) and by fixed-flag stubs in tests.
type Source interface {
	Flags() Flags
}

// Monitor is the single point of truth the other components consult before
// mutating shared state. It holds no state of its own - every query re-reads
// the source and re-classifies.
type Monitor struct {
	source Source
}

// NewMonitor creates a monitor over the given flag source.
func NewMonitor(source Source) *Monitor {
	return &Monitor{source: source}
}

// Current returns the regime derived from the source's flags right now.
func (m *Monitor) Current() Regime {
	return Classify(m.source.Flags())
}

// Busy reports whether all non-essential work must be suppressed.
// True for Transitional (trials in flight) and Unknown (contradictory flags).
func (m *Monitor) Busy() bool {
	r := m.Current()
	return r == Transitional || r == Unknown
}

// AtomicFlags is a Source whose flags the producers flip from the execution
// timeline. Reads and writes are atomic so the monitor may be queried from
// timer callbacks without tearing.
type AtomicFlags struct {
	trials      atomic.Bool
	walkthrough atomic.Bool
	systematic  atomic.Bool
}

// NewAtomicFlags creates a flag source with all flags clear.
func NewAtomicFlags() *AtomicFlags {
	return &AtomicFlags{}
}

// Flags returns a snapshot of the current flags.
func (a *AtomicFlags) Flags() Flags {
	return Flags{
		TrialsExecuting:   a.trials.Load(),
		WalkthroughActive: a.walkthrough.Load(),
		SystematicRunning: a.systematic.Load(),
	}
}

// SetTrialsExecuting flips the trial-in-flight inhibitor.
func (a *AtomicFlags) SetTrialsExecuting(v bool) { a.trials.Store(v) }

// SetWalkthroughActive flips walkthrough ownership.
func (a *AtomicFlags) SetWalkthroughActive(v bool) { a.walkthrough.Store(v) }

// SetSystematicRunning flips bench suite ownership.
func (a *AtomicFlags) SetSystematicRunning(v bool) { a.systematic.Store(v) }
