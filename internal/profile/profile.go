// Package profile loads display tuning profiles.
//
// A profile sets the knobs the coordination layer runs on: throttle
// intervals per update kind, fragment cache bounds per regime, guardian
// sampling tuning, and the render-lock watchdog. Profiles are CUE files
// compiled with the CUE Go API (not a CLI subprocess), so a malformed
// profile fails at load time with a positioned error instead of at the
// first update under load.
package profile

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/quenchlabs/quench/internal/fragment"
	"github.com/quenchlabs/quench/internal/guardian"
	"github.com/quenchlabs/quench/internal/regime"
	"github.com/quenchlabs/quench/internal/schedule"
)

// Profile is the complete tuning set for one session.
type Profile struct {
	// Intervals is the throttle window per update kind.
	Intervals map[schedule.Kind]time.Duration

	// Cache bounds the fragment cache per regime.
	Cache fragment.Config

	// Guardian tunes background maintenance.
	Guardian guardian.Config

	// Watchdog is the render lock's maximum hold time.
	Watchdog time.Duration

	// Grace is how long the full sweep result set stays visible after the
	// final tier completes before disclosure filtering deactivates.
	Grace time.Duration
}

// Default returns the stock profile used when no CUE file is given.
func Default() *Profile {
	return &Profile{
		Intervals: map[schedule.Kind]time.Duration{
			schedule.KindTestBed: 1 * time.Second,
			schedule.KindResult:  500 * time.Millisecond,
		},
		Cache:    fragment.DefaultConfig(),
		Guardian: guardian.DefaultConfig(),
		Watchdog: 10 * time.Second,
		Grace:    3 * time.Second,
	}
}

// CompileError is a profile compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: profile.%s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("profile.%s: %s", e.Field, e.Message)
}

// Load reads and compiles a CUE profile file. Unset sections keep their
// defaults, so a profile may override a single knob.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile profile: %w", err)
	}

	root := v.LookupPath(cue.ParsePath("profile"))
	if !root.Exists() {
		return nil, &CompileError{Field: "profile", Message: "top-level 'profile' struct is required", Pos: v.Pos()}
	}
	return Compile(root)
}

// Compile parses a CUE value into a Profile. The value should be the
// profile struct itself.
func Compile(v cue.Value) (*Profile, error) {
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile profile: %w", err)
	}

	p := Default()

	if err := compileIntervals(v, p); err != nil {
		return nil, err
	}
	if err := compileCache(v, p); err != nil {
		return nil, err
	}
	if err := compileGuardian(v, p); err != nil {
		return nil, err
	}
	if err := compileRender(v, p); err != nil {
		return nil, err
	}
	return p, nil
}

// compileIntervals parses intervals: { testbed: <ms>, result: <ms> }.
func compileIntervals(v cue.Value, p *Profile) error {
	iv := v.LookupPath(cue.ParsePath("intervals"))
	if !iv.Exists() {
		return nil
	}

	iter, err := iv.Fields()
	if err != nil {
		return &CompileError{Field: "intervals", Message: err.Error(), Pos: iv.Pos()}
	}
	for iter.Next() {
		kind := schedule.Kind(iter.Selector().String())
		if kind != schedule.KindTestBed && kind != schedule.KindResult {
			// A typoed key would otherwise become a throttle window
			// nothing ever schedules into.
			return &CompileError{Field: "intervals." + string(kind), Message: "unknown update kind", Pos: iter.Value().Pos()}
		}
		ms, err := iter.Value().Int64()
		if err != nil {
			return &CompileError{Field: "intervals." + string(kind), Message: "interval must be integer milliseconds", Pos: iter.Value().Pos()}
		}
		if ms <= 0 {
			return &CompileError{Field: "intervals." + string(kind), Message: "interval must be positive", Pos: iter.Value().Pos()}
		}
		p.Intervals[kind] = time.Duration(ms) * time.Millisecond
	}
	return nil
}

// compileCache parses cache: { systematic | idle | walkthrough:
// { capacity, pressure, retain } }.
func compileCache(v cue.Value, p *Profile) error {
	cv := v.LookupPath(cue.ParsePath("cache"))
	if !cv.Exists() {
		return nil
	}

	for name, r := range regimeNames {
		rv := cv.LookupPath(cue.ParsePath(name))
		if !rv.Exists() {
			continue
		}

		limits := p.Cache[r]
		var err error
		if limits.Capacity, err = intField(rv, "capacity", limits.Capacity); err != nil {
			return err
		}
		if limits.Pressure, err = intField(rv, "pressure", limits.Pressure); err != nil {
			return err
		}
		if limits.RetainK, err = intField(rv, "retain", limits.RetainK); err != nil {
			return err
		}

		if limits.Capacity <= 0 {
			return &CompileError{Field: "cache." + name + ".capacity", Message: "capacity must be positive", Pos: rv.Pos()}
		}
		if limits.Pressure <= limits.Capacity {
			return &CompileError{Field: "cache." + name + ".pressure", Message: "pressure threshold must exceed capacity", Pos: rv.Pos()}
		}
		if limits.RetainK < 0 || limits.RetainK > limits.Capacity {
			return &CompileError{Field: "cache." + name + ".retain", Message: "retain must be between 0 and capacity", Pos: rv.Pos()}
		}
		p.Cache[r] = limits
	}
	return nil
}

// compileGuardian parses guardian: { interval_minutes: {...},
// thresholds: {...}, max_failures }.
func compileGuardian(v cue.Value, p *Profile) error {
	gv := v.LookupPath(cue.ParsePath("guardian"))
	if !gv.Exists() {
		return nil
	}

	mv := gv.LookupPath(cue.ParsePath("interval_minutes"))
	if mv.Exists() {
		for name, r := range regimeNames {
			rv := mv.LookupPath(cue.ParsePath(name))
			if !rv.Exists() {
				continue
			}
			mins, err := rv.Int64()
			if err != nil || mins < 1 {
				return &CompileError{Field: "guardian.interval_minutes." + name, Message: "interval must be a whole number of minutes, at least 1", Pos: rv.Pos()}
			}
			p.Guardian.Intervals[r] = time.Duration(mins) * time.Minute
		}
	}

	tv := gv.LookupPath(cue.ParsePath("thresholds"))
	if tv.Exists() {
		for name, r := range regimeNames {
			rv := tv.LookupPath(cue.ParsePath(name))
			if !rv.Exists() {
				continue
			}
			ratio, err := rv.Float64()
			if err != nil || ratio <= 0 || ratio > 1 {
				return &CompileError{Field: "guardian.thresholds." + name, Message: "threshold must be a ratio in (0, 1]", Pos: rv.Pos()}
			}
			p.Guardian.Thresholds[r] = ratio
		}
	}

	fv := gv.LookupPath(cue.ParsePath("max_failures"))
	if fv.Exists() {
		n, err := fv.Int64()
		if err != nil || n < 1 {
			return &CompileError{Field: "guardian.max_failures", Message: "max_failures must be a positive integer", Pos: fv.Pos()}
		}
		p.Guardian.MaxConsecutiveFailures = int(n)
	}
	return nil
}

// compileRender parses render: { watchdog_ms, grace_ms }.
func compileRender(v cue.Value, p *Profile) error {
	rv := v.LookupPath(cue.ParsePath("render"))
	if !rv.Exists() {
		return nil
	}

	wv := rv.LookupPath(cue.ParsePath("watchdog_ms"))
	if wv.Exists() {
		ms, err := wv.Int64()
		if err != nil || ms <= 0 {
			return &CompileError{Field: "render.watchdog_ms", Message: "watchdog must be positive milliseconds", Pos: wv.Pos()}
		}
		p.Watchdog = time.Duration(ms) * time.Millisecond
	}

	gv := rv.LookupPath(cue.ParsePath("grace_ms"))
	if gv.Exists() {
		ms, err := gv.Int64()
		if err != nil || ms < 0 {
			return &CompileError{Field: "render.grace_ms", Message: "grace must be non-negative milliseconds", Pos: gv.Pos()}
		}
		p.Grace = time.Duration(ms) * time.Millisecond
	}
	return nil
}

// intField reads an optional integer field, keeping fallback when unset.
func intField(v cue.Value, name string, fallback int) (int, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return fallback, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, &CompileError{Field: name, Message: "must be an integer", Pos: fv.Pos()}
	}
	return int(n), nil
}

var regimeNames = map[string]regime.Regime{
	"systematic":  regime.SystematicRunning,
	"idle":        regime.Idle,
	"walkthrough": regime.WalkthroughRunning,
}
