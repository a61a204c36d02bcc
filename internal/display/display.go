// Package display is the coordination facade over the live test display.
//
// It owns the composition: regime monitor, update scheduler, fragment
// cache, progressive disclosure, render lock, and the render surface. All
// mutation of the surface funnels through here, under the lock, on the
// single cooperative timeline. Callers hand in validated payloads and the
// display decides when (scheduler) and what (cache, disclosure) actually
// reaches the surface.
package display

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/quenchlabs/quench/internal/fragment"
	"github.com/quenchlabs/quench/internal/regime"
	"github.com/quenchlabs/quench/internal/render"
	"github.com/quenchlabs/quench/internal/results"
	"github.com/quenchlabs/quench/internal/schedule"
	"github.com/quenchlabs/quench/internal/tier"
)

// RegionTestBed is the surface region holding the full test-bed snapshot.
const RegionTestBed = "testbed"

// Option configures a Display.
type Option func(*Display)

// WithRenderer overrides the reference renderer.
func WithRenderer(r render.Renderer) Option {
	return func(d *Display) { d.renderer = r }
}

// WithSurface overrides the render surface.
func WithSurface(s render.Surface) Option {
	return func(d *Display) { d.surface = s }
}

// WithIntervals overrides the per-kind throttle intervals.
func WithIntervals(intervals map[schedule.Kind]time.Duration) Option {
	return func(d *Display) { d.intervals = intervals }
}

// WithCacheConfig overrides the fragment cache limits.
func WithCacheConfig(cfg fragment.Config) Option {
	return func(d *Display) { d.cacheConfig = cfg }
}

// WithWatchdog overrides the render lock watchdog timeout.
func WithWatchdog(watchdog time.Duration) Option {
	return func(d *Display) { d.watchdog = watchdog }
}

// WithGrace overrides the visibility grace period kept after a sweep
// completes, before disclosure reverts to unfiltered.
func WithGrace(grace time.Duration) Option {
	return func(d *Display) { d.grace = grace }
}

// Display coordinates every update that reaches the render surface.
type Display struct {
	monitor  *regime.Monitor
	clock    schedule.Clock
	store    *results.Store
	renderer render.Renderer
	surface  render.Surface

	intervals   map[schedule.Kind]time.Duration
	cacheConfig fragment.Config
	watchdog    time.Duration
	grace       time.Duration

	sched    *schedule.Scheduler
	cache    *fragment.Cache
	progress *tier.Progress
	lock     *render.Lock

	mu         sync.Mutex
	graceTimer schedule.Timer
}

// New assembles a display around the monitor, clock, and result store.
// Options override the stock renderer, surface, intervals, cache limits,
// watchdog, and grace period.
func New(monitor *regime.Monitor, clock schedule.Clock, store *results.Store, opts ...Option) *Display {
	d := &Display{
		monitor:  monitor,
		clock:    clock,
		store:    store,
		renderer: render.NewStyled(),
		surface:  render.NewWriterSurface(os.Stdout),
		intervals: map[schedule.Kind]time.Duration{
			schedule.KindTestBed: time.Second,
			schedule.KindResult:  500 * time.Millisecond,
		},
		watchdog: 10 * time.Second,
		grace:    3 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.progress = tier.NewProgress(monitor)
	d.sched = schedule.New(monitor, clock, d.intervals)
	d.cache = fragment.New(monitor, d.progress, d.cacheConfig)
	d.lock = render.NewLock(clock, d.watchdog)
	return d
}

// Cache exposes the fragment cache for guardian wiring.
func (d *Display) Cache() *fragment.Cache { return d.cache }

// Lock exposes the render lock for guardian wiring.
func (d *Display) Lock() *render.Lock { return d.lock }

// Progress exposes the disclosure state for the suite runners.
func (d *Display) Progress() *tier.Progress { return d.progress }

// ScheduleUpdate validates the payload, persists any result it carries,
// and hands the render operation to the scheduler.
//
// Persistence happens before scheduling: the exported record is complete
// even when the visual update is coalesced away or dropped while busy.
func (d *Display) ScheduleUpdate(ctx context.Context, p Payload) error {
	if p == nil {
		return &Error{Code: CodeInvalidPayload, Message: "nil payload"}
	}
	if err := p.Validate(); err != nil {
		return err
	}

	switch pl := p.(type) {
	case ResultItem:
		r := pl.Result
		if r.Seq == 0 {
			r.Seq = d.store.NextSeq()
		}
		if err := d.store.Write(ctx, r); err != nil {
			return err
		}
		return d.sched.Schedule(schedule.KindResult, func() { d.applyResult(r) })
	case TestBedSnapshot:
		rs := pl.Results
		return d.sched.Schedule(schedule.KindTestBed, func() { d.applyTestBed(rs) })
	default:
		return &Error{Code: CodeInvalidPayload, Message: "unsupported payload type"}
	}
}

// ForceRefresh redraws the test bed from the accumulated session results,
// bypassing the throttle window. The manual resync path.
func (d *Display) ForceRefresh() error {
	return d.sched.Flush(schedule.KindTestBed, func() { d.applyTestBed(nil) })
}

// ActivateProgressive starts tier-by-tier disclosure for the sequence.
func (d *Display) ActivateProgressive(sequence []tier.Tier) {
	d.progress.Activate(sequence)
}

// MarkTierExecuting records the tier entering execution and fires the
// cache's tier-transition hook.
func (d *Display) MarkTierExecuting(t tier.Tier) {
	d.progress.MarkExecuting(t)
	d.cache.EnterTier(t)
}

// MarkTierCompleted records the tier as done. When the whole sequence has
// completed, disclosure stays active for the grace period and then reverts
// to unfiltered, so the final state remains readable before filtering ends.
func (d *Display) MarkTierCompleted(t tier.Tier) {
	d.progress.MarkCompleted(t)
	if !d.progress.Complete() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.graceTimer != nil {
		d.graceTimer.Stop()
	}
	d.graceTimer = d.clock.AfterFunc(d.grace, func() {
		d.progress.Deactivate()
		slog.Debug("disclosure grace period elapsed, reverting to unfiltered")
	})
}

// ResetProgressive clears disclosure state. Unforced resets are refused
// while a walkthrough owns the display.
func (d *Display) ResetProgressive(force bool) {
	d.mu.Lock()
	if d.graceTimer != nil {
		d.graceTimer.Stop()
		d.graceTimer = nil
	}
	d.mu.Unlock()

	d.progress.Reset(force)
}

// TiersToShow returns the tiers currently safe to display.
func (d *Display) TiersToShow() []tier.Tier {
	return d.progress.TiersToShow()
}

// Status is a point-in-time diagnostic snapshot of the display.
type Status struct {
	Regime        string     `json:"regime"`
	Progress      tier.State `json:"progress"`
	CachedEntries int        `json:"cached_entries"`
	Results       int        `json:"results"`
	PendingResult bool       `json:"pending_result"`
	PendingBed    bool       `json:"pending_testbed"`
}

// CurrentStatus assembles the diagnostic snapshot.
func (d *Display) CurrentStatus(ctx context.Context) (Status, error) {
	count, err := d.store.Count(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Regime:        d.monitor.Current().String(),
		Progress:      d.progress.Snapshot(),
		CachedEntries: d.cache.Len(),
		Results:       count,
		PendingResult: d.sched.Pending(schedule.KindResult),
		PendingBed:    d.sched.Pending(schedule.KindTestBed),
	}, nil
}

// Close stops scheduling and cancels the grace timer. The surface is left
// as last drawn.
func (d *Display) Close() {
	d.sched.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.graceTimer != nil {
		d.graceTimer.Stop()
		d.graceTimer = nil
	}
}

// applyResult draws one result item under the render lock. A held lock
// drops the update; a later update or refresh converges the display.
func (d *Display) applyResult(r results.Result) {
	if err := d.lock.Acquire(); err != nil {
		if errors.Is(err, render.ErrLockHeld) {
			slog.Debug("result update dropped: render lock held", "id", r.ID)
			return
		}
		slog.Error("result update failed to acquire render lock", "id", r.ID, "error", err)
		return
	}
	defer d.lock.Release()

	frag := d.fragmentFor(r)
	if err := d.surface.Apply("result/"+r.ID, frag); err != nil {
		slog.Error("surface apply failed", "region", "result/"+r.ID, "error", err)
	}
}

// applyTestBed redraws the whole test bed under the render lock. A nil
// result slice means "from the accumulated session results".
func (d *Display) applyTestBed(rs []results.Result) {
	if rs == nil {
		var err error
		rs, err = d.store.All(context.Background())
		if err != nil {
			slog.Error("test bed redraw failed to load results", "error", err)
			return
		}
	}

	if err := d.lock.Acquire(); err != nil {
		if errors.Is(err, render.ErrLockHeld) {
			slog.Debug("test bed update dropped: render lock held")
			return
		}
		slog.Error("test bed update failed to acquire render lock", "error", err)
		return
	}
	defer d.lock.Release()

	if err := d.surface.Apply(RegionTestBed, d.assembleTestBed(rs)); err != nil {
		slog.Error("surface apply failed", "region", RegionTestBed, "error", err)
	}
}

// assembleTestBed builds the snapshot fragment row by row from the cache.
// Results for tiers not yet disclosed are omitted entirely. A failing row
// is replaced with its error marker; the rest of the snapshot proceeds.
func (d *Display) assembleTestBed(rs []results.Result) string {
	if len(rs) == 0 {
		return render.Placeholder(RegionTestBed)
	}

	shown := d.progress.TiersToShow()
	visible := make(map[string]bool, len(shown))
	for _, t := range shown {
		visible[t.String()] = true
	}

	var b strings.Builder
	for _, r := range rs {
		if r.Tier != "" && !visible[r.Tier] {
			continue
		}
		b.WriteString(d.fragmentFor(r))
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return render.Placeholder(RegionTestBed)
	}
	return b.String()
}

// fragmentFor resolves one result's fragment through the cache, isolating
// renderer failures to the single row.
func (d *Display) fragmentFor(r results.Result) string {
	frag, err := d.cache.Get("result/"+r.ID, func() (string, error) {
		return d.renderer.Result(r)
	})
	if err != nil {
		slog.Warn("fragment render failed", "id", r.ID, "name", r.Name, "error", err)
		return render.ErrorMarker(r.Name, &Error{
			Code: CodeRenderFailure, Message: "fragment render failed", Item: r.ID, Err: err,
		})
	}
	return frag
}
