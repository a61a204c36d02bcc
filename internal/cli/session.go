package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/quenchlabs/quench/internal/display"
	"github.com/quenchlabs/quench/internal/guardian"
	"github.com/quenchlabs/quench/internal/profile"
	"github.com/quenchlabs/quench/internal/regime"
	"github.com/quenchlabs/quench/internal/render"
	"github.com/quenchlabs/quench/internal/results"
	"github.com/quenchlabs/quench/internal/schedule"
	"github.com/quenchlabs/quench/internal/suite"
	"github.com/quenchlabs/quench/internal/testutil"
)

// session is the assembled runtime shared by the run and walkthrough
// commands: regime flags, result store, tuned display, and the memory
// guardian sampling in the background.
type session struct {
	flags   *regime.AtomicFlags
	monitor *regime.Monitor
	store   *results.Store
	display *display.Display
	guard   *guardian.Guardian
	profile *profile.Profile
	clock   schedule.Clock
	tokens  suite.TokenGenerator
}

// sessionOptions configures session assembly.
type sessionOptions struct {
	// Database is the result store path; empty means in-memory.
	Database string

	// Profile is an optional CUE tuning profile path.
	Profile string

	// Surface receives live display output.
	Surface io.Writer

	// RunToken pins the run token for deterministic exports; empty means
	// a fresh UUIDv7 per run.
	RunToken string
}

// openSession assembles the runtime. The guardian is started; Close stops
// it and closes the store.
func openSession(opts sessionOptions) (*session, error) {
	prof := profile.Default()
	if opts.Profile != "" {
		loaded, err := profile.Load(opts.Profile)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load profile", err)
		}
		prof = loaded
		slog.Info("tuning profile loaded", "path", opts.Profile)
	}

	path := opts.Database
	if path == "" {
		path = results.MemoryPath
	}
	store, err := results.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open result store", err)
	}

	flags := regime.NewAtomicFlags()
	monitor := regime.NewMonitor(flags)
	clock := schedule.RealClock()

	surface := opts.Surface
	if surface == nil {
		surface = os.Stdout
	}

	d := display.New(monitor, clock, store,
		display.WithSurface(render.NewWriterSurface(surface)),
		display.WithIntervals(prof.Intervals),
		display.WithCacheConfig(prof.Cache),
		display.WithWatchdog(prof.Watchdog),
		display.WithGrace(prof.Grace),
	)

	guard := guardian.New(monitor, clock, d.Cache(), d.Lock(), guardian.HeapUsage, prof.Guardian)
	guard.Start()

	var tokens suite.TokenGenerator = suite.UUIDTokenGenerator{}
	if opts.RunToken != "" {
		tokens = testutil.NewFixedTokenGenerator(opts.RunToken)
	}

	return &session{
		flags:   flags,
		monitor: monitor,
		store:   store,
		display: d,
		guard:   guard,
		profile: prof,
		clock:   clock,
		tokens:  tokens,
	}, nil
}

// Close tears the session down. Safe to call once.
func (s *session) Close() {
	s.guard.Stop()
	s.display.Close()
	if err := s.store.Close(); err != nil {
		slog.Error("error closing result store", "error", err)
	}
}

// writeExport builds the canonical export and writes it to path.
func (s *session) writeExport(ctx context.Context, path string) error {
	export, err := s.store.BuildExport(ctx)
	if err != nil {
		return fmt.Errorf("build export: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()
	return export.WriteJSON(f)
}
