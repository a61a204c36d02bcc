// Package suite contains the two display producers: the systematic bench
// suite and the scripted walkthrough. Both own one regime flag for the
// duration of a run and feed results to the display coordinator; neither
// touches the render surface directly.
package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quenchlabs/quench/internal/display"
	"github.com/quenchlabs/quench/internal/regime"
	"github.com/quenchlabs/quench/internal/results"
	"github.com/quenchlabs/quench/internal/schedule"
	"github.com/quenchlabs/quench/internal/tier"
)

// CaseFailure marks a case outcome as a test failure rather than an
// infrastructure error. Returned from a case body via Fail.
type CaseFailure struct {
	Detail string
}

// Error implements the error interface.
func (f *CaseFailure) Error() string { return f.Detail }

// Fail returns the error a case body uses to report an assertion failure.
// Any other non-nil error from a case is recorded as an error outcome.
func Fail(format string, args ...any) error {
	return &CaseFailure{Detail: fmt.Sprintf(format, args...)}
}

// Case is one registered systematic test case. Cases with a tier belong to
// the quantization sweep and run in canonical tier order; tierless cases
// run first.
type Case struct {
	Name string
	Tier tier.Tier
	Run  func(ctx context.Context) error
}

// Report summarizes one suite run.
type Report struct {
	RunToken string `json:"run_token"`
	Total    int    `json:"total"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	Errored  int    `json:"errored"`
}

// Systematic runs registered cases under the systematic regime flag.
//
// While a case body executes the trials flag is raised, which makes the
// display refuse updates; the case's own result is scheduled after the
// flag drops, so it is persisted and eventually drawn.
type Systematic struct {
	display *display.Display
	flags   *regime.AtomicFlags
	clock   schedule.Clock
	tokens  TokenGenerator
	cases   []Case
	names   map[string]bool
}

// NewSystematic creates an empty suite bound to the display and its
// regime flags.
func NewSystematic(d *display.Display, flags *regime.AtomicFlags, clock schedule.Clock, tokens TokenGenerator) *Systematic {
	return &Systematic{
		display: d,
		flags:   flags,
		clock:   clock,
		tokens:  tokens,
		names:   make(map[string]bool),
	}
}

// Register adds a case. Names must be unique within the suite; a tiered
// case must name a valid tier.
func (s *Systematic) Register(c Case) error {
	if c.Name == "" {
		return errors.New("register case: empty name")
	}
	if c.Run == nil {
		return fmt.Errorf("register case %s: nil body", c.Name)
	}
	if c.Tier != tier.None && !c.Tier.Valid() {
		return fmt.Errorf("register case %s: invalid tier", c.Name)
	}
	if s.names[c.Name] {
		return fmt.Errorf("register case %s: duplicate name", c.Name)
	}
	s.names[c.Name] = true
	s.cases = append(s.cases, c)
	return nil
}

// Run executes every registered case and returns the run report.
//
// Tierless cases run first in registration order. Tiered cases form the
// quantization sweep: disclosure is activated over the tiers in use, each
// tier is marked executing before its cases and completed after, and the
// display reveals tiers strictly in that order.
func (s *Systematic) Run(ctx context.Context) (*Report, error) {
	if len(s.cases) == 0 {
		return nil, errors.New("systematic run: no cases registered")
	}

	token := s.tokens.Generate()
	report := &Report{RunToken: token}

	s.flags.SetSystematicRunning(true)
	defer s.flags.SetSystematicRunning(false)

	slog.Info("systematic run started", "run_token", token, "cases", len(s.cases))

	for _, c := range s.cases {
		if c.Tier != tier.None {
			continue
		}
		if err := s.runCase(ctx, token, c, report); err != nil {
			return report, err
		}
	}

	sweep := s.sweepTiers()
	if len(sweep) > 0 {
		s.display.ActivateProgressive(sweep)
		for _, t := range sweep {
			s.display.MarkTierExecuting(t)
			for _, c := range s.cases {
				if c.Tier != t {
					continue
				}
				if err := s.runCase(ctx, token, c, report); err != nil {
					return report, err
				}
			}
			s.display.MarkTierCompleted(t)
		}
	}

	if err := s.display.ForceRefresh(); err != nil {
		slog.Warn("final refresh failed", "error", err)
	}

	slog.Info("systematic run finished",
		"run_token", token,
		"total", report.Total,
		"passed", report.Passed,
		"failed", report.Failed,
		"errored", report.Errored,
	)
	return report, nil
}

// runCase executes one case body under the trials flag, schedules its
// result once the display is accepting updates again, and tallies the
// outcome. Only context cancellation and scheduling failures abort the
// run; case outcomes do not.
func (s *Systematic) runCase(ctx context.Context, token string, c Case, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	started := s.clock.Now()
	s.flags.SetTrialsExecuting(true)
	caseErr := c.Run(ctx)
	s.flags.SetTrialsExecuting(false)
	elapsed := s.clock.Now().Sub(started)

	status := outcomeOf(caseErr)
	r := results.Result{
		ID:         token + "/" + c.Name,
		RunToken:   token,
		Suite:      results.SuiteSystematic,
		Name:       c.Name,
		Status:     status,
		DurationMs: elapsed.Milliseconds(),
	}
	if c.Tier != tier.None {
		r.Tier = c.Tier.String()
	}
	if caseErr != nil {
		r.Detail = caseErr.Error()
	}

	if err := s.display.ScheduleUpdate(ctx, display.ResultItem{Result: r}); err != nil {
		return err
	}

	report.Total++
	switch status {
	case results.StatusPass:
		report.Passed++
	case results.StatusFail:
		report.Failed++
	default:
		report.Errored++
	}
	return nil
}

// sweepTiers returns the tiers that have registered cases, in canonical
// order.
func (s *Systematic) sweepTiers() []tier.Tier {
	used := make(map[tier.Tier]bool)
	for _, c := range s.cases {
		if c.Tier != tier.None {
			used[c.Tier] = true
		}
	}
	var out []tier.Tier
	for _, t := range tier.Canonical {
		if used[t] {
			out = append(out, t)
		}
	}
	return out
}

func outcomeOf(err error) results.Status {
	if err == nil {
		return results.StatusPass
	}
	var cf *CaseFailure
	if errors.As(err, &cf) {
		return results.StatusFail
	}
	return results.StatusError
}
