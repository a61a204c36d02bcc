package suite

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quenchlabs/quench/internal/display"
	"github.com/quenchlabs/quench/internal/regime"
	"github.com/quenchlabs/quench/internal/results"
	"github.com/quenchlabs/quench/internal/schedule"
)

// Script defines a scripted walkthrough: a named sequence of workflow
// steps with declared outcomes, loaded from YAML.
type Script struct {
	// Name uniquely identifies the walkthrough.
	Name string `yaml:"name"`

	// Description explains what the walkthrough demonstrates.
	Description string `yaml:"description"`

	// Steps is the ordered workflow. Each step becomes one result item.
	Steps []Step `yaml:"steps"`

	// RunToken optionally fixes the run token for deterministic exports.
	// If empty, the runner's token generator is used.
	RunToken string `yaml:"run_token,omitempty"`
}

// Step is one workflow step of a walkthrough script.
type Step struct {
	// Name identifies the step within the script.
	Name string `yaml:"name"`

	// Status is the declared outcome: pass, fail, or error.
	// Defaults to pass.
	Status string `yaml:"status,omitempty"`

	// Detail is free-form context shown alongside the result.
	Detail string `yaml:"detail,omitempty"`

	// DurationMs is the step's declared duration.
	DurationMs int64 `yaml:"duration_ms,omitempty"`
}

// LoadScript reads and parses a walkthrough script. Unknown YAML fields
// are rejected, so a typoed key fails loudly instead of being ignored.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}

	if err := validateScript(&script); err != nil {
		return nil, fmt.Errorf("invalid script %s: %w", path, err)
	}
	return &script, nil
}

// validateScript checks required fields and declared statuses.
func validateScript(s *Script) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if seen[step.Name] {
			return fmt.Errorf("step %d: duplicate name %q", i, step.Name)
		}
		seen[step.Name] = true
		if step.Status != "" && !results.Status(step.Status).Valid() {
			return fmt.Errorf("step %d (%s): invalid status %q", i, step.Name, step.Status)
		}
	}
	return nil
}

// Walkthrough executes scripts under the walkthrough regime flag. The
// protected-workflow semantics (roomier cache, protected disclosure reset,
// no sweep-tier cache bypass) follow from the flag alone; the runner just
// raises it around the steps.
type Walkthrough struct {
	display *display.Display
	flags   *regime.AtomicFlags
	clock   schedule.Clock
	tokens  TokenGenerator
}

// NewWalkthrough creates a runner bound to the display and its regime
// flags.
func NewWalkthrough(d *display.Display, flags *regime.AtomicFlags, clock schedule.Clock, tokens TokenGenerator) *Walkthrough {
	return &Walkthrough{display: d, flags: flags, clock: clock, tokens: tokens}
}

// Run executes the script step by step, pushing one result per step, and
// returns the run report. Steps do not abort the run; only context
// cancellation and scheduling failures do.
func (w *Walkthrough) Run(ctx context.Context, script *Script) (*Report, error) {
	if err := validateScript(script); err != nil {
		return nil, err
	}

	token := script.RunToken
	if token == "" {
		token = w.tokens.Generate()
	}
	report := &Report{RunToken: token}

	w.flags.SetWalkthroughActive(true)
	defer w.flags.SetWalkthroughActive(false)

	slog.Info("walkthrough started", "script", script.Name, "run_token", token, "steps", len(script.Steps))

	for _, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		status := results.Status(step.Status)
		if step.Status == "" {
			status = results.StatusPass
		}
		r := results.Result{
			ID:         token + "/" + step.Name,
			RunToken:   token,
			Suite:      results.SuiteWalkthrough,
			Name:       step.Name,
			Status:     status,
			DurationMs: step.DurationMs,
			Detail:     step.Detail,
		}
		if err := w.display.ScheduleUpdate(ctx, display.ResultItem{Result: r}); err != nil {
			return report, err
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
	}

	if err := w.display.ForceRefresh(); err != nil {
		slog.Warn("final refresh failed", "script", script.Name, "error", err)
	}

	slog.Info("walkthrough finished",
		"script", script.Name,
		"run_token", token,
		"total", report.Total,
		"passed", report.Passed,
		"failed", report.Failed,
	)
	return report, nil
}
