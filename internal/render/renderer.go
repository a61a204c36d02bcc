package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quenchlabs/quench/internal/results"
	"github.com/quenchlabs/quench/internal/tier"
)

// Renderer turns one result into a display fragment. Implementations must
// be pure: deterministic, side-effect free, no access to shared state. The
// coordination layer treats the renderer as an external collaborator and
// isolates its failures per item.
type Renderer interface {
	Result(r results.Result) (string, error)
	Snapshot(rs []results.Result, shown []tier.Tier) (string, error)
}

// Styled is the reference renderer. Styling is lipgloss; everything else is
// plain string assembly.
type Styled struct {
	pass   lipgloss.Style
	fail   lipgloss.Style
	errs   lipgloss.Style
	badge  lipgloss.Style
	header lipgloss.Style
}

// NewStyled creates the reference renderer.
func NewStyled() *Styled {
	return &Styled{
		pass:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		fail:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		errs:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		badge:  lipgloss.NewStyle().Bold(true),
		header: lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

// Result renders one result row.
func (s *Styled) Result(r results.Result) (string, error) {
	if r.Name == "" {
		return "", fmt.Errorf("render result %s: empty name", r.ID)
	}

	status := string(r.Status)
	switch r.Status {
	case results.StatusPass:
		status = s.pass.Render(status)
	case results.StatusFail:
		status = s.fail.Render(status)
	case results.StatusError:
		status = s.errs.Render(status)
	}

	var b strings.Builder
	if r.Tier != "" {
		b.WriteString(s.badge.Render("[" + r.Tier + "]"))
		b.WriteString(" ")
	}
	b.WriteString(r.Name)
	b.WriteString("  ")
	b.WriteString(status)
	if r.DurationMs > 0 {
		fmt.Fprintf(&b, "  %dms", r.DurationMs)
	}
	if r.Detail != "" {
		b.WriteString("  ")
		b.WriteString(r.Detail)
	}
	return b.String(), nil
}

// Snapshot renders the whole test bed, filtered to the tiers that are safe
// to show: sweep results for hidden tiers are omitted entirely rather than
// shown partial.
func (s *Styled) Snapshot(rs []results.Result, shown []tier.Tier) (string, error) {
	visible := make(map[string]bool, len(shown))
	for _, t := range shown {
		visible[t.String()] = true
	}

	var b strings.Builder
	b.WriteString(s.header.Render("test bed"))
	b.WriteString("\n")
	for _, r := range rs {
		if r.Tier != "" && !visible[r.Tier] {
			continue
		}
		row, err := s.Result(r)
		if err != nil {
			return "", err
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// ErrorMarker is the inline fragment substituted for an item whose render
// failed. Visible but scoped: the rest of the display proceeds.
func ErrorMarker(name string, err error) string {
	if name == "" {
		name = "item"
	}
	return fmt.Sprintf("!! render failed: %s (%v)", name, err)
}

// Placeholder is the fragment shown when no payload is available yet.
func Placeholder(region string) string {
	return fmt.Sprintf("-- no data for %s --", region)
}
