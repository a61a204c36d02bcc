package render_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchlabs/quench/internal/render"
	"github.com/quenchlabs/quench/internal/results"
	"github.com/quenchlabs/quench/internal/tier"
)

func TestStyled_Result(t *testing.T) {
	r := render.NewStyled()

	row, err := r.Result(results.Result{
		ID: "r1", Name: "add small ints", Status: results.StatusPass, DurationMs: 12,
	})
	require.NoError(t, err)
	assert.Contains(t, row, "add small ints")
	assert.Contains(t, row, "pass")
	assert.Contains(t, row, "12ms")
}

func TestStyled_ResultWithTierBadge(t *testing.T) {
	r := render.NewStyled()

	row, err := r.Result(results.Result{
		ID: "r1", Name: "quantization sweep", Tier: "Q4",
		Status: results.StatusFail, Detail: "drift above bound",
	})
	require.NoError(t, err)
	assert.Contains(t, row, "[Q4]")
	assert.Contains(t, row, "drift above bound")
}

func TestStyled_ResultEmptyNameRejected(t *testing.T) {
	r := render.NewStyled()
	_, err := r.Result(results.Result{ID: "r1", Status: results.StatusPass})
	assert.Error(t, err)
}

func TestStyled_SnapshotFiltersHiddenTiers(t *testing.T) {
	r := render.NewStyled()

	rs := []results.Result{
		{ID: "a", Name: "plain case", Status: results.StatusPass},
		{ID: "q1", Name: "sweep", Tier: "Q1", Status: results.StatusPass},
		{ID: "q8", Name: "sweep", Tier: "Q8", Status: results.StatusPass},
	}

	out, err := r.Snapshot(rs, []tier.Tier{tier.Q1})
	require.NoError(t, err)
	assert.Contains(t, out, "plain case", "untiered results always show")
	assert.Contains(t, out, "[Q1]")
	assert.NotContains(t, out, "[Q8]", "hidden tier omitted entirely")
}

func TestStyled_SnapshotDeterministic(t *testing.T) {
	r := render.NewStyled()
	rs := []results.Result{{ID: "a", Name: "case", Status: results.StatusPass}}

	first, err := r.Snapshot(rs, tier.Canonical)
	require.NoError(t, err)
	second, err := r.Snapshot(rs, tier.Canonical)
	require.NoError(t, err)
	assert.Equal(t, first, second, "renderer must be pure")
}

func TestErrorMarker(t *testing.T) {
	m := render.ErrorMarker("flaky case", errors.New("boom"))
	assert.Contains(t, m, "flaky case")
	assert.Contains(t, m, "boom")

	m = render.ErrorMarker("", errors.New("boom"))
	assert.Contains(t, m, "item")
}

func TestWriterSurface(t *testing.T) {
	var buf bytes.Buffer
	s := render.NewWriterSurface(&buf)

	require.NoError(t, s.Apply("results", "row one"))
	assert.Contains(t, buf.String(), "row one")

	got, ok := s.Region("results")
	assert.True(t, ok)
	assert.Equal(t, "row one", got)

	require.NoError(t, s.Reset())
	_, ok = s.Region("results")
	assert.False(t, ok)
}
