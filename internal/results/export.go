package results

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Export is the serialized session snapshot. Field order is fixed by the
// struct and results are ordered by seq, so the same session always
// produces byte-identical output - goldens depend on this.
type Export struct {
	RunToken string   `json:"run_token,omitempty"`
	Total    int      `json:"total"`
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Errored  int      `json:"errored"`
	Results  []Result `json:"results"`
}

// BuildExport assembles the export snapshot from the store.
func (s *Store) BuildExport(ctx context.Context) (*Export, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("build export: %w", err)
	}

	exp := &Export{Results: all, Total: len(all)}
	for _, r := range all {
		if exp.RunToken == "" {
			exp.RunToken = r.RunToken
		}
		switch r.Status {
		case StatusPass:
			exp.Passed++
		case StatusFail:
			exp.Failed++
		case StatusError:
			exp.Errored++
		}
	}
	if exp.Results == nil {
		exp.Results = []Result{}
	}
	return exp, nil
}

// WriteJSON writes the export as indented JSON.
func (e *Export) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}
