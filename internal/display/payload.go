package display

import (
	"github.com/quenchlabs/quench/internal/results"
	"github.com/quenchlabs/quench/internal/schedule"
)

// Payload is the tagged update payload. Each update kind carries exactly
// one payload shape; validation happens once, at the scheduler boundary,
// so everything past it can trust the data.
type Payload interface {
	// Kind binds the payload to its throttle window.
	Kind() schedule.Kind

	// Validate checks the payload's schema.
	Validate() error
}

// ResultItem delivers one new result to the display.
type ResultItem struct {
	Result results.Result
}

// Kind implements Payload.
func (ResultItem) Kind() schedule.Kind { return schedule.KindResult }

// Validate implements Payload.
func (p ResultItem) Validate() error {
	if p.Result.ID == "" {
		return &Error{Code: CodeInvalidPayload, Message: "result item missing id"}
	}
	if p.Result.Name == "" {
		return &Error{Code: CodeInvalidPayload, Message: "result item missing name", Item: p.Result.ID}
	}
	if !p.Result.Status.Valid() {
		return &Error{Code: CodeInvalidPayload, Message: "result item has invalid status", Item: p.Result.ID}
	}
	if !results.ValidSuite(p.Result.Suite) {
		return &Error{Code: CodeInvalidPayload, Message: "result item has invalid suite", Item: p.Result.ID}
	}
	return nil
}

// TestBedSnapshot requests a redraw of the whole test bed. An empty
// snapshot means "redraw from the accumulated session results".
type TestBedSnapshot struct {
	Results []results.Result
}

// Kind implements Payload.
func (TestBedSnapshot) Kind() schedule.Kind { return schedule.KindTestBed }

// Validate implements Payload.
func (p TestBedSnapshot) Validate() error {
	for _, r := range p.Results {
		if r.ID == "" {
			return &Error{Code: CodeInvalidPayload, Message: "snapshot contains a result without id"}
		}
	}
	return nil
}
