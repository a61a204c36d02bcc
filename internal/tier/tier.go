// Package tier models the ordered quantization tiers of the sweep test and
// the progressive disclosure machine that decides which tier results are
// safe to show while the sweep is still running.
package tier

import "fmt"

// Tier is one quantization level of the sweep test.
// Tiers are totally ordered: Q1 < Q4 < Q8.
type Tier int

const (
	// None means no tier. Used for the executing/completed slots when the
	// machine has nothing in flight.
	None Tier = iota
	// Q1 is the cheapest tier; it completes first.
	Q1
	// Q4 is the mid tier.
	Q4
	// Q8 is the highest-cost tier, orders of magnitude slower than Q1.
	Q8
)

// Canonical is the full tier sequence in ascending order.
// Callers must treat it as read-only.
var Canonical = []Tier{Q1, Q4, Q8}

// String returns the tier label used in logs, status output, and exports.
func (t Tier) String() string {
	switch t {
	case None:
		return "none"
	case Q1:
		return "Q1"
	case Q4:
		return "Q4"
	case Q8:
		return "Q8"
	default:
		return "invalid"
	}
}

// Parse maps a tier label back to its Tier. Labels are case-sensitive,
// matching the canonical "Q1"/"Q4"/"Q8" spelling used in suite definitions.
func Parse(s string) (Tier, error) {
	switch s {
	case "Q1":
		return Q1, nil
	case "Q4":
		return Q4, nil
	case "Q8":
		return Q8, nil
	default:
		return None, fmt.Errorf("unknown tier %q (want Q1, Q4, or Q8)", s)
	}
}

// Valid reports whether t is one of the canonical tiers.
func (t Tier) Valid() bool {
	return t == Q1 || t == Q4 || t == Q8
}
