package suite

import (
	"context"
	"math"
	"sort"

	"github.com/quenchlabs/quench/internal/tier"
)

// benchVector is the fixed workload the built-in sweep quantizes. Values
// span the unit interval unevenly so rounding error differs per tier.
var benchVector = []float64{
	0.0371, 0.1250, 0.2819, 0.3333, 0.4096,
	0.5001, 0.6180, 0.7071, 0.8413, 0.9772,
}

// Builtin returns the stock bench cases: two tierless sanity checks plus
// the three-tier quantization sweep. Used by the run command when no
// external suite is wired in.
func Builtin() []Case {
	return []Case{
		{Name: "vector-sorted-stable", Run: runVectorSorted},
		{Name: "vector-bounds", Run: runVectorBounds},
		sweepCase("quantize-1bit", tier.Q1, 1),
		sweepCase("quantize-4bit", tier.Q4, 4),
		sweepCase("quantize-8bit", tier.Q8, 8),
	}
}

func runVectorBounds(ctx context.Context) error {
	for i, x := range benchVector {
		if x < 0 || x > 1 {
			return Fail("value %d (%.4f) outside unit interval", i, x)
		}
	}
	return nil
}

func runVectorSorted(ctx context.Context) error {
	if !sort.Float64sAreSorted(benchVector) {
		return Fail("bench vector is not sorted ascending")
	}
	return nil
}

// quantize rounds x in [0,1] onto a grid of 1<<bits levels and returns
// the reconstructed value.
func quantize(x float64, bits int) float64 {
	levels := float64(int(1)<<bits) - 1
	return math.Round(x*levels) / levels
}

// maxQuantError is the worst-case reconstruction error for a bit width:
// half a grid step.
func maxQuantError(bits int) float64 {
	return 0.5 / (float64(int(1)<<bits) - 1)
}

// sweepCase builds one tier of the quantization sweep: quantize the bench
// vector at the tier's bit width and check every value stays within the
// worst-case bound.
func sweepCase(name string, t tier.Tier, bits int) Case {
	return Case{
		Name: name,
		Tier: t,
		Run: func(ctx context.Context) error {
			bound := maxQuantError(bits)
			for i, x := range benchVector {
				got := quantize(x, bits)
				if diff := math.Abs(got - x); diff > bound {
					return Fail("value %d: error %.6f exceeds bound %.6f", i, diff, bound)
				}
			}
			return nil
		},
	}
}
