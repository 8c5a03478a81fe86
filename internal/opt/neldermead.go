package opt

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// NelderMeadAdapter runs gonum's derivative-free downhill simplex.
// Box bounds are enforced by an infinite penalty outside the box; the
// simplex contracts away from penalized vertices.
type NelderMeadAdapter struct {
	maxIters int
}

// NewNelderMead creates a Nelder-Mead adapter. Non-positive maxIters
// leaves gonum's own convergence checks in charge.
func NewNelderMead(maxIters int) *NelderMeadAdapter {
	return &NelderMeadAdapter{maxIters: maxIters}
}

// Run executes the simplex search from the problem's start point.
func (n *NelderMeadAdapter) Run(ctx context.Context, p Problem) ([]float64, float64, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}

	eval := func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		for i := range x {
			if x[i] < p.Lower[i] || x[i] > p.Upper[i] {
				return math.Inf(1)
			}
		}
		return p.Objective(x)
	}

	settings := &optimize.Settings{}
	if n.maxIters > 0 {
		settings.MajorIterations = n.maxIters
	}
	start := clampToBounds(p.Start, p.Lower, p.Upper)

	result, err := optimize.Minimize(optimize.Problem{Func: eval}, start, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, 0, fmt.Errorf("nelder-mead: %w", err)
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, 0, cerr
	}

	return result.X, p.Objective(result.X), nil
}
