package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Problem is one minimization task: a scalar objective over a boxed
// parameter space, plus, for least-squares backends, the residual
// vector the objective sums.
type Problem struct {
	// Objective scores a parameter vector; lower is better.
	Objective func(params []float64) float64

	// Residuals fills dst with one residual per sample. Nil for
	// backends that only consume the scalar objective.
	Residuals func(dst, params []float64)

	// Size is the residual count, zero when Residuals is nil.
	Size int

	// Start is the initial parameter vector; its length fixes the
	// problem dimension.
	Start []float64

	// Lower and Upper bound each parameter, one entry per dimension.
	Lower []float64
	Upper []float64
}

// Dim returns the parameter-space dimension.
func (p *Problem) Dim() int { return len(p.Start) }

// Validate reports whether the problem is runnable.
func (p *Problem) Validate() error {
	if p.Objective == nil {
		return errors.New("problem has no objective")
	}
	if len(p.Start) == 0 {
		return errors.New("problem has no start point")
	}
	if len(p.Lower) != len(p.Start) || len(p.Upper) != len(p.Start) {
		return fmt.Errorf("bounds lengths %d,%d do not match dimension %d",
			len(p.Lower), len(p.Upper), len(p.Start))
	}
	return nil
}

// Optimizer is one minimization backend.
type Optimizer interface {
	// Run minimizes the problem and returns the best parameters with
	// their objective value. Implementations observe ctx between
	// objective evaluations; a run cancelled before finishing returns
	// ctx's error.
	Run(ctx context.Context, p Problem) (best []float64, cost float64, err error)
}

func clampToBounds(x, lower, upper []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Min(math.Max(x[i], lower[i]), upper[i])
	}
	return out
}
