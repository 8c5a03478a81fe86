package opt

import (
	"context"
	"errors"
	"fmt"

	"github.com/maorshutman/lm"
)

// LevMarAdapter runs Levenberg-Marquardt over a residual problem with
// a numerical Jacobian. It requires Problem.Residuals; scalar-only
// problems belong to the other backends. The library is unconstrained,
// so bounds are applied by clamping the start and the solution.
type LevMarAdapter struct {
	maxIters int
}

// NewLevMar creates a Levenberg-Marquardt adapter.
func NewLevMar(maxIters int) *LevMarAdapter {
	return &LevMarAdapter{maxIters: maxIters}
}

// Run executes the least-squares descent from the problem's start
// point. LM runs are short; cancellation is checked once at the end.
func (l *LevMarAdapter) Run(ctx context.Context, p Problem) ([]float64, float64, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	if p.Residuals == nil || p.Size <= 0 {
		return nil, 0, errors.New("levmar needs a residual problem")
	}

	iters := l.maxIters
	if iters <= 0 {
		iters = 100
	}

	numJac := lm.NumJac{Func: p.Residuals}
	prob := lm.LMProblem{
		Dim:        p.Dim(),
		Size:       p.Size,
		Func:       p.Residuals,
		Jac:        numJac.Jac,
		InitParams: clampToBounds(p.Start, p.Lower, p.Upper),
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	results, err := lm.LM(prob, &lm.Settings{Iterations: iters, ObjectiveTol: 1e-16})
	if err != nil {
		return nil, 0, fmt.Errorf("levmar: %w", err)
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, 0, cerr
	}

	best := clampToBounds(results.X, p.Lower, p.Upper)
	return best, p.Objective(best), nil
}
