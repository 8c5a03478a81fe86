package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external mayfly swarm optimizer to conform
// to our Optimizer interface. The library supports only one scalar
// bound pair shared by every dimension, so the adapter optimizes over
// the unit cube and rescales inside the objective, which gives each
// dimension its own box.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a mayfly optimizer adapter. Non-positive maxIters
// or popSize fall back to the library defaults.
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the mayfly optimization. Cancellation is observed
// between objective evaluations: a cancelled context poisons the
// remaining evaluations and the run reports ctx's error when the
// swarm loop winds down.
func (m *MayflyAdapter) Run(ctx context.Context, p Problem) ([]float64, float64, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}

	lower, upper := searchBox(p)
	dim := p.Dim()
	denorm := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := range x {
			x[i] = lower[i] + u[i]*(upper[i]-lower[i])
		}
		return x
	}

	config := mayfly.NewDefaultConfig()
	config.ProblemSize = dim
	config.LowerBound = 0
	config.UpperBound = 1
	if m.maxIters > 0 {
		config.MaxIterations = m.maxIters
	}
	if m.popSize > 0 {
		config.NPop = m.popSize
	}
	config.Rand = rand.New(rand.NewSource(m.seed))
	config.ObjectiveFunc = func(u []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		return p.Objective(denorm(u))
	}

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, 0, fmt.Errorf("mayfly: %w", err)
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, 0, cerr
	}

	best := denorm(result.GlobalBest.Position)
	return best, p.Objective(best), nil
}

// searchBox returns finite per-dimension bounds. Population methods
// sample their initial swarm uniformly over the box, so effectively
// unbounded defaults collapse to a window around the start point.
func searchBox(p Problem) (lower, upper []float64) {
	const maxSpan = 1e12
	lower = make([]float64, len(p.Start))
	upper = make([]float64, len(p.Start))
	for i := range p.Start {
		lo, hi := p.Lower[i], p.Upper[i]
		if math.IsInf(lo, -1) || math.IsInf(hi, 1) || hi-lo > maxSpan {
			w := 10 * math.Max(math.Abs(p.Start[i]), 1)
			lo = math.Max(lo, p.Start[i]-w)
			hi = math.Min(hi, p.Start[i]+w)
		}
		lower[i], upper[i] = lo, hi
	}
	return lower, upper
}
