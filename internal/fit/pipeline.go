package fit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/cwbudde/peakfit/internal/opt"
)

// FitConfig tunes a fitting run.
type FitConfig struct {
	// Weighted selects the Poisson-weighted objective instead of
	// plain least squares. Least-squares backends ignore it and
	// always minimize the unweighted residual sum.
	Weighted bool

	// Restarts is the number of extra jittered rounds FitMultiStart
	// runs after the seeded one.
	Restarts int

	// Jitter is the relative spread of restart start points.
	Jitter float64

	// Seed drives restart jittering.
	Seed int64

	// Convergence stops restarts early once improvement stalls.
	Convergence ConvergenceConfig

	// OnRound, when set, observes the running best cost after every
	// finished round.
	OnRound func(round int, bestCost float64)
}

// DefaultFitConfig returns the fitting defaults: a single round, 25%
// jitter when restarts are requested, early stopping enabled.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		Jitter:      0.25,
		Seed:        42,
		Convergence: DefaultConvergenceConfig(),
	}
}

// FitResult summarizes a finished fit. The pipeline also stores it as
// the model's backend result.
type FitResult struct {
	BestParams  []float64     `json:"bestParams"`
	BestCost    float64       `json:"bestCost"`
	InitialCost float64       `json:"initialCost"`
	RSquared    float64       `json:"rSquared"`
	Rounds      int           `json:"rounds"`
	Converged   bool          `json:"converged"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Fit seeds any unset initial parameters from the data, runs the
// optimizer once, and writes the fitted parameters plus the result
// into the model.
func Fit[T Float](ctx context.Context, m *Model[T], ds *Dataset[T], optimizer opt.Optimizer, cfg FitConfig) (*FitResult, error) {
	if err := ensureSeeded(m, ds); err != nil {
		return nil, err
	}
	began := time.Now()

	res, err := fitOnce(ctx, m, ds, optimizer, cfg, toFloat64(m.InitialValues()))
	if err != nil {
		return nil, err
	}
	res.Rounds = 1
	res.Elapsed = time.Since(began)

	if err := finishFit(m, ds, res); err != nil {
		return nil, err
	}
	slog.Info("fit complete",
		"model", m.Name(),
		"initial_cost", res.InitialCost,
		"best_cost", res.BestCost,
		"r_squared", res.RSquared,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// FitMultiStart runs Fit's single round and then up to cfg.Restarts
// more from jittered copies of the running best, keeping the lowest
// cost. Early stopping follows cfg.Convergence. A context cancelled
// mid-run stops the rounds and keeps the best fit found so far;
// cancellation before any round completes returns ctx's error.
func FitMultiStart[T Float](ctx context.Context, m *Model[T], ds *Dataset[T], optimizer opt.Optimizer, cfg FitConfig) (*FitResult, error) {
	if err := ensureSeeded(m, ds); err != nil {
		return nil, err
	}
	began := time.Now()
	slog.Info("multi-start fit", "model", m.Name(), "restarts", cfg.Restarts)

	bounds := m.ParameterBounds()
	lower := make([]float64, len(bounds))
	upper := make([]float64, len(bounds))
	for i, b := range bounds {
		lower[i] = float64(b.Lower)
		upper[i] = float64(b.Upper)
	}

	tracker := NewConvergenceTracker(cfg.Convergence)
	rng := rand.New(rand.NewSource(cfg.Seed))
	start := toFloat64(m.InitialValues())

	var best *FitResult
	rounds := 0
	converged := false
	for round := 0; round <= cfg.Restarts; round++ {
		if ctx.Err() != nil {
			break
		}
		s := start
		if round > 0 {
			s = jitterStart(rng, best.BestParams, cfg.Jitter, lower, upper)
		}
		res, err := fitOnce(ctx, m, ds, optimizer, cfg, s)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return nil, err
		}
		rounds++
		if best == nil {
			best = res
		} else if res.BestCost < best.BestCost {
			res.InitialCost = best.InitialCost
			best = res
		}
		if cfg.OnRound != nil {
			cfg.OnRound(round, best.BestCost)
		}
		if tracker.Update(best.BestCost) {
			converged = true
			break
		}
	}
	if best == nil {
		return nil, ctx.Err()
	}

	best.Rounds = rounds
	best.Converged = converged
	best.Elapsed = time.Since(began)
	if err := finishFit(m, ds, best); err != nil {
		return nil, err
	}
	slog.Info("multi-start fit complete",
		"model", m.Name(),
		"rounds", rounds,
		"converged", converged,
		"best_cost", best.BestCost,
		"r_squared", best.RSquared,
		"elapsed", best.Elapsed,
	)
	return best, nil
}

// RSquared computes the coefficient of determination of the parameter
// vector over the samples inside the fit range.
func RSquared[T Float](m *Model[T], ds *Dataset[T], params []float64) (float64, error) {
	sub, err := restrictToModel(m, ds)
	if err != nil {
		return 0, err
	}
	ys := m.Func()(sub.X, convertParams[T](params, m.NParams()))

	var meanY float64
	for _, y := range sub.Y {
		meanY += float64(y)
	}
	meanY /= float64(sub.Len())

	var ssRes, ssTot float64
	for i := range sub.Y {
		r := float64(sub.Y[i]) - float64(ys[i])
		d := float64(sub.Y[i]) - meanY
		ssRes += r * r
		ssTot += d * d
	}
	if ssTot == 0 {
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

// fitOnce runs the optimizer from one start point without touching the
// model's parameter state.
func fitOnce[T Float](ctx context.Context, m *Model[T], ds *Dataset[T], optimizer opt.Optimizer, cfg FitConfig, start []float64) (*FitResult, error) {
	objective, err := buildObjective(m, ds, cfg)
	if err != nil {
		return nil, err
	}
	residuals, size, err := Residuals(m, ds)
	if err != nil {
		return nil, err
	}

	bounds := m.ParameterBounds()
	prob := opt.Problem{
		Objective: objective,
		Residuals: residuals,
		Size:      size,
		Start:     start,
		Lower:     make([]float64, len(bounds)),
		Upper:     make([]float64, len(bounds)),
	}
	for i, b := range bounds {
		prob.Lower[i] = float64(b.Lower)
		prob.Upper[i] = float64(b.Upper)
	}

	initialCost := objective(start)
	best, bestCost, err := optimizer.Run(ctx, prob)
	if err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}
	return &FitResult{
		BestParams:  best,
		BestCost:    bestCost,
		InitialCost: initialCost,
	}, nil
}

func buildObjective[T Float](m *Model[T], ds *Dataset[T], cfg FitConfig) (ObjectiveFunc, error) {
	if cfg.Weighted {
		return WeightedObjective(m, ds)
	}
	return Objective(m, ds)
}

// finishFit writes the winning parameters back into the model,
// computes R squared, and stores the result as the backend result.
func finishFit[T Float](m *Model[T], ds *Dataset[T], res *FitResult) error {
	if err := m.SetFittedParameters(convertParams[T](res.BestParams, m.NParams())); err != nil {
		return err
	}
	r2, err := RSquared(m, ds, res.BestParams)
	if err != nil {
		return err
	}
	res.RSquared = r2
	m.SetBackendResult(res)
	return nil
}

// ensureSeeded fills NaN initial parameters from the data, leaving
// explicitly chosen values alone.
func ensureSeeded[T Float](m *Model[T], ds *Dataset[T]) error {
	initial := m.InitialValues()
	unset := false
	for _, v := range initial {
		if math.IsNaN(float64(v)) {
			unset = true
			break
		}
	}
	if !unset {
		return nil
	}

	seed, err := SeedFor(m.Name(), ds.Restrict(m.FitRanges()[0]))
	if err != nil {
		return fmt.Errorf("seed initial parameters: %w", err)
	}
	if len(seed) != len(initial) {
		return &ShapeMismatchError{Field: "seed parameters", Want: len(initial), Got: len(seed), Axis: -1}
	}
	for i := range initial {
		if math.IsNaN(float64(initial[i])) {
			initial[i] = seed[i]
		}
	}
	return m.SetInitialParameters(initial)
}

func jitterStart(rng *rand.Rand, base []float64, jitter float64, lower, upper []float64) []float64 {
	if jitter <= 0 {
		jitter = 0.25
	}
	out := make([]float64, len(base))
	for i, v := range base {
		d := jitter * math.Max(math.Abs(v), 1)
		x := v + d*(2*rng.Float64()-1)
		out[i] = math.Min(math.Max(x, lower[i]), upper[i])
	}
	return out
}

func toFloat64[T Float](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
