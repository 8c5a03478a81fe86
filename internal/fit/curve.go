package fit

import (
	"fmt"
	"iter"
	"math"
)

// Default styling hints for curve overlays. Renderers may override
// them; they exist so that initial and fitted curves are told apart
// without any caller-side bookkeeping.
const (
	FittedCurveColor  = "#d62728"
	InitialCurveColor = "#7f7f7f"
)

// CurveConfig controls how a model is sampled into a drawable series.
type CurveConfig struct {
	// Points is the number of evenly spaced samples across the first
	// axis fit range, endpoints included.
	Points int

	// UseInitial selects the initial parameter vector instead of the
	// fitted one.
	UseInitial bool

	// BinWidth scales every sampled model value. Histogram-backed
	// fits pass their bin width here so the curve overlays counts
	// rather than density.
	BinWidth float64
}

// DefaultCurveConfig returns the sampling defaults: 501 points, fitted
// parameters, bin width 1.
func DefaultCurveConfig() CurveConfig {
	return CurveConfig{Points: 501, UseInitial: false, BinWidth: 1}
}

// Series is a lazily sampled curve plus the styling hints a renderer
// needs to label it.
type Series[T Float] struct {
	// Label names the curve, e.g. "gauss (fitted)".
	Label string

	// Color is a suggested line color, distinct for initial vs fitted.
	Color string

	// Points yields (x, y) pairs in ascending x order. The sequence is
	// finite and restartable: each range over it re-samples the model.
	Points iter.Seq2[T, T]
}

// Curve samples the model across the fit range of the first axis and
// returns the samples as a drawable series. Sampling is lazy: the
// model function runs when the sequence is ranged over, once per
// restart. Models with more than one axis are sampled along axis 0
// only; rendering has no meaning for the remaining axes.
//
// Zero-valued Points and BinWidth fall back to the defaults, so the
// zero CurveConfig samples the fitted curve the standard way. The
// chosen parameter vector is captured at call time, so a fit finishing
// between Curve and the consumption of Points does not tear the
// series.
func (m *Model[T]) Curve(cfg CurveConfig) (Series[T], error) {
	if cfg.Points == 0 {
		cfg.Points = 501
	}
	if cfg.BinWidth == 0 {
		cfg.BinWidth = 1
	}
	if cfg.Points < 2 {
		return Series[T]{}, &InvalidArgumentError{Field: "points", Reason: fmt.Sprintf("need at least 2 samples, got %d", cfg.Points)}
	}
	lo, hi := m.ranges[0][0], m.ranges[0][1]
	if math.IsInf(float64(lo), 0) || math.IsInf(float64(hi), 0) {
		return Series[T]{}, &InvalidArgumentError{Field: "fit ranges", Reason: "axis 0 must be finite to sample a curve"}
	}

	params := m.FittedValues()
	variant := "fitted"
	color := FittedCurveColor
	if cfg.UseInitial {
		params = m.InitialValues()
		variant = "initial"
		color = InitialCurveColor
	}

	label := m.name
	if label == "" {
		label = "model"
	}

	fn := m.fn
	n := cfg.Points
	scale := T(cfg.BinWidth)
	step := (float64(hi) - float64(lo)) / float64(n-1)

	points := func(yield func(T, T) bool) {
		xs := make([]T, n)
		for i := 0; i < n; i++ {
			xs[i] = T(float64(lo) + float64(i)*step)
		}
		xs[n-1] = hi // exact endpoint, no accumulated rounding
		ys := fn(xs, params)
		for i := 0; i < n; i++ {
			if !yield(xs[i], scale*ys[i]) {
				return
			}
		}
	}

	return Series[T]{
		Label:  label + " (" + variant + ")",
		Color:  color,
		Points: points,
	}, nil
}
