package fit

import "math"

// ObjectiveFunc scores a parameter vector against observed data.
// Lower is better. Optimizer backends work in float64 regardless of
// the model's precision.
type ObjectiveFunc func(params []float64) float64

// ResidualFunc fills dst with one residual per sample for the given
// parameter vector. Least-squares backends consume this form.
type ResidualFunc func(dst, params []float64)

// Objective builds a sum-of-squared-residuals objective for the model
// over the dataset restricted to the fit range of axis 0. The
// restricted samples are captured once; every evaluation converts the
// candidate parameters to the model's precision and runs one
// vectorized model call.
func Objective[T Float](m *Model[T], ds *Dataset[T]) (ObjectiveFunc, error) {
	sub, err := restrictToModel(m, ds)
	if err != nil {
		return nil, err
	}
	fn := m.Func()
	np := m.NParams()
	return func(params []float64) float64 {
		p := convertParams[T](params, np)
		ys := fn(sub.X, p)
		var sum float64
		for i, y := range ys {
			d := float64(y) - float64(sub.Y[i])
			sum += d * d
		}
		if math.IsNaN(sum) {
			return math.Inf(1)
		}
		return sum
	}, nil
}

// WeightedObjective is Objective with Poisson weighting: each squared
// residual is divided by max(y, 1), the chi-square statistic counting
// data uses.
func WeightedObjective[T Float](m *Model[T], ds *Dataset[T]) (ObjectiveFunc, error) {
	sub, err := restrictToModel(m, ds)
	if err != nil {
		return nil, err
	}
	fn := m.Func()
	np := m.NParams()
	return func(params []float64) float64 {
		p := convertParams[T](params, np)
		ys := fn(sub.X, p)
		var sum float64
		for i, y := range ys {
			d := float64(y) - float64(sub.Y[i])
			w := math.Max(float64(sub.Y[i]), 1)
			sum += d * d / w
		}
		if math.IsNaN(sum) {
			return math.Inf(1)
		}
		return sum
	}, nil
}

// Residuals builds the per-sample residual vector for least-squares
// backends, over the same restricted samples as Objective. The second
// return is the sample count, which fixes the backend's problem size.
func Residuals[T Float](m *Model[T], ds *Dataset[T]) (ResidualFunc, int, error) {
	sub, err := restrictToModel(m, ds)
	if err != nil {
		return nil, 0, err
	}
	fn := m.Func()
	np := m.NParams()
	res := func(dst, params []float64) {
		p := convertParams[T](params, np)
		ys := fn(sub.X, p)
		for i, y := range ys {
			dst[i] = float64(y) - float64(sub.Y[i])
		}
	}
	return res, sub.Len(), nil
}

func restrictToModel[T Float](m *Model[T], ds *Dataset[T]) (*Dataset[T], error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	sub := ds.Restrict(m.FitRanges()[0])
	if sub.Len() == 0 {
		return nil, &InvalidArgumentError{Field: "fit ranges", Reason: "no samples inside the axis 0 range"}
	}
	return sub, nil
}

func convertParams[T Float](params []float64, np int) []T {
	p := make([]T, np)
	for i := 0; i < np && i < len(params); i++ {
		p[i] = T(params[i])
	}
	return p
}
