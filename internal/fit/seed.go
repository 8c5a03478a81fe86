package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Seeding estimates initial parameters from the data when the caller
// left them at the NaN sentinel. Estimates only need to land inside
// the basin of the optimum; the optimizer does the rest.

// GaussianSeed estimates [scale sigma mean] from sample moments: the
// mean and spread are count-weighted, the scale is the sum of counts
// times the sample spacing (peak area).
func GaussianSeed[T Float](ds *Dataset[T]) ([]T, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	var total, wsum float64
	for i := range ds.X {
		y := math.Max(float64(ds.Y[i]), 0)
		total += y
		wsum += y * float64(ds.X[i])
	}
	if total <= 0 {
		return nil, &InvalidArgumentError{Field: "dataset", Reason: "all counts zero, cannot seed a peak"}
	}
	mean := wsum / total

	var varsum float64
	for i := range ds.X {
		y := math.Max(float64(ds.Y[i]), 0)
		d := float64(ds.X[i]) - mean
		varsum += y * d * d
	}
	sigma := math.Sqrt(varsum / total)
	if sigma <= 0 || math.IsNaN(sigma) {
		sigma = spacing(ds)
	}

	scale := total * spacing(ds)
	return []T{T(scale), T(sigma), T(mean)}, nil
}

// PolynomialSeed fits degree+1 coefficients [c0 .. cDegree] by linear
// least squares over a Vandermonde design matrix.
func PolynomialSeed[T Float](ds *Dataset[T], degree int) ([]T, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if degree < 0 {
		return nil, &InvalidArgumentError{Field: "degree", Reason: fmt.Sprintf("cannot be negative, got %d", degree)}
	}
	if ds.Len() < degree+1 {
		return nil, &InvalidArgumentError{
			Field:  "dataset",
			Reason: fmt.Sprintf("need at least %d samples for degree %d, got %d", degree+1, degree, ds.Len()),
		}
	}

	a := vandermonde(ds, degree)
	y := make([]float64, ds.Len())
	for i, v := range ds.Y {
		y[i] = float64(v)
	}
	b := mat.NewVecDense(len(y), y)
	c := mat.NewVecDense(degree+1, nil)

	var qr mat.QR
	qr.Factorize(a)
	if err := qr.SolveVecTo(c, false, b); err != nil {
		return nil, fmt.Errorf("solve least squares: %w", err)
	}

	out := make([]T, degree+1)
	for j := range out {
		out[j] = T(c.AtVec(j))
	}
	return out, nil
}

// LinearSeed estimates [offset slope] by least squares.
func LinearSeed[T Float](ds *Dataset[T]) ([]T, error) {
	return PolynomialSeed(ds, 1)
}

// GaussianPlusLinearSeed estimates [scale sigma mean offset slope] by
// fitting a line through the edge samples first and seeding the
// gaussian from the background-subtracted residue.
func GaussianPlusLinearSeed[T Float](ds *Dataset[T]) ([]T, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	base, err := edgeBaseline(ds)
	if err != nil {
		return nil, err
	}
	offset, slope := base[0], base[1]

	sub := &Dataset[T]{X: make([]T, ds.Len()), Y: make([]T, ds.Len())}
	for i := range ds.X {
		xf := float64(ds.X[i])
		sub.X[i] = ds.X[i]
		sub.Y[i] = T(math.Max(float64(ds.Y[i])-(offset+slope*xf), 0))
	}
	peak, err := GaussianSeed(sub)
	if err != nil {
		return nil, err
	}
	return []T{peak[0], peak[1], peak[2], T(offset), T(slope)}, nil
}

// SeedFor estimates initial parameters for a catalog model by name.
// Unknown names fall back to mid-bound values supplied by the caller.
func SeedFor[T Float](modelName string, ds *Dataset[T]) ([]T, error) {
	switch modelName {
	case "gauss":
		return GaussianSeed(ds)
	case "gauss+linear":
		return GaussianPlusLinearSeed(ds)
	case "linear":
		return LinearSeed(ds)
	case "expdecay":
		return exponentialSeed(ds)
	}
	if deg, ok := polyDegree(modelName); ok {
		return PolynomialSeed(ds, deg)
	}
	return nil, &InvalidArgumentError{Field: "model", Reason: fmt.Sprintf("no seed rule for %q", modelName)}
}

// exponentialSeed estimates [scale tau] from the first sample and the
// log-slope between the first and last positive samples.
func exponentialSeed[T Float](ds *Dataset[T]) ([]T, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	first, last := -1, -1
	for i := range ds.Y {
		if float64(ds.Y[i]) > 0 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || first == last {
		return nil, &InvalidArgumentError{Field: "dataset", Reason: "need two positive samples to seed a decay"}
	}
	dx := float64(ds.X[last]) - float64(ds.X[first])
	dlog := math.Log(float64(ds.Y[last])) - math.Log(float64(ds.Y[first]))
	tau := -dx / dlog
	if tau <= 0 || math.IsInf(tau, 0) || math.IsNaN(tau) {
		tau = math.Abs(dx)
	}
	scale := float64(ds.Y[first]) * math.Exp(float64(ds.X[first])/tau)
	return []T{T(scale), T(tau)}, nil
}

// edgeBaseline fits a line through the outer fifth of the samples on
// each side, where a centered peak contributes least.
func edgeBaseline[T Float](ds *Dataset[T]) ([]float64, error) {
	n := ds.Len()
	edge := n / 5
	if edge < 2 {
		edge = min(2, n)
	}
	sub := &Dataset[T]{}
	for i := 0; i < n; i++ {
		if i < edge || i >= n-edge {
			sub.X = append(sub.X, ds.X[i])
			sub.Y = append(sub.Y, ds.Y[i])
		}
	}
	coef, err := PolynomialSeed(sub, 1)
	if err != nil {
		return nil, err
	}
	return []float64{float64(coef[0]), float64(coef[1])}, nil
}

// spacing returns the mean distance between consecutive x samples, or
// 1 when there is only one sample.
func spacing[T Float](ds *Dataset[T]) float64 {
	if ds.Len() < 2 {
		return 1
	}
	span := math.Abs(float64(ds.X[ds.Len()-1]) - float64(ds.X[0]))
	if span == 0 {
		return 1
	}
	return span / float64(ds.Len()-1)
}

func polyDegree(name string) (int, bool) {
	var d int
	if _, err := fmt.Sscanf(name, "poly%d", &d); err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

func vandermonde[T Float](ds *Dataset[T], degree int) *mat.Dense {
	m := mat.NewDense(ds.Len(), degree+1, nil)
	for i := range ds.X {
		for j, p := 0, 1.0; j <= degree; j, p = j+1, p*float64(ds.X[i]) {
			m.Set(i, j, p)
		}
	}
	return m
}
