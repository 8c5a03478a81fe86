package fit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// The catalog provides the model shapes spectrum fitting reaches for
// most often, pre-named and ready to seed. All catalog models are 1-D.
// The gaussian is area-normalized: its scale parameter is the peak
// area, so a curve scaled by the histogram bin width overlays counts.

func catalogModel[T Float](name string, fn ModelFunc[T], params ...string) *Model[T] {
	m, err := New(fn, 1, len(params))
	if err != nil {
		panic(err) // static arity, cannot fail
	}
	m.SetName(name)
	if err := m.SetParameterNames(params); err != nil {
		panic(err)
	}
	return m
}

// Gaussian returns an area-normalized gaussian peak,
// scale * exp(-(x-mean)^2 / 2 sigma^2) / sqrt(2 pi sigma^2),
// with parameters [scale sigma mean].
func Gaussian[T Float]() *Model[T] {
	return catalogModel("gauss", func(xs, p []T) []T {
		scale, sigma, mean := float64(p[0]), float64(p[1]), float64(p[2])
		norm := scale / math.Sqrt(2*math.Pi*sigma*sigma)
		ys := make([]T, len(xs))
		for i, x := range xs {
			d := (float64(x) - mean) / sigma
			ys[i] = T(norm * math.Exp(-0.5*d*d))
		}
		return ys
	}, "scale", "sigma", "mean")
}

// GaussianPlusLinear returns a gaussian peak on a linear background,
// with parameters [scale sigma mean offset slope].
func GaussianPlusLinear[T Float]() *Model[T] {
	return catalogModel("gauss+linear", func(xs, p []T) []T {
		scale, sigma, mean := float64(p[0]), float64(p[1]), float64(p[2])
		offset, slope := float64(p[3]), float64(p[4])
		norm := scale / math.Sqrt(2*math.Pi*sigma*sigma)
		ys := make([]T, len(xs))
		for i, x := range xs {
			xf := float64(x)
			d := (xf - mean) / sigma
			ys[i] = T(norm*math.Exp(-0.5*d*d) + offset + slope*xf)
		}
		return ys
	}, "scale", "sigma", "mean", "offset", "slope")
}

// ExponentialDecay returns scale * exp(-x/tau) with parameters
// [scale tau].
func ExponentialDecay[T Float]() *Model[T] {
	return catalogModel("expdecay", func(xs, p []T) []T {
		scale, tau := float64(p[0]), float64(p[1])
		ys := make([]T, len(xs))
		for i, x := range xs {
			ys[i] = T(scale * math.Exp(-float64(x)/tau))
		}
		return ys
	}, "scale", "tau")
}

// Linear returns offset + slope*x with parameters [offset slope].
func Linear[T Float]() *Model[T] {
	return catalogModel("linear", func(xs, p []T) []T {
		offset, slope := float64(p[0]), float64(p[1])
		ys := make([]T, len(xs))
		for i, x := range xs {
			ys[i] = T(offset + slope*float64(x))
		}
		return ys
	}, "offset", "slope")
}

// Polynomial returns a polynomial of the given degree with
// coefficients [c0 .. cDegree], c0 the constant term.
func Polynomial[T Float](degree int) (*Model[T], error) {
	if degree < 0 {
		return nil, &InvalidArgumentError{Field: "degree", Reason: fmt.Sprintf("cannot be negative, got %d", degree)}
	}
	names := make([]string, degree+1)
	for i := range names {
		names[i] = "c" + strconv.Itoa(i)
	}
	fn := func(xs, p []T) []T {
		ys := make([]T, len(xs))
		for i, x := range xs {
			acc := 0.0
			for j := len(p) - 1; j >= 0; j-- {
				acc = acc*float64(x) + float64(p[j])
			}
			ys[i] = T(acc)
		}
		return ys
	}
	m, err := New(fn, 1, degree+1)
	if err != nil {
		return nil, err
	}
	m.SetName("poly" + strconv.Itoa(degree))
	if err := m.SetParameterNames(names); err != nil {
		return nil, err
	}
	return m, nil
}

// CatalogNames lists the model names ModelByName accepts. Polynomials
// are addressed as poly<degree>.
func CatalogNames() []string {
	return []string{"gauss", "gauss+linear", "expdecay", "linear", "poly<degree>"}
}

// ModelByName constructs a catalog model from its name. Unknown names
// report the supported set.
func ModelByName[T Float](name string) (*Model[T], error) {
	switch strings.ToLower(name) {
	case "gauss", "gaussian":
		return Gaussian[T](), nil
	case "gauss+linear", "gauss-linear", "gausslinear":
		return GaussianPlusLinear[T](), nil
	case "expdecay", "exp":
		return ExponentialDecay[T](), nil
	case "linear":
		return Linear[T](), nil
	}
	if deg, ok := strings.CutPrefix(strings.ToLower(name), "poly"); ok {
		d, err := strconv.Atoi(deg)
		if err != nil {
			return nil, &InvalidArgumentError{Field: "model", Reason: fmt.Sprintf("bad polynomial degree %q", deg)}
		}
		return Polynomial[T](d)
	}
	return nil, &InvalidArgumentError{
		Field:  "model",
		Reason: fmt.Sprintf("unknown model %q, supported: %s", name, strings.Join(CatalogNames(), ", ")),
	}
}
