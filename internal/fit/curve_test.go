package fit

import (
	"errors"
	"testing"
)

func fittedGauss(t *testing.T) *Model[float64] {
	t.Helper()
	m := Gaussian[float64]()
	if err := m.SetFitRanges([][2]float64{{0, 10}}); err != nil {
		t.Fatalf("SetFitRanges failed: %v", err)
	}
	if err := m.SetInitialParameters([]float64{10, 2, 3}); err != nil {
		t.Fatalf("SetInitialParameters failed: %v", err)
	}
	if err := m.SetFittedParameters([]float64{30, 1.2, 5}); err != nil {
		t.Fatalf("SetFittedParameters failed: %v", err)
	}
	return m
}

func collectSeries(s Series[float64]) (xs, ys []float64) {
	for x, y := range s.Points {
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}

func TestCurve_Defaults(t *testing.T) {
	m := fittedGauss(t)

	// The zero config samples the fitted curve the standard way.
	s, err := m.Curve(CurveConfig{})
	if err != nil {
		t.Fatalf("Curve failed: %v", err)
	}

	if s.Label != "gauss (fitted)" {
		t.Errorf("Expected label 'gauss (fitted)', got %q", s.Label)
	}
	if s.Color != FittedCurveColor {
		t.Errorf("Expected fitted color, got %q", s.Color)
	}

	xs, ys := collectSeries(s)
	if len(xs) != 501 {
		t.Fatalf("Expected 501 samples, got %d", len(xs))
	}
	if xs[0] != 0 || xs[len(xs)-1] != 10 {
		t.Errorf("Expected the exact range endpoints, got [%f, %f]", xs[0], xs[len(xs)-1])
	}

	// Spot-check against a direct evaluation.
	want := m.Func()([]float64{xs[250]}, []float64{30, 1.2, 5})[0]
	if ys[250] != want {
		t.Errorf("Sample 250: expected %f, got %f", want, ys[250])
	}
}

func TestCurve_InitialVariant(t *testing.T) {
	m := fittedGauss(t)

	s, err := m.Curve(CurveConfig{Points: 11, UseInitial: true})
	if err != nil {
		t.Fatalf("Curve failed: %v", err)
	}

	if s.Label != "gauss (initial)" {
		t.Errorf("Expected label 'gauss (initial)', got %q", s.Label)
	}
	if s.Color != InitialCurveColor {
		t.Errorf("Expected initial color, got %q", s.Color)
	}

	xs, ys := collectSeries(s)
	want := m.Func()([]float64{xs[5]}, []float64{10, 2, 3})[0]
	if ys[5] != want {
		t.Errorf("Expected the initial parameters to drive the curve: want %f, got %f", want, ys[5])
	}
}

func TestCurve_BinWidthScaling(t *testing.T) {
	m := fittedGauss(t)

	plain, err := m.Curve(CurveConfig{Points: 11})
	if err != nil {
		t.Fatalf("Curve failed: %v", err)
	}
	scaled, err := m.Curve(CurveConfig{Points: 11, BinWidth: 2})
	if err != nil {
		t.Fatalf("Curve failed: %v", err)
	}

	_, ys := collectSeries(plain)
	_, ys2 := collectSeries(scaled)
	for i := range ys {
		if ys2[i] != 2*ys[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, 2*ys[i], ys2[i])
		}
	}
}

func TestCurve_Restartable(t *testing.T) {
	m := fittedGauss(t)

	s, err := m.Curve(CurveConfig{Points: 21})
	if err != nil {
		t.Fatalf("Curve failed: %v", err)
	}

	xs1, ys1 := collectSeries(s)
	xs2, ys2 := collectSeries(s)
	if len(xs1) != len(xs2) {
		t.Fatalf("Restarted iteration yielded %d samples, want %d", len(xs2), len(xs1))
	}
	for i := range xs1 {
		if xs1[i] != xs2[i] || ys1[i] != ys2[i] {
			t.Errorf("Sample %d differs between iterations", i)
		}
	}
}

func TestCurve_EarlyBreak(t *testing.T) {
	m := fittedGauss(t)

	s, err := m.Curve(CurveConfig{Points: 100})
	if err != nil {
		t.Fatalf("Curve failed: %v", err)
	}

	count := 0
	for range s.Points {
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Errorf("Expected to stop after 3 samples, got %d", count)
	}
}

func TestCurve_CapturesParamsAtCallTime(t *testing.T) {
	m := fittedGauss(t)

	s, err := m.Curve(CurveConfig{Points: 11})
	if err != nil {
		t.Fatalf("Curve failed: %v", err)
	}

	// A fit finishing between Curve and consumption must not tear the
	// series.
	if err := m.SetFittedParameters([]float64{1, 1, 1}); err != nil {
		t.Fatalf("SetFittedParameters failed: %v", err)
	}

	xs, ys := collectSeries(s)
	want := m.Func()([]float64{xs[5]}, []float64{30, 1.2, 5})[0]
	if ys[5] != want {
		t.Errorf("Expected the parameters from Curve time: want %f, got %f", want, ys[5])
	}
}

func TestCurve_Errors(t *testing.T) {
	m := fittedGauss(t)

	if _, err := m.Curve(CurveConfig{Points: 1}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument for a single sample, got %v", err)
	}

	// The default range is infinite and cannot be sampled.
	unranged := Gaussian[float64]()
	if _, err := unranged.Curve(CurveConfig{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument for an infinite range, got %v", err)
	}
}
