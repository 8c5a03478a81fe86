package fit

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func flatModelFunc[T Float](xs, p []T) []T {
	return make([]T, len(xs))
}

func TestNew_Defaults(t *testing.T) {
	m, err := New[float64](flatModelFunc[float64], 2, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if m.NDims() != 2 {
		t.Errorf("Expected 2 dims, got %d", m.NDims())
	}
	if m.NParams() != 3 {
		t.Errorf("Expected 3 params, got %d", m.NParams())
	}
	if m.Name() != "" {
		t.Errorf("Expected empty name, got %q", m.Name())
	}
	if m.Precision() != "float64" {
		t.Errorf("Expected float64 precision, got %q", m.Precision())
	}

	names := m.ParameterNames()
	want := []string{"par1", "par2", "par3"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Parameter %d: expected name %q, got %q", i, want[i], names[i])
		}
	}

	for axis, r := range m.FitRanges() {
		if !math.IsInf(r[0], -1) || !math.IsInf(r[1], 1) {
			t.Errorf("Axis %d: expected (-Inf, +Inf) default range, got %v", axis, r)
		}
	}

	for i, v := range m.InitialValues() {
		if !math.IsNaN(v) {
			t.Errorf("Initial parameter %d: expected NaN, got %f", i, v)
		}
	}
	for i, v := range m.FittedValues() {
		if !math.IsNaN(v) {
			t.Errorf("Fitted parameter %d: expected NaN, got %f", i, v)
		}
	}

	half := math.MaxFloat64 / 2
	for i, b := range m.ParameterBounds() {
		if b.Lower != -half || b.Upper != half {
			t.Errorf("Bound %d: expected [-max/2, max/2], got [%g, %g]", i, b.Lower, b.Upper)
		}
	}
}

func TestNew_Float32(t *testing.T) {
	m, err := New[float32](flatModelFunc[float32], 1, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if m.Precision() != "float32" {
		t.Errorf("Expected float32 precision, got %q", m.Precision())
	}

	half := float32(math.MaxFloat32) / 2
	for i, b := range m.ParameterBounds() {
		if b.Lower != -half || b.Upper != half {
			t.Errorf("Bound %d: expected [-max32/2, max32/2], got [%g, %g]", i, b.Lower, b.Upper)
		}
	}
}

func TestNew_InvalidArguments(t *testing.T) {
	if _, err := New[float64](nil, 1, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument for nil fn, got %v", err)
	}
	if _, err := New[float64](flatModelFunc[float64], 0, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument for zero dims, got %v", err)
	}
	if _, err := New[float64](flatModelFunc[float64], 1, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument for zero params, got %v", err)
	}
}

func TestModel_SetFitRanges(t *testing.T) {
	m, err := New[float64](flatModelFunc[float64], 1, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Endpoints are stored exactly as given, reversed pairs included.
	if err := m.SetFitRanges([][2]float64{{5, 2}}); err != nil {
		t.Fatalf("SetFitRanges failed: %v", err)
	}
	r := m.FitRanges()[0]
	if r[0] != 5 || r[1] != 2 {
		t.Errorf("Expected the reversed pair back verbatim, got %v", r)
	}

	err = m.SetFitRanges([][2]float64{{0, 1}, {2, 3}})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch for wrong axis count, got %v", err)
	}
	if r := m.FitRanges()[0]; r[0] != 5 || r[1] != 2 {
		t.Errorf("Failed call should leave ranges unchanged, got %v", r)
	}
}

func TestModel_SetFitRangeSlices(t *testing.T) {
	m, err := New[float64](flatModelFunc[float64], 2, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := m.SetFitRangeSlices([][]float64{{0, 10}, {1, 2}}); err != nil {
		t.Fatalf("SetFitRangeSlices failed: %v", err)
	}
	ranges := m.FitRanges()
	if ranges[0] != [2]float64{0, 10} || ranges[1] != [2]float64{1, 2} {
		t.Errorf("Unexpected ranges %v", ranges)
	}

	// A three-element axis is rejected, naming the axis.
	err = m.SetFitRangeSlices([][]float64{{0, 10}, {1, 2, 3}})
	var shape *ShapeMismatchError
	if !errors.As(err, &shape) {
		t.Fatalf("Expected a shape mismatch, got %v", err)
	}
	if shape.Axis != 1 {
		t.Errorf("Expected axis 1 in the error, got %d", shape.Axis)
	}
	if m.FitRanges()[0] != [2]float64{0, 10} {
		t.Error("Failed call should leave ranges unchanged")
	}
}

func TestModel_SetParameterNames(t *testing.T) {
	m, err := New[float64](flatModelFunc[float64], 1, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := m.SetParameterNames([]string{"amp", "tau"}); err != nil {
		t.Fatalf("SetParameterNames failed: %v", err)
	}
	names := m.ParameterNames()
	if names[0] != "amp" || names[1] != "tau" {
		t.Errorf("Unexpected names %v", names)
	}

	if err := m.SetParameterNames([]string{"only"}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch, got %v", err)
	}
	if m.ParameterNames()[0] != "amp" {
		t.Error("Failed call should leave names unchanged")
	}
}

func TestModel_SetParameterBounds(t *testing.T) {
	m, err := New[float64](flatModelFunc[float64], 1, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	bounds := []Interval[float64]{{Lower: 0, Upper: 10}, {Lower: -1, Upper: 1}}
	if err := m.SetParameterBounds(bounds); err != nil {
		t.Fatalf("SetParameterBounds failed: %v", err)
	}
	got := m.ParameterBounds()
	if got[0] != bounds[0] || got[1] != bounds[1] {
		t.Errorf("Unexpected bounds %v", got)
	}

	if err := m.SetParameterBounds(bounds[:1]); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch, got %v", err)
	}
}

func TestModel_SetInitialParametersNamed(t *testing.T) {
	m, err := New[float64](flatModelFunc[float64], 1, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Named initial parameters rename as well as set.
	pairs := []NamedValue[float64]{{Name: "height", Value: 4}, {Name: "width", Value: 0.5}}
	if err := m.SetInitialParametersNamed(pairs); err != nil {
		t.Fatalf("SetInitialParametersNamed failed: %v", err)
	}

	names := m.ParameterNames()
	if names[0] != "height" || names[1] != "width" {
		t.Errorf("Expected the pair names to be adopted, got %v", names)
	}
	values := m.InitialValues()
	if values[0] != 4 || values[1] != 0.5 {
		t.Errorf("Unexpected initial values %v", values)
	}

	if err := m.SetInitialParametersNamed(pairs[:1]); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch, got %v", err)
	}
}

func TestModel_SetFittedParametersNamed(t *testing.T) {
	m, err := New[float64](flatModelFunc[float64], 1, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.SetParameterNames([]string{"amp", "tau"}); err != nil {
		t.Fatalf("SetParameterNames failed: %v", err)
	}

	// Fitted results answer to the established names; the pair names
	// are ignored.
	pairs := []NamedValue[float64]{{Name: "bogus", Value: 7}, {Name: "also bogus", Value: 8}}
	if err := m.SetFittedParametersNamed(pairs); err != nil {
		t.Fatalf("SetFittedParametersNamed failed: %v", err)
	}

	names := m.ParameterNames()
	if names[0] != "amp" || names[1] != "tau" {
		t.Errorf("Fitted pairs must not rename parameters, got %v", names)
	}
	fitted := m.FittedParameters()
	if fitted[0].Name != "amp" || fitted[0].Value != 7 {
		t.Errorf("Unexpected fitted pair %+v", fitted[0])
	}
}

func TestModel_BackendResult(t *testing.T) {
	m, err := New[float64](flatModelFunc[float64], 1, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if m.BackendResult() != nil {
		t.Error("Expected no backend result on a fresh model")
	}

	res := &FitResult{BestCost: 0.5}
	m.SetBackendResult(res)
	if got, ok := m.BackendResult().(*FitResult); !ok || got != res {
		t.Error("Expected the stored result back")
	}

	m.SetBackendResult(nil)
	if m.BackendResult() != nil {
		t.Error("Expected nil after clearing")
	}
}

func TestModel_AccessorsReturnCopies(t *testing.T) {
	m, err := New[float64](flatModelFunc[float64], 1, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	m.ParameterNames()[0] = "hijacked"
	if m.ParameterNames()[0] != "par1" {
		t.Error("Mutating the returned names must not affect the model")
	}

	m.FitRanges()[0] = [2]float64{1, 2}
	if r := m.FitRanges()[0]; !math.IsInf(r[0], -1) {
		t.Error("Mutating the returned ranges must not affect the model")
	}

	if err := m.SetInitialParameters([]float64{1, 2}); err != nil {
		t.Fatalf("SetInitialParameters failed: %v", err)
	}
	m.InitialValues()[0] = 99
	if m.InitialValues()[0] != 1 {
		t.Error("Mutating the returned values must not affect the model")
	}
}

func TestModel_String(t *testing.T) {
	m := Gaussian[float64]()
	if err := m.SetFitRanges([][2]float64{{0, 10}}); err != nil {
		t.Fatalf("SetFitRanges failed: %v", err)
	}
	if err := m.SetInitialParameters([]float64{1, 2, 3}); err != nil {
		t.Fatalf("SetInitialParameters failed: %v", err)
	}
	if err := m.SetFittedParameters([]float64{1.5, 2.5, 3.5}); err != nil {
		t.Fatalf("SetFittedParameters failed: %v", err)
	}

	s := m.String()
	for _, want := range []string{
		"gauss (1-dim, 3 params, float64)",
		"range[0]: [0, 10]",
		"scale = 1.5 (init 1)",
		"mean  = 3.5 (init 3)",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("String output missing %q:\n%s", want, s)
		}
	}
}
