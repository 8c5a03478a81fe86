package fit

import (
	"fmt"
	"math"
	"strings"
)

// Float constrains the numeric precision a model is carried in.
type Float interface {
	~float32 | ~float64
}

// ModelFunc evaluates a parametric model at the given positions along
// the first axis. It returns one value per position and must not
// retain either slice.
type ModelFunc[T Float] func(xs []T, params []T) []T

// NamedValue pairs a parameter name with a value, preserving the
// model's parameter order.
type NamedValue[T Float] struct {
	Name  string
	Value T
}

// Interval is a closed interval [Lower, Upper] bounding one parameter.
type Interval[T Float] struct {
	Lower T
	Upper T
}

// Model binds a parametric function to everything a fitting backend
// needs: per-axis fit ranges, named parameters with initial and fitted
// value vectors, and box bounds per parameter. The dimension and
// parameter counts are fixed at construction; every mutator checks its
// input against them before writing, so a failed call leaves the model
// untouched.
//
// A Model performs no synchronization of its own. Callers sharing one
// across goroutines must lock around it (the job manager in the server
// package does exactly that).
type Model[T Float] struct {
	fn   ModelFunc[T]
	name string
	nd   int
	np   int

	ranges  [][2]T // nd entries, endpoints stored exactly as given
	names   []string
	initial []T // np entries, NaN marks unset
	fitted  []T // np entries, NaN marks unset
	bounds  []Interval[T]

	backendResult any
}

// New creates a model around fn with ndims input axes and nparams
// parameters. Fit ranges default to (-Inf, +Inf) on every axis,
// parameter names to par1..parN, initial and fitted values to NaN, and
// every bound to [-maxT/2, maxT/2], effectively unbounded but safe to
// take differences of without overflow.
func New[T Float](fn ModelFunc[T], ndims, nparams int) (*Model[T], error) {
	if fn == nil {
		return nil, &InvalidArgumentError{Field: "fn", Reason: "cannot be nil"}
	}
	if ndims < 1 {
		return nil, &InvalidArgumentError{Field: "ndims", Reason: fmt.Sprintf("must be at least 1, got %d", ndims)}
	}
	if nparams < 1 {
		return nil, &InvalidArgumentError{Field: "nparams", Reason: fmt.Sprintf("must be at least 1, got %d", nparams)}
	}

	m := &Model[T]{
		fn:      fn,
		nd:      ndims,
		np:      nparams,
		ranges:  make([][2]T, ndims),
		names:   make([]string, nparams),
		initial: make([]T, nparams),
		fitted:  make([]T, nparams),
		bounds:  make([]Interval[T], nparams),
	}

	inf := T(math.Inf(1))
	for i := range m.ranges {
		m.ranges[i] = [2]T{-inf, inf}
	}

	nan := T(math.NaN())
	half := maxValue[T]() / 2
	for i := 0; i < nparams; i++ {
		m.names[i] = fmt.Sprintf("par%d", i+1)
		m.initial[i] = nan
		m.fitted[i] = nan
		m.bounds[i] = Interval[T]{Lower: -half, Upper: half}
	}
	return m, nil
}

// maxValue returns the largest finite value of T.
func maxValue[T Float]() T {
	max64 := math.MaxFloat64
	if v := T(max64); !math.IsInf(float64(v), 1) {
		return v
	}
	return T(math.MaxFloat32)
}

// NDims returns the number of independent-variable axes.
func (m *Model[T]) NDims() int { return m.nd }

// NParams returns the number of parameters.
func (m *Model[T]) NParams() int { return m.np }

// Name returns the model identifier, empty if none was set.
func (m *Model[T]) Name() string { return m.name }

// SetName sets the model identifier used by String and reports.
func (m *Model[T]) SetName(name string) { m.name = name }

// Func returns the model function.
func (m *Model[T]) Func() ModelFunc[T] { return m.fn }

// Precision reports the numeric type the model is carried in,
// "float32" or "float64".
func (m *Model[T]) Precision() string {
	if float64(maxValue[T]()) == math.MaxFloat64 {
		return "float64"
	}
	return "float32"
}

// FitRanges returns a copy of the per-axis fit ranges. Endpoints come
// back exactly as they were set; the container never reorders them.
func (m *Model[T]) FitRanges() [][2]T {
	out := make([][2]T, len(m.ranges))
	copy(out, m.ranges)
	return out
}

// ParameterNames returns a copy of the parameter names in order.
func (m *Model[T]) ParameterNames() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// ParameterBounds returns a copy of the per-parameter bounds.
func (m *Model[T]) ParameterBounds() []Interval[T] {
	out := make([]Interval[T], len(m.bounds))
	copy(out, m.bounds)
	return out
}

// InitialParameters returns the parameter names paired with their
// initial values, ordered by parameter. Never-set values are NaN.
func (m *Model[T]) InitialParameters() []NamedValue[T] {
	return m.pairs(m.initial)
}

// FittedParameters returns the parameter names paired with their
// fitted values, ordered by parameter. Never-set values are NaN.
func (m *Model[T]) FittedParameters() []NamedValue[T] {
	return m.pairs(m.fitted)
}

// InitialValues returns a copy of the initial parameter vector.
func (m *Model[T]) InitialValues() []T {
	out := make([]T, len(m.initial))
	copy(out, m.initial)
	return out
}

// FittedValues returns a copy of the fitted parameter vector.
func (m *Model[T]) FittedValues() []T {
	out := make([]T, len(m.fitted))
	copy(out, m.fitted)
	return out
}

func (m *Model[T]) pairs(values []T) []NamedValue[T] {
	out := make([]NamedValue[T], len(values))
	for i, v := range values {
		out[i] = NamedValue[T]{Name: m.names[i], Value: v}
	}
	return out
}

// BackendResult returns whatever the last fitting backend stored, or
// nil when no backend has reported. The value is never interpreted.
func (m *Model[T]) BackendResult() any { return m.backendResult }

// SetBackendResult replaces the stored backend result unconditionally.
// A nil value clears it.
func (m *Model[T]) SetBackendResult(result any) { m.backendResult = result }

// SetFitRanges replaces the per-axis fit ranges from fixed pairs. It
// requires exactly one pair per axis and stores each [first, last] as
// given, without sorting.
func (m *Model[T]) SetFitRanges(ranges [][2]T) error {
	if len(ranges) != m.nd {
		return &ShapeMismatchError{Field: "fit ranges", Want: m.nd, Got: len(ranges), Axis: -1}
	}
	copy(m.ranges, ranges)
	return nil
}

// SetFitRangeSlices replaces the per-axis fit ranges from slices.
// Every axis must supply exactly two values; the error names the first
// offending axis otherwise. Endpoints are stored as given.
func (m *Model[T]) SetFitRangeSlices(ranges [][]T) error {
	if len(ranges) != m.nd {
		return &ShapeMismatchError{Field: "fit ranges", Want: m.nd, Got: len(ranges), Axis: -1}
	}
	for axis, r := range ranges {
		if len(r) != 2 {
			return &ShapeMismatchError{Field: "fit ranges", Want: 2, Got: len(r), Axis: axis}
		}
	}
	for axis, r := range ranges {
		m.ranges[axis] = [2]T{r[0], r[1]}
	}
	return nil
}

// SetParameterNames replaces the parameter names, one per parameter.
func (m *Model[T]) SetParameterNames(names []string) error {
	if len(names) != m.np {
		return &ShapeMismatchError{Field: "parameter names", Want: m.np, Got: len(names), Axis: -1}
	}
	copy(m.names, names)
	return nil
}

// SetParameterBounds replaces every parameter bound elementwise.
func (m *Model[T]) SetParameterBounds(bounds []Interval[T]) error {
	if len(bounds) != m.np {
		return &ShapeMismatchError{Field: "parameter bounds", Want: m.np, Got: len(bounds), Axis: -1}
	}
	copy(m.bounds, bounds)
	return nil
}

// SetInitialParameters replaces the initial parameter vector. Names
// are untouched.
func (m *Model[T]) SetInitialParameters(values []T) error {
	if len(values) != m.np {
		return &ShapeMismatchError{Field: "initial parameters", Want: m.np, Got: len(values), Axis: -1}
	}
	copy(m.initial, values)
	return nil
}

// SetInitialParametersNamed replaces the parameter names and initial
// values together, both taken from the pairs in order. The dual write
// is deliberate: a caller describing its starting point with named
// pairs means the names too.
func (m *Model[T]) SetInitialParametersNamed(pairs []NamedValue[T]) error {
	if len(pairs) != m.np {
		return &ShapeMismatchError{Field: "initial parameters", Want: m.np, Got: len(pairs), Axis: -1}
	}
	for i, p := range pairs {
		m.names[i] = p.Name
		m.initial[i] = p.Value
	}
	return nil
}

// SetFittedParameters replaces the fitted parameter vector. This is
// how fitting backends report results; names are never modified.
func (m *Model[T]) SetFittedParameters(values []T) error {
	if len(values) != m.np {
		return &ShapeMismatchError{Field: "fitted parameters", Want: m.np, Got: len(values), Axis: -1}
	}
	copy(m.fitted, values)
	return nil
}

// SetFittedParametersNamed replaces the fitted values from the pairs
// in order. Unlike SetInitialParametersNamed the pair names are
// ignored: fitted results answer to the names established before the
// fit ran.
func (m *Model[T]) SetFittedParametersNamed(pairs []NamedValue[T]) error {
	if len(pairs) != m.np {
		return &ShapeMismatchError{Field: "fitted parameters", Want: m.np, Got: len(pairs), Axis: -1}
	}
	for i, p := range pairs {
		m.fitted[i] = p.Value
	}
	return nil
}

// String renders a multi-line summary: the model identifier, the fit
// range of every axis, and one line per parameter showing the fitted
// value with the initial value in parentheses. NaN marks values that
// were never set.
func (m *Model[T]) String() string {
	var b strings.Builder
	name := m.name
	if name == "" {
		name = "model"
	}
	fmt.Fprintf(&b, "%s (%d-dim, %d params, %s)\n", name, m.nd, m.np, m.Precision())
	for axis, r := range m.ranges {
		fmt.Fprintf(&b, "  range[%d]: [%v, %v]\n", axis, r[0], r[1])
	}
	width := 0
	for _, n := range m.names {
		if len(n) > width {
			width = len(n)
		}
	}
	for i, n := range m.names {
		fmt.Fprintf(&b, "  %-*s = %v (init %v)\n", width, n, m.fitted[i], m.initial[i])
	}
	return b.String()
}
