package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/peakfit/internal/fit"
)

// parseAssignments parses "a=1,b=2.5" into name/value pairs. A bare
// comma-separated list of numbers is accepted as a positional vector
// with empty names.
func parseAssignments(s string) ([]fit.NamedValue[float64], error) {
	parts := strings.Split(s, ",")
	out := make([]fit.NamedValue[float64], 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, valueStr, found := strings.Cut(part, "=")
		if !found {
			valueStr = name
			name = ""
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %w", part, err)
		}
		out = append(out, fit.NamedValue[float64]{Name: strings.TrimSpace(name), Value: v})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no assignments in %q", s)
	}
	return out, nil
}

// applyInitialParams applies --params to the model. Named assignments
// may cover a subset of the parameters; the rest stay unset and are
// seeded from the data. A positional vector must cover all of them.
func applyInitialParams(m *fit.Model[float64], s string) error {
	pairs, err := parseAssignments(s)
	if err != nil {
		return err
	}

	positional := true
	for _, p := range pairs {
		if p.Name != "" {
			positional = false
			break
		}
	}
	if positional {
		values := make([]float64, len(pairs))
		for i, p := range pairs {
			values[i] = p.Value
		}
		return m.SetInitialParameters(values)
	}

	values := m.InitialValues()
	names := m.ParameterNames()
	for _, p := range pairs {
		if p.Name == "" {
			return fmt.Errorf("mixing named and positional values in %q", s)
		}
		idx := indexOfName(names, p.Name)
		if idx < 0 {
			return fmt.Errorf("unknown parameter %q (have %s)", p.Name, strings.Join(names, ", "))
		}
		values[idx] = p.Value
	}
	return m.SetInitialParameters(values)
}

// applyBounds applies --bounds assignments of the form "a=0:10,b=-1:1".
func applyBounds(m *fit.Model[float64], s string) error {
	names := m.ParameterNames()
	bounds := m.ParameterBounds()

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, rangeStr, found := strings.Cut(part, "=")
		if !found {
			return fmt.Errorf("bound %q must look like name=low:high", part)
		}
		idx := indexOfName(names, strings.TrimSpace(name))
		if idx < 0 {
			return fmt.Errorf("unknown parameter %q (have %s)", name, strings.Join(names, ", "))
		}
		lo, hi, err := parseRange(rangeStr)
		if err != nil {
			return fmt.Errorf("bound %q: %w", part, err)
		}
		bounds[idx] = fit.Interval[float64]{Lower: lo, Upper: hi}
	}
	return m.SetParameterBounds(bounds)
}

// parseRange parses "low:high" into two floats.
func parseRange(s string) (float64, float64, error) {
	loStr, hiStr, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, 0, fmt.Errorf("range %q must look like low:high", s)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(loStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid low endpoint: %w", err)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(hiStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid high endpoint: %w", err)
	}
	return lo, hi, nil
}

// resolveFitRange returns the explicit --range when given, otherwise
// the extent of the data so curves and reports have finite limits.
func resolveFitRange(rangeFlag string, ds *fit.Dataset[float64]) (float64, float64, error) {
	if rangeFlag != "" {
		return parseRange(rangeFlag)
	}
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, x := range ds.X {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi, nil
}

func indexOfName(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// loadCSVDataset reads a two-column CSV file into a dataset.
func loadCSVDataset(path string) (*fit.Dataset[float64], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	ds, err := fit.FromCSV[float64](f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return ds, nil
}
