package main

import (
	"math"
	"testing"

	"github.com/cwbudde/peakfit/internal/fit"
)

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []fit.NamedValue[float64]
		wantErr bool
	}{
		{
			name:  "named",
			input: "sigma=2,mean=80",
			want: []fit.NamedValue[float64]{
				{Name: "sigma", Value: 2},
				{Name: "mean", Value: 80},
			},
		},
		{
			name:  "positional",
			input: "1, 2.5 ,3",
			want: []fit.NamedValue[float64]{
				{Name: "", Value: 1},
				{Name: "", Value: 2.5},
				{Name: "", Value: 3},
			},
		},
		{
			name:  "scientific notation",
			input: "scale=1e6",
			want:  []fit.NamedValue[float64]{{Name: "scale", Value: 1e6}},
		},
		{name: "bad value", input: "sigma=abc", wantErr: true},
		{name: "empty", input: " , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssignments(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAssignments: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d pairs, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("pair %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	lo, hi, err := parseRange("55:105")
	if err != nil {
		t.Fatalf("parseRange: %v", err)
	}
	if lo != 55 || hi != 105 {
		t.Errorf("got [%v, %v], want [55, 105]", lo, hi)
	}

	if _, _, err := parseRange("55"); err == nil {
		t.Error("expected error for missing colon")
	}
	if _, _, err := parseRange("a:b"); err == nil {
		t.Error("expected error for non-numeric endpoints")
	}
}

func TestApplyInitialParams_NamedSubset(t *testing.T) {
	m, err := fit.ModelByName[float64]("gauss")
	if err != nil {
		t.Fatalf("ModelByName: %v", err)
	}

	if err := applyInitialParams(m, "sigma=2.5"); err != nil {
		t.Fatalf("applyInitialParams: %v", err)
	}

	values := m.InitialValues()
	if values[1] != 2.5 {
		t.Errorf("sigma = %v, want 2.5", values[1])
	}
	// Unset slots stay NaN for data-driven seeding.
	if !math.IsNaN(values[0]) || !math.IsNaN(values[2]) {
		t.Errorf("unset parameters should stay NaN, got %v", values)
	}
}

func TestApplyInitialParams_Positional(t *testing.T) {
	m, err := fit.ModelByName[float64]("gauss")
	if err != nil {
		t.Fatalf("ModelByName: %v", err)
	}

	if err := applyInitialParams(m, "100,2,50"); err != nil {
		t.Fatalf("applyInitialParams: %v", err)
	}

	values := m.InitialValues()
	want := []float64{100, 2, 50}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("param %d = %v, want %v", i, values[i], want[i])
		}
	}
}

func TestApplyInitialParams_Errors(t *testing.T) {
	m, err := fit.ModelByName[float64]("gauss")
	if err != nil {
		t.Fatalf("ModelByName: %v", err)
	}

	if err := applyInitialParams(m, "bogus=1"); err == nil {
		t.Error("expected error for unknown parameter name")
	}
	if err := applyInitialParams(m, "1,2"); err == nil {
		t.Error("expected error for short positional vector")
	}
	if err := applyInitialParams(m, "sigma=1,2"); err == nil {
		t.Error("expected error for mixed named and positional values")
	}
}

func TestApplyBounds(t *testing.T) {
	m, err := fit.ModelByName[float64]("gauss")
	if err != nil {
		t.Fatalf("ModelByName: %v", err)
	}

	if err := applyBounds(m, "sigma=0.1:50, mean=0:200"); err != nil {
		t.Fatalf("applyBounds: %v", err)
	}

	bounds := m.ParameterBounds()
	if bounds[1].Lower != 0.1 || bounds[1].Upper != 50 {
		t.Errorf("sigma bounds = %+v", bounds[1])
	}
	if bounds[2].Lower != 0 || bounds[2].Upper != 200 {
		t.Errorf("mean bounds = %+v", bounds[2])
	}

	if err := applyBounds(m, "bogus=0:1"); err == nil {
		t.Error("expected error for unknown parameter name")
	}
	if err := applyBounds(m, "sigma=5"); err == nil {
		t.Error("expected error for malformed bound")
	}
}

func TestResolveFitRange(t *testing.T) {
	ds := &fit.Dataset[float64]{
		X: []float64{3, 1, 7, 5},
		Y: []float64{1, 1, 1, 1},
	}

	lo, hi, err := resolveFitRange("", ds)
	if err != nil {
		t.Fatalf("resolveFitRange: %v", err)
	}
	if lo != 1 || hi != 7 {
		t.Errorf("data extent = [%v, %v], want [1, 7]", lo, hi)
	}

	lo, hi, err = resolveFitRange("0:10", ds)
	if err != nil {
		t.Fatalf("resolveFitRange explicit: %v", err)
	}
	if lo != 0 || hi != 10 {
		t.Errorf("explicit range = [%v, %v], want [0, 10]", lo, hi)
	}
}
