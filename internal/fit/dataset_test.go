package fit

import (
	"errors"
	"strings"
	"testing"
)

func TestDataset_Validate(t *testing.T) {
	ds := &Dataset[float64]{X: []float64{1, 2}, Y: []float64{3, 4}}
	if err := ds.Validate(); err != nil {
		t.Errorf("Valid dataset rejected: %v", err)
	}

	mismatch := &Dataset[float64]{X: []float64{1, 2}, Y: []float64{3}}
	if err := mismatch.Validate(); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch, got %v", err)
	}

	empty := &Dataset[float64]{}
	if err := empty.Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument for empty dataset, got %v", err)
	}
}

func TestDataset_Restrict(t *testing.T) {
	ds := &Dataset[float64]{
		X: []float64{0, 1, 2, 3, 4, 5},
		Y: []float64{10, 11, 12, 13, 14, 15},
	}

	sub := ds.Restrict([2]float64{2, 4})
	if sub.Len() != 3 {
		t.Fatalf("Expected 3 samples, got %d", sub.Len())
	}
	if sub.X[0] != 2 || sub.X[2] != 4 {
		t.Errorf("Endpoints should be inclusive, got %v", sub.X)
	}
	if sub.Y[1] != 13 {
		t.Errorf("Expected the y values to follow, got %v", sub.Y)
	}

	// Reversed endpoints select the same window.
	rev := ds.Restrict([2]float64{4, 2})
	if rev.Len() != 3 || rev.X[0] != 2 {
		t.Errorf("Reversed interval should normalize, got %v", rev.X)
	}

	if out := ds.Restrict([2]float64{10, 20}); out.Len() != 0 {
		t.Errorf("Expected no samples outside the data, got %d", out.Len())
	}
}

func TestDataset_Digest(t *testing.T) {
	a := &Dataset[float64]{X: []float64{1, 2}, Y: []float64{3, 4}}
	b := &Dataset[float64]{X: []float64{1, 2}, Y: []float64{3, 4}}
	if a.Digest() != b.Digest() {
		t.Error("Identical data should share a digest")
	}

	c := &Dataset[float64]{X: []float64{1, 2}, Y: []float64{3, 5}}
	if a.Digest() == c.Digest() {
		t.Error("Different data should not share a digest")
	}

	// x and y are hashed in position, so swapping them changes the
	// fingerprint.
	swapped := &Dataset[float64]{X: []float64{3, 4}, Y: []float64{1, 2}}
	if a.Digest() == swapped.Digest() {
		t.Error("Swapped axes should not share a digest")
	}
}

func TestFromCSV(t *testing.T) {
	input := `x,y
# calibration run 12
0,1.5
1, 2.5, 42
2,3.5
`
	ds, err := FromCSV[float64](strings.NewReader(input))
	if err != nil {
		t.Fatalf("FromCSV failed: %v", err)
	}

	if ds.Len() != 3 {
		t.Fatalf("Expected 3 samples, got %d", ds.Len())
	}
	if ds.X[1] != 1 || ds.Y[1] != 2.5 {
		t.Errorf("Extra columns should be ignored, got (%f, %f)", ds.X[1], ds.Y[1])
	}
}

func TestFromCSV_NoHeader(t *testing.T) {
	ds, err := FromCSV[float64](strings.NewReader("0,1\n1,2\n"))
	if err != nil {
		t.Fatalf("FromCSV failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Errorf("Expected 2 samples, got %d", ds.Len())
	}
}

func TestFromCSV_Errors(t *testing.T) {
	if _, err := FromCSV[float64](strings.NewReader("5\n")); err == nil {
		t.Error("Expected an error for a one-column line")
	}

	// Non-numeric rows are only tolerated as the first line.
	if _, err := FromCSV[float64](strings.NewReader("0,1.5\nbroken,data\n")); err == nil {
		t.Error("Expected an error for a non-numeric sample")
	}

	if _, err := FromCSV[float64](strings.NewReader("")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument for an empty file, got %v", err)
	}
}

func TestFromHistogram(t *testing.T) {
	edges := []float64{0, 1, 2, 3}
	counts := []float64{5, 7, 9}

	ds, binWidth, err := FromHistogram(edges, counts)
	if err != nil {
		t.Fatalf("FromHistogram failed: %v", err)
	}

	if binWidth != 1 {
		t.Errorf("Expected bin width 1, got %f", binWidth)
	}
	wantX := []float64{0.5, 1.5, 2.5}
	for i := range wantX {
		if ds.X[i] != wantX[i] {
			t.Errorf("Bin %d: expected center %f, got %f", i, wantX[i], ds.X[i])
		}
		if ds.Y[i] != counts[i] {
			t.Errorf("Bin %d: expected count %f, got %f", i, counts[i], ds.Y[i])
		}
	}
}

func TestFromHistogram_Errors(t *testing.T) {
	if _, _, err := FromHistogram[float64](nil, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument for no bins, got %v", err)
	}

	_, _, err := FromHistogram([]float64{0, 1}, []float64{5, 7})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch for wrong edge count, got %v", err)
	}
}
