package fit

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Dataset holds the observed samples a model is fitted against, one y
// value per x position, in load order.
type Dataset[T Float] struct {
	X []T
	Y []T
}

// Validate reports whether the dataset is usable for fitting.
func (d *Dataset[T]) Validate() error {
	if len(d.X) != len(d.Y) {
		return &ShapeMismatchError{Field: "dataset", Want: len(d.X), Got: len(d.Y), Axis: -1}
	}
	if len(d.X) == 0 {
		return &InvalidArgumentError{Field: "dataset", Reason: "no samples"}
	}
	return nil
}

// Len returns the number of samples.
func (d *Dataset[T]) Len() int { return len(d.X) }

// Restrict returns the samples whose x lies inside the closed
// interval, preserving order. The endpoints may come in either order;
// fit ranges store whatever the caller passed, so the consumer
// normalizes here.
func (d *Dataset[T]) Restrict(rng [2]T) *Dataset[T] {
	lo, hi := rng[0], rng[1]
	if hi < lo {
		lo, hi = hi, lo
	}
	out := &Dataset[T]{}
	for i, x := range d.X {
		if x >= lo && x <= hi {
			out.X = append(out.X, x)
			out.Y = append(out.Y, d.Y[i])
		}
	}
	return out
}

// Digest returns a stable 64-bit fingerprint of the samples. Sessions
// persist it so a resume against different data is rejected instead of
// silently fitting the wrong spectrum.
func (d *Dataset[T]) Digest() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for i := range d.X {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(float64(d.X[i])))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(float64(d.Y[i])))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// FromCSV reads a two-column x,y dataset. Lines starting with # are
// comments, a non-numeric first row is treated as a header, and extra
// columns are ignored.
func FromCSV[T Float](r io.Reader) (*Dataset[T], error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	ds := &Dataset[T]{}
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++
		if len(rec) < 2 {
			return nil, fmt.Errorf("csv line %d: need two columns, got %d", line, len(rec))
		}
		x, errX := strconv.ParseFloat(rec[0], 64)
		y, errY := strconv.ParseFloat(rec[1], 64)
		if errX != nil || errY != nil {
			if line == 1 {
				continue // header row
			}
			return nil, fmt.Errorf("csv line %d: non-numeric sample %q,%q", line, rec[0], rec[1])
		}
		ds.X = append(ds.X, T(x))
		ds.Y = append(ds.Y, T(y))
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// FromHistogram converts equal-width bins to samples at bin centers.
// It returns the dataset and the bin width, which callers typically
// pass on as CurveConfig.BinWidth so density curves overlay counts.
func FromHistogram[T Float](edges, counts []T) (*Dataset[T], T, error) {
	if len(counts) == 0 {
		return nil, 0, &InvalidArgumentError{Field: "histogram", Reason: "no bins"}
	}
	if len(edges) != len(counts)+1 {
		return nil, 0, &ShapeMismatchError{Field: "histogram edges", Want: len(counts) + 1, Got: len(edges), Axis: -1}
	}
	ds := &Dataset[T]{X: make([]T, len(counts)), Y: make([]T, len(counts))}
	for i := range counts {
		ds.X[i] = (edges[i] + edges[i+1]) / 2
		ds.Y[i] = counts[i]
	}
	return ds, edges[1] - edges[0], nil
}
