package frame

import (
	"fmt"
	"math"
)

// ColumnKind distinguishes numeric from categorical columns
type ColumnKind string

const (
	Numeric     ColumnKind = "numeric"
	Categorical ColumnKind = "categorical"
)

// Column holds one named column of data. Exactly one of Floats/Labels is
// populated, according to Kind. Missing numeric values are NaN.
type Column struct {
	Name   string
	Kind   ColumnKind
	Floats []float64
	Labels []string
}

// Len returns the number of rows in the column
func (c Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Labels)
}

// Frame is an immutable columnar table with named columns. Mutating
// operations return a new frame that shares unchanged column storage with the
// receiver; the shared source data is never written to, so frames are safe
// for concurrent read access across pipeline executions.
type Frame struct {
	names []string
	cols  map[string]Column
	rows  int
}

// New creates an empty frame. The first column added fixes the row count.
func New() *Frame {
	return &Frame{cols: map[string]Column{}, rows: -1}
}

// Rows returns the number of rows
func (f *Frame) Rows() int {
	if f.rows < 0 {
		return 0
	}
	return f.rows
}

// Names returns the column names in insertion order
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Has reports whether a column exists
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns a column by name
func (f *Frame) Column(name string) (Column, bool) {
	c, ok := f.cols[name]
	return c, ok
}

// Numeric returns the float values of a numeric column
func (f *Frame) Numeric(name string) ([]float64, bool) {
	c, ok := f.cols[name]
	if !ok || c.Kind != Numeric {
		return nil, false
	}
	return c.Floats, true
}

// Labels returns the string values of a categorical column
func (f *Frame) Labels(name string) ([]string, bool) {
	c, ok := f.cols[name]
	if !ok || c.Kind != Categorical {
		return nil, false
	}
	return c.Labels, true
}

// WithNumeric returns a new frame with the numeric column added or replaced
func (f *Frame) WithNumeric(name string, vals []float64) (*Frame, error) {
	return f.with(Column{Name: name, Kind: Numeric, Floats: vals})
}

// WithCategorical returns a new frame with the categorical column added or replaced
func (f *Frame) WithCategorical(name string, vals []string) (*Frame, error) {
	return f.with(Column{Name: name, Kind: Categorical, Labels: vals})
}

func (f *Frame) with(col Column) (*Frame, error) {
	if f.rows >= 0 && col.Len() != f.rows {
		return nil, fmt.Errorf("column %q has %d rows, frame has %d", col.Name, col.Len(), f.rows)
	}

	next := &Frame{
		names: make([]string, len(f.names)),
		cols:  make(map[string]Column, len(f.cols)+1),
		rows:  f.rows,
	}
	copy(next.names, f.names)
	for k, v := range f.cols {
		next.cols[k] = v
	}

	if _, exists := next.cols[col.Name]; !exists {
		next.names = append(next.names, col.Name)
	}
	next.cols[col.Name] = col
	if next.rows < 0 {
		next.rows = col.Len()
	}
	return next, nil
}

// Select returns a new frame containing only the rows where mask is true.
// The mask length must match the frame's row count.
func (f *Frame) Select(mask []bool) (*Frame, error) {
	if len(mask) != f.Rows() {
		return nil, fmt.Errorf("mask has %d entries, frame has %d rows", len(mask), f.Rows())
	}

	kept := 0
	for _, m := range mask {
		if m {
			kept++
		}
	}

	next := &Frame{
		names: make([]string, len(f.names)),
		cols:  make(map[string]Column, len(f.cols)),
		rows:  kept,
	}
	copy(next.names, f.names)

	for name, col := range f.cols {
		out := Column{Name: name, Kind: col.Kind}
		if col.Kind == Numeric {
			out.Floats = make([]float64, 0, kept)
			for i, m := range mask {
				if m {
					out.Floats = append(out.Floats, col.Floats[i])
				}
			}
		} else {
			out.Labels = make([]string, 0, kept)
			for i, m := range mask {
				if m {
					out.Labels = append(out.Labels, col.Labels[i])
				}
			}
		}
		next.cols[name] = out
	}
	return next, nil
}

// DropMissing returns a frame without rows that hold NaN in any of the named
// numeric columns. Model fitting uses this for listwise deletion.
func (f *Frame) DropMissing(names ...string) (*Frame, error) {
	mask := make([]bool, f.Rows())
	for i := range mask {
		mask[i] = true
	}
	for _, name := range names {
		vals, ok := f.Numeric(name)
		if !ok {
			continue
		}
		for i, v := range vals {
			if math.IsNaN(v) {
				mask[i] = false
			}
		}
	}
	return f.Select(mask)
}
