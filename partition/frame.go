// Package partition reshapes dataframe partitions into training matrices.
//
// Partitions arrive one at a time through an Iterator. Each partition's rows
// are routed to a training or validation bucket by a boolean column, the
// per-role arrays are concatenated and finally handed to the dmatrix
// constructors.
package partition

import (
	"fmt"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Kind is the element type of a Series.
type Kind int

const (
	KindFloat Kind = iota
	KindVector
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindVector:
		return "vector"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Series is one named column. Exactly one of the backing slices is used,
// selected by Kind.
type Series struct {
	Name    string
	kind    Kind
	floats  []float64
	vectors [][]float64
	bools   []bool
}

// Floats creates a scalar column.
func Floats(name string, values []float64) Series {
	return Series{Name: name, kind: KindFloat, floats: values}
}

// Vectors creates an array-valued column.
func Vectors(name string, values [][]float64) Series {
	return Series{Name: name, kind: KindVector, vectors: values}
}

// Bools creates a boolean column.
func Bools(name string, values []bool) Series {
	return Series{Name: name, kind: KindBool, bools: values}
}

// Kind returns the element type.
func (s Series) Kind() Kind { return s.kind }

// Len returns the number of rows.
func (s Series) Len() int {
	switch s.kind {
	case KindVector:
		return len(s.vectors)
	case KindBool:
		return len(s.bools)
	}
	return len(s.floats)
}

// FloatValues returns the scalar values, nil for other kinds.
func (s Series) FloatValues() []float64 { return s.floats }

// VectorValues returns the array values, nil for other kinds.
func (s Series) VectorValues() [][]float64 { return s.vectors }

// BoolValues returns the boolean values, nil for other kinds.
func (s Series) BoolValues() []bool { return s.bools }

func (s Series) filter(mask []bool) Series {
	out := Series{Name: s.Name, kind: s.kind}
	for i, keep := range mask {
		if !keep {
			continue
		}
		switch s.kind {
		case KindFloat:
			out.floats = append(out.floats, s.floats[i])
		case KindVector:
			out.vectors = append(out.vectors, s.vectors[i])
		case KindBool:
			out.bools = append(out.bools, s.bools[i])
		}
	}
	return out
}

// Frame is one partition: ordered, uniquely named columns of equal length.
type Frame struct {
	cols  []Series
	index map[string]int
	n     int
}

// NewFrame validates and assembles columns into a frame.
func NewFrame(series ...Series) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(series))}
	for i, s := range series {
		if s.Name == "" {
			return nil, scigoErrors.NewValueError("partition.NewFrame", "column without a name")
		}
		if _, dup := f.index[s.Name]; dup {
			return nil, scigoErrors.NewValueError("partition.NewFrame", fmt.Sprintf("duplicate column %q", s.Name))
		}
		if i == 0 {
			f.n = s.Len()
		} else if s.Len() != f.n {
			return nil, scigoErrors.NewDimensionError("partition.NewFrame("+s.Name+")", f.n, s.Len(), 0)
		}
		f.index[s.Name] = i
		f.cols = append(f.cols, s)
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Has reports whether the frame has a column with the given name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Series returns the named column.
func (f *Frame) Series(name string) (Series, bool) {
	i, ok := f.index[name]
	if !ok {
		return Series{}, false
	}
	return f.cols[i], true
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.cols))
	for i, s := range f.cols {
		names[i] = s.Name
	}
	return names
}

// Filter returns the rows where mask is true.
func (f *Frame) Filter(mask []bool) (*Frame, error) {
	if len(mask) != f.n {
		return nil, scigoErrors.NewDimensionError("Frame.Filter", f.n, len(mask), 0)
	}
	out := &Frame{index: f.index, cols: make([]Series, len(f.cols))}
	for i, s := range f.cols {
		out.cols[i] = s.filter(mask)
	}
	for _, keep := range mask {
		if keep {
			out.n++
		}
	}
	return out, nil
}

// Stack turns an array-valued column into a rows x width matrix.
func (f *Frame) Stack(name string) (*mat.Dense, error) {
	s, ok := f.Series(name)
	if !ok {
		return nil, missingColumn(name)
	}
	return StackSeries(s)
}

// Select gathers scalar columns into a rows x len(names) matrix.
func (f *Frame) Select(names []string) (*mat.Dense, error) {
	if f.n == 0 || len(names) == 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "Frame.Select")
	}
	out := mat.NewDense(f.n, len(names), nil)
	for j, name := range names {
		v, err := f.Vector(name)
		if err != nil {
			return nil, err
		}
		for i, x := range v {
			out.Set(i, j, x)
		}
	}
	return out, nil
}

// Vector returns a scalar column's values.
func (f *Frame) Vector(name string) ([]float64, error) {
	s, ok := f.Series(name)
	if !ok {
		return nil, missingColumn(name)
	}
	if s.kind != KindFloat {
		return nil, scigoErrors.NewValueError("Frame.Vector", fmt.Sprintf("column %q is %s, not float", name, s.kind))
	}
	return s.floats, nil
}

// Bools returns a boolean column's values.
func (f *Frame) Bools(name string) ([]bool, error) {
	s, ok := f.Series(name)
	if !ok {
		return nil, missingColumn(name)
	}
	if s.kind != KindBool {
		return nil, scigoErrors.NewValueError("Frame.Bools", fmt.Sprintf("column %q is %s, not bool", name, s.kind))
	}
	return s.bools, nil
}

func missingColumn(name string) error {
	return scigoErrors.NewValueError("partition", fmt.Sprintf("no column %q", name))
}
