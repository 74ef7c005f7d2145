package dmatrix

import (
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Batch is one block of rows handed over by a DataIter.
type Batch struct {
	Data       mat.Matrix
	Label      []float64
	Weight     []float64
	BaseMargin []float64
}

// DataIter streams batches into a matrix constructor.
type DataIter interface {
	// Next hands the next batch to input and reports whether one was
	// available. It returns false, nil once the iterator is exhausted.
	Next(input func(Batch) error) (bool, error)
	// Reset rewinds the iterator to the first batch.
	Reset()
}

type batchShape struct {
	rows      int
	cols      int
	hasLabel  bool
	hasWeight bool
	groups    int
}

// NewQuantile builds a matrix from an iterator in two passes: the first pass
// sketches shapes and meta presence, the second fills preallocated storage.
// Histogram cuts are computed on the result and attached to it.
func NewQuantile(it DataIter, opts ...Option) (*DMatrix, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var shape *batchShape
	it.Reset()
	for i := 0; ; i++ {
		ok, err := it.Next(func(b Batch) error {
			return shape.observe(&shape, i, b)
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	if shape == nil || shape.rows == 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "dmatrix.NewQuantile")
	}

	data := mat.NewDense(shape.rows, shape.cols, nil)
	if shape.hasLabel {
		cfg.label = make([]float64, 0, shape.rows)
	}
	if shape.hasWeight {
		cfg.weight = make([]float64, 0, shape.rows)
	}
	if shape.groups > 0 {
		cfg.baseMargin = make([]float64, 0, shape.rows*shape.groups)
	}

	offset := 0
	it.Reset()
	for {
		ok, err := it.Next(func(b Batch) error {
			r, _ := b.Data.Dims()
			if offset+r > shape.rows {
				return scigoErrors.NewValueError("dmatrix.NewQuantile", "iterator yielded more rows on the second pass")
			}
			data.Slice(offset, offset+r, 0, shape.cols).(*mat.Dense).Copy(b.Data)
			offset += r
			cfg.label = append(cfg.label, b.Label...)
			cfg.weight = append(cfg.weight, b.Weight...)
			cfg.baseMargin = append(cfg.baseMargin, b.BaseMargin...)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	if offset != shape.rows {
		return nil, scigoErrors.NewDimensionError("dmatrix.NewQuantile", shape.rows, offset, 0)
	}
	it.Reset()

	d, err := build(data, cfg)
	if err != nil {
		return nil, err
	}
	d.cuts = computeCuts(d.data, d.weight, d.maxBin, d.nthread)
	return d, nil
}

// observe validates batch i against the shape seen so far and accumulates it.
func (s *batchShape) observe(dst **batchShape, i int, b Batch) error {
	if b.Data == nil {
		return scigoErrors.NewValueError("dmatrix.NewQuantile", "batch without data")
	}
	r, c := b.Data.Dims()
	groups := 0
	if b.BaseMargin != nil {
		if r == 0 || len(b.BaseMargin)%r != 0 {
			return scigoErrors.NewDimensionError("dmatrix.NewQuantile(base_margin)", r, len(b.BaseMargin), 0)
		}
		groups = len(b.BaseMargin) / r
	}
	if b.Label != nil && len(b.Label) != r {
		return scigoErrors.NewDimensionError("dmatrix.NewQuantile(label)", r, len(b.Label), 0)
	}
	if b.Weight != nil && len(b.Weight) != r {
		return scigoErrors.NewDimensionError("dmatrix.NewQuantile(weight)", r, len(b.Weight), 0)
	}
	if s == nil {
		*dst = &batchShape{
			rows:      r,
			cols:      c,
			hasLabel:  b.Label != nil,
			hasWeight: b.Weight != nil,
			groups:    groups,
		}
		return nil
	}
	if c != s.cols {
		return scigoErrors.NewDimensionError("dmatrix.NewQuantile", s.cols, c, 1)
	}
	if (b.Label != nil) != s.hasLabel || (b.Weight != nil) != s.hasWeight || groups != s.groups {
		return scigoErrors.Newf("dmatrix.NewQuantile: batch %d meta info differs from the first batch", i)
	}
	s.rows += r
	return nil
}
