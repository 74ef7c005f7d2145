package partition

import (
	"context"

	"github.com/YuminosukeSato/mllite/dmatrix"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// PartIter feeds cached training blocks to dmatrix.NewQuantile.
type PartIter struct {
	bucket Bucket
	pos    int
}

// NewPartIter iterates over the blocks of bucket.
func NewPartIter(bucket Bucket) *PartIter {
	return &PartIter{bucket: bucket}
}

// Next hands block pos to input and advances. It reports false once every
// data block has been consumed.
func (p *PartIter) Next(input func(dmatrix.Batch) error) (bool, error) {
	if p.pos >= len(p.bucket[RoleData]) {
		return false, nil
	}
	b := dmatrix.Batch{
		Data:       p.bucket[RoleData][p.pos],
		Label:      p.block(RoleLabel),
		Weight:     p.block(RoleWeight),
		BaseMargin: p.block(RoleMargin),
	}
	p.pos++
	if err := input(b); err != nil {
		return false, err
	}
	return true, nil
}

// Reset rewinds to the first block.
func (p *PartIter) Reset() { p.pos = 0 }

func (p *PartIter) block(role string) []float64 {
	blocks := p.bucket[role]
	if p.pos >= len(blocks) {
		return nil
	}
	return rowMajor(blocks[p.pos])
}

// rowMajor flattens m; nil stays nil.
func rowMajor(m *mat.Dense) []float64 {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}

// CreateDMatrixFromPartitions builds the training and, when validation rows
// exist, the validation matrix from partitions with DefaultAlias columns.
//
// With featureCols nil the data column holds arrays and both matrices are
// built densely. Otherwise the data role is assembled from the named scalar
// columns and the training matrix is built with dmatrix.NewQuantile.
func CreateDMatrixFromPartitions(ctx context.Context, it Iterator, featureCols []string, opts ...dmatrix.Option) (*dmatrix.DMatrix, *dmatrix.DMatrix, error) {
	return CreateDMatrixWithAlias(ctx, it, DefaultAlias, featureCols, opts...)
}

// CreateDMatrixWithAlias is CreateDMatrixFromPartitions with custom column names.
func CreateDMatrixWithAlias(ctx context.Context, it Iterator, alias Alias, featureCols []string, opts ...dmatrix.Option) (*dmatrix.DMatrix, *dmatrix.DMatrix, error) {
	logger := log.GetLoggerWithName("partition")

	widths := roleWidths{}
	appendFn := appendDense(widths)
	if featureCols != nil {
		if len(featureCols) == 0 {
			return nil, nil, scigoErrors.NewValidationError("featureCols", "must not be empty", featureCols)
		}
		widths[RoleData] = len(featureCols)
		appendFn = appendFeatures(featureCols, widths)
	}

	cache, err := CachePartitions(ctx, it, alias, appendFn)
	if err != nil {
		return nil, nil, err
	}
	nFeatures := widths[RoleData]
	if len(cache.Train[RoleData]) == 0 {
		return nil, nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "partition: no training rows")
	}

	var train *dmatrix.DMatrix
	if featureCols == nil {
		train, err = makeDense(cache.Train, opts)
	} else {
		train, err = dmatrix.NewQuantile(NewPartIter(cache.Train), opts...)
	}
	if err != nil {
		return nil, nil, scigoErrors.Wrap(err, "partition: training matrix")
	}
	if train.NumCol() != nFeatures {
		return nil, nil, scigoErrors.NewDimensionError("partition: training matrix", nFeatures, train.NumCol(), 1)
	}

	var valid *dmatrix.DMatrix
	if len(cache.Valid[RoleData]) > 0 {
		valid, err = makeDense(cache.Valid, opts)
		if err != nil {
			return nil, nil, scigoErrors.Wrap(err, "partition: validation matrix")
		}
		if valid.NumCol() != train.NumCol() {
			return nil, nil, scigoErrors.NewDimensionError("partition: validation matrix", train.NumCol(), valid.NumCol(), 1)
		}
	}

	validRows := 0
	if valid != nil {
		validRows = valid.NumRow()
	}
	logger.Info("matrices created",
		log.SamplesKey, train.NumRow(),
		log.FeaturesKey, train.NumCol(),
		log.ValidationRowsKey, validRows,
	)
	return train, valid, nil
}

func makeDense(b Bucket, opts []dmatrix.Option) (*dmatrix.DMatrix, error) {
	all := make([]dmatrix.Option, 0, len(opts)+3)
	for _, role := range []struct {
		name string
		opt  func([]float64) dmatrix.Option
	}{
		{RoleLabel, dmatrix.WithLabel},
		{RoleWeight, dmatrix.WithWeight},
		{RoleMargin, dmatrix.WithBaseMargin},
	} {
		m, err := ConcatOrNone(b[role.name])
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "partition: %s", role.name)
		}
		if m != nil {
			all = append(all, role.opt(rowMajor(m)))
		}
	}
	data, err := ConcatOrNone(b[RoleData])
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "partition: %s", RoleData)
	}
	all = append(all, opts...)
	return dmatrix.New(data, all...)
}

// roleWidths records the column count of each role's first block. Training
// and validation blocks share it.
type roleWidths map[string]int

func (w roleWidths) check(role, column string, m *mat.Dense) error {
	_, c := m.Dims()
	want, ok := w[role]
	if !ok {
		w[role] = c
		return nil
	}
	if c != want {
		return scigoErrors.NewDimensionError("partition: "+column, want, c, 1)
	}
	return nil
}

// appendDense appends each role present in the frame. Array columns are
// stacked and the first block of a role fixes its width.
func appendDense(widths roleWidths) AppendFunc {
	return func(dst Bucket, frame *Frame, role, column string) error {
		if !frame.Has(column) {
			return nil
		}
		m, err := columnBlock(frame, column)
		if err != nil {
			return err
		}
		if err := widths.check(role, column, m); err != nil {
			return err
		}
		dst[role] = append(dst[role], m)
		return nil
	}
}

// appendFeatures always builds the data role from featureCols; the other
// roles are appended when present.
func appendFeatures(featureCols []string, widths roleWidths) AppendFunc {
	return func(dst Bucket, frame *Frame, role, column string) error {
		if role == RoleData {
			m, err := frame.Select(featureCols)
			if err != nil {
				return err
			}
			dst[role] = append(dst[role], m)
			return nil
		}
		if !frame.Has(column) {
			return nil
		}
		m, err := columnBlock(frame, column)
		if err != nil {
			return err
		}
		if err := widths.check(role, column, m); err != nil {
			return err
		}
		dst[role] = append(dst[role], m)
		return nil
	}
}

// columnBlock converts a column into a matrix: arrays are stacked, scalars
// become a single column.
func columnBlock(frame *Frame, column string) (*mat.Dense, error) {
	s, _ := frame.Series(column)
	switch s.Kind() {
	case KindVector:
		return StackSeries(s)
	case KindFloat:
		return frame.Select([]string{column})
	}
	return nil, scigoErrors.NewValueError("partition", "column "+column+" is "+s.Kind().String()+", expected float or vector")
}
