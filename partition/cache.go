package partition

import (
	"context"
	"fmt"
	"io"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Roles are the bucket keys; Alias maps them to column names.
const (
	RoleData   = "data"
	RoleLabel  = "label"
	RoleWeight = "weight"
	RoleMargin = "margin"
	RoleValid  = "valid"
)

// appendRoles is the order in which roles are appended for each side.
var appendRoles = []string{RoleData, RoleLabel, RoleWeight, RoleMargin}

// Alias names the column that carries each role.
type Alias struct {
	Data   string
	Label  string
	Weight string
	Margin string
	Valid  string
}

// DefaultAlias is the standard column layout.
var DefaultAlias = Alias{
	Data:   "values",
	Label:  "label",
	Weight: "weight",
	Margin: "baseMargin",
	Valid:  "validationIndicator",
}

// Column returns the column name of role.
func (a Alias) Column(role string) string {
	switch role {
	case RoleData:
		return a.Data
	case RoleLabel:
		return a.Label
	case RoleWeight:
		return a.Weight
	case RoleMargin:
		return a.Margin
	case RoleValid:
		return a.Valid
	}
	return ""
}

// Bucket holds the cached blocks of one side, keyed by role.
type Bucket map[string][]*mat.Dense

// Rows returns the number of rows in the data blocks.
func (b Bucket) Rows() int {
	n := 0
	for _, m := range b[RoleData] {
		r, _ := m.Dims()
		n += r
	}
	return n
}

// AppendFunc appends the column of role from frame to dst. Implementations
// skip roles they do not need.
type AppendFunc func(dst Bucket, frame *Frame, role, column string) error

// Cache is the result of CachePartitions.
type Cache struct {
	Train         Bucket
	Valid         Bucket
	HasValidation bool
	Partitions    int
}

// StackSeries stacks an array column into a dense matrix. All arrays must
// share one width.
func StackSeries(s Series) (*mat.Dense, error) {
	if s.kind != KindVector {
		return nil, scigoErrors.NewValueError("partition.StackSeries", fmt.Sprintf("column %q is %s, not vector", s.Name, s.kind))
	}
	if len(s.vectors) == 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "partition.StackSeries")
	}
	width := len(s.vectors[0])
	if width == 0 {
		return nil, scigoErrors.NewValueError("partition.StackSeries", fmt.Sprintf("column %q has empty arrays", s.Name))
	}
	out := mat.NewDense(len(s.vectors), width, nil)
	for i, v := range s.vectors {
		if len(v) != width {
			return nil, scigoErrors.NewDimensionError("partition.StackSeries("+s.Name+")", width, len(v), 1)
		}
		out.SetRow(i, v)
	}
	return out, nil
}

// ConcatOrNone stacks blocks vertically, or returns nil when there are none.
// Every block must have the column count of the first.
func ConcatOrNone(blocks []*mat.Dense) (*mat.Dense, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	rows := 0
	_, cols := blocks[0].Dims()
	for _, b := range blocks {
		r, c := b.Dims()
		if c != cols {
			return nil, scigoErrors.NewDimensionError("partition.ConcatOrNone", cols, c, 1)
		}
		rows += r
	}
	if len(blocks) == 1 {
		return mat.DenseCopyOf(blocks[0]), nil
	}
	out := mat.NewDense(rows, cols, nil)
	offset := 0
	for _, b := range blocks {
		r, _ := b.Dims()
		out.Slice(offset, offset+r, 0, cols).(*mat.Dense).Copy(b)
		offset += r
	}
	return out, nil
}

// CachePartitions drains it and distributes every partition's rows into the
// training and validation buckets through appendFn.
//
// Whether a validation column exists is decided by the first partition.
// Later partitions must then carry it too. Sides with zero rows are skipped.
func CachePartitions(ctx context.Context, it Iterator, alias Alias, appendFn AppendFunc) (*Cache, error) {
	logger := log.GetLoggerWithName("partition")
	c := &Cache{Train: Bucket{}, Valid: Bucket{}}

	for i := 0; ; i++ {
		frame, err := it.Next(ctx)
		if scigoErrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "partition %d", i)
		}
		if i == 0 {
			c.HasValidation = frame.Has(alias.Valid)
		}
		c.Partitions++

		if !c.HasValidation {
			if err := appendSide(c.Train, frame, alias, appendFn); err != nil {
				return nil, scigoErrors.Wrapf(err, "partition %d", i)
			}
			continue
		}

		if !frame.Has(alias.Valid) {
			return nil, scigoErrors.NewPartitionError(i, alias.Valid, "validation column present in the first partition but missing here")
		}
		valid, err := frame.Bools(alias.Valid)
		if err != nil {
			return nil, scigoErrors.NewPartitionError(i, alias.Valid, "validation column must be bool")
		}
		train := make([]bool, len(valid))
		for r, v := range valid {
			train[r] = !v
		}
		for _, side := range []struct {
			dst  Bucket
			mask []bool
		}{{c.Train, train}, {c.Valid, valid}} {
			sub, err := frame.Filter(side.mask)
			if err != nil {
				return nil, scigoErrors.Wrapf(err, "partition %d", i)
			}
			if err := appendSide(side.dst, sub, alias, appendFn); err != nil {
				return nil, scigoErrors.Wrapf(err, "partition %d", i)
			}
		}
		logger.Debug("partition cached",
			log.PartitionKey, i,
			log.SamplesKey, frame.Len(),
		)
	}

	logger.Info("partitions cached",
		log.PartitionsKey, c.Partitions,
		log.SamplesKey, c.Train.Rows(),
		log.ValidationRowsKey, c.Valid.Rows(),
	)
	return c, nil
}

func appendSide(dst Bucket, frame *Frame, alias Alias, appendFn AppendFunc) error {
	if frame.Len() == 0 {
		return nil
	}
	for _, role := range appendRoles {
		if err := appendFn(dst, frame, role, alias.Column(role)); err != nil {
			return err
		}
	}
	return nil
}
