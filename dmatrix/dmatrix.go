// Package dmatrix implements the training matrix consumed by the booster.
//
// A DMatrix holds dense float64 features where NaN marks a missing value,
// together with the per-row meta information used by boosting: label,
// instance weight and base margin. Matrices built through NewQuantile also
// carry precomputed histogram cuts so the booster can skip sketching.
package dmatrix

import (
	"fmt"
	"math"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Field names accepted by SetFloatInfo.
const (
	FieldLabel      = "label"
	FieldWeight     = "weight"
	FieldBaseMargin = "base_margin"
)

// DefaultMaxBin is used for cut computation when no max bin is configured.
const DefaultMaxBin = 256

// DMatrix is the boosting input: features plus label, weight and base margin.
type DMatrix struct {
	data *mat.Dense

	label      []float64
	weight     []float64
	baseMargin []float64

	featureNames []string
	cuts         *Cuts
	maxBin       int
	nthread      int
}

type config struct {
	label        []float64
	weight       []float64
	baseMargin   []float64
	missing      float64
	featureNames []string
	maxBin       int
	nthread      int
}

func defaultConfig() config {
	return config{missing: math.NaN(), maxBin: DefaultMaxBin}
}

// Option configures matrix construction.
type Option func(*config)

// WithLabel sets the per-row label.
func WithLabel(label []float64) Option {
	return func(c *config) { c.label = label }
}

// WithWeight sets the per-row instance weight.
func WithWeight(weight []float64) Option {
	return func(c *config) { c.weight = weight }
}

// WithBaseMargin sets the initial margin. Its length must be rows or
// rows*groups, laid out row-major.
func WithBaseMargin(margin []float64) Option {
	return func(c *config) { c.baseMargin = margin }
}

// WithMissing sets the value that marks a missing entry. It is replaced by NaN.
func WithMissing(missing float64) Option {
	return func(c *config) { c.missing = missing }
}

// WithFeatureNames names the feature columns.
func WithFeatureNames(names []string) Option {
	return func(c *config) { c.featureNames = names }
}

// WithMaxBin sets the number of histogram bins used by NewQuantile.
func WithMaxBin(maxBin int) Option {
	return func(c *config) { c.maxBin = maxBin }
}

// WithNThread bounds the goroutines used while computing cuts.
func WithNThread(n int) Option {
	return func(c *config) { c.nthread = n }
}

// New copies data into a new matrix and attaches the optional meta info.
func New(data mat.Matrix, opts ...Option) (*DMatrix, error) {
	if data == nil {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "dmatrix.New")
	}
	rows, cols := data.Dims()
	if rows == 0 || cols == 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "dmatrix.New")
	}
	if _, ok := data.(*mat.Dense); !ok {
		scigoErrors.Warn(scigoErrors.NewDataConversionWarning(fmt.Sprintf("%T", data), "*mat.Dense", "copied into dense row-major storage"))
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return build(mat.DenseCopyOf(data), cfg)
}

// FromMat builds a matrix from a row-major buffer. Entries equal to missing
// are treated as missing.
func FromMat(values []float64, rows, cols int, missing float64, opts ...Option) (*DMatrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "dmatrix.FromMat")
	}
	if len(values) != rows*cols {
		return nil, scigoErrors.NewDimensionError("dmatrix.FromMat", rows*cols, len(values), 0)
	}
	buf := make([]float64, len(values))
	copy(buf, values)
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.missing = missing
	return build(mat.NewDense(rows, cols, buf), cfg)
}

// build takes ownership of data.
func build(data *mat.Dense, cfg config) (*DMatrix, error) {
	rows, cols := data.Dims()
	if !math.IsNaN(cfg.missing) {
		raw := data.RawMatrix()
		for i := 0; i < rows; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+cols]
			for j, v := range row {
				if v == cfg.missing {
					row[j] = math.NaN()
				}
			}
		}
	}
	if cfg.maxBin <= 1 {
		return nil, scigoErrors.NewValidationError("max_bin", "must be at least 2", cfg.maxBin)
	}

	d := &DMatrix{data: data, maxBin: cfg.maxBin, nthread: cfg.nthread}
	if err := d.SetFloatInfo(FieldLabel, cfg.label); err != nil {
		return nil, err
	}
	if err := d.SetFloatInfo(FieldWeight, cfg.weight); err != nil {
		return nil, err
	}
	if err := d.SetFloatInfo(FieldBaseMargin, cfg.baseMargin); err != nil {
		return nil, err
	}
	if err := d.SetFeatureNames(cfg.featureNames); err != nil {
		return nil, err
	}
	return d, nil
}

// SetFloatInfo sets label, weight or base_margin. A nil slice clears the field.
func (d *DMatrix) SetFloatInfo(field string, values []float64) error {
	rows := d.NumRow()
	var cp []float64
	if values != nil {
		cp = make([]float64, len(values))
		copy(cp, values)
	}
	switch field {
	case FieldLabel:
		if cp != nil && len(cp) != rows {
			return scigoErrors.NewDimensionError("SetFloatInfo(label)", rows, len(cp), 0)
		}
		d.label = cp
	case FieldWeight:
		if cp != nil && len(cp) != rows {
			return scigoErrors.NewDimensionError("SetFloatInfo(weight)", rows, len(cp), 0)
		}
		for _, w := range cp {
			if w < 0 || math.IsNaN(w) {
				return scigoErrors.NewValidationError("weight", "weights must be non-negative", w)
			}
		}
		d.weight = cp
	case FieldBaseMargin:
		if cp != nil && (len(cp) == 0 || len(cp)%rows != 0) {
			return scigoErrors.NewDimensionError("SetFloatInfo(base_margin)", rows, len(cp), 0)
		}
		d.baseMargin = cp
	default:
		return scigoErrors.NewValidationError("field", "unknown float info field", field)
	}
	return nil
}

// SetFeatureNames names the columns; nil clears the names.
func (d *DMatrix) SetFeatureNames(names []string) error {
	if names == nil {
		d.featureNames = nil
		return nil
	}
	if len(names) != d.NumCol() {
		return scigoErrors.NewDimensionError("SetFeatureNames", d.NumCol(), len(names), 1)
	}
	d.featureNames = append([]string(nil), names...)
	return nil
}

// NumRow returns the number of rows.
func (d *DMatrix) NumRow() int {
	r, _ := d.data.Dims()
	return r
}

// NumCol returns the number of feature columns.
func (d *DMatrix) NumCol() int {
	_, c := d.data.Dims()
	return c
}

// Data returns the feature matrix. Callers must not modify it.
func (d *DMatrix) Data() *mat.Dense { return d.data }

// At returns the feature value at (i, j); NaN when missing.
func (d *DMatrix) At(i, j int) float64 { return d.data.At(i, j) }

// Label returns the labels or nil. Callers must not modify the slice.
func (d *DMatrix) Label() []float64 { return d.label }

// Weight returns the instance weights or nil.
func (d *DMatrix) Weight() []float64 { return d.weight }

// BaseMargin returns the row-major base margin or nil.
func (d *DMatrix) BaseMargin() []float64 { return d.baseMargin }

// BaseMarginGroups returns the number of margin values per row, 0 when unset.
func (d *DMatrix) BaseMarginGroups() int {
	if d.baseMargin == nil {
		return 0
	}
	return len(d.baseMargin) / d.NumRow()
}

// FeatureNames returns the column names or nil.
func (d *DMatrix) FeatureNames() []string { return d.featureNames }

// Cuts returns the precomputed histogram cuts or nil.
func (d *DMatrix) Cuts() *Cuts { return d.cuts }

// MaxBin returns the configured bin count.
func (d *DMatrix) MaxBin() int { return d.maxBin }

// NThread returns the configured thread count (0 means all cores).
func (d *DMatrix) NThread() int { return d.nthread }

// Slice returns a new matrix holding the given rows in order.
func (d *DMatrix) Slice(rows []int) (*DMatrix, error) {
	if len(rows) == 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "DMatrix.Slice")
	}
	n, cols := d.data.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	groups := d.BaseMarginGroups()
	var label, weight, margin []float64
	for k, r := range rows {
		if r < 0 || r >= n {
			return nil, scigoErrors.NewValueError("DMatrix.Slice", "row index out of range")
		}
		out.SetRow(k, d.data.RawRowView(r))
		if d.label != nil {
			label = append(label, d.label[r])
		}
		if d.weight != nil {
			weight = append(weight, d.weight[r])
		}
		if groups > 0 {
			margin = append(margin, d.baseMargin[r*groups:(r+1)*groups]...)
		}
	}
	return &DMatrix{
		data:         out,
		label:        label,
		weight:       weight,
		baseMargin:   margin,
		featureNames: d.featureNames,
		cuts:         d.cuts,
		maxBin:       d.maxBin,
		nthread:      d.nthread,
	}, nil
}
