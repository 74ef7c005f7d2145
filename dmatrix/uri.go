package dmatrix

import (
	"encoding/csv"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// URISpec is the parsed form of a "path?format=csv&label_column=k" URI.
type URISpec struct {
	Path        string
	Format      string
	LabelColumn int // -1 when the file has no label column
	Header      bool
}

// ParseURI splits a data URI into path and loader arguments. The format
// defaults to csv; only csv is supported.
func ParseURI(uri string) (URISpec, error) {
	spec := URISpec{Format: "csv", LabelColumn: -1}
	path, rawQuery, _ := strings.Cut(uri, "?")
	spec.Path = path
	if path == "" {
		return spec, scigoErrors.NewValueError("dmatrix.ParseURI", "empty path")
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return spec, scigoErrors.Wrapf(err, "dmatrix.ParseURI: %s", uri)
	}
	if f := q.Get("format"); f != "" {
		spec.Format = f
	}
	if spec.Format != "csv" {
		return spec, scigoErrors.NewValidationError("format", "only csv is supported", spec.Format)
	}
	if lc := q.Get("label_column"); lc != "" {
		spec.LabelColumn, err = strconv.Atoi(lc)
		if err != nil || spec.LabelColumn < 0 {
			return spec, scigoErrors.NewValidationError("label_column", "must be a non-negative integer", lc)
		}
	}
	if h := q.Get("header"); h != "" {
		spec.Header, err = strconv.ParseBool(h)
		if err != nil {
			return spec, scigoErrors.NewValidationError("header", "must be a boolean", h)
		}
	}
	for key := range q {
		switch key {
		case "format", "label_column", "header":
		default:
			scigoErrors.Warn(scigoErrors.NewUnusedParameterWarning("dmatrix.FromURI", key, q.Get(key)))
		}
	}
	return spec, nil
}

// FromURI loads a CSV file into a matrix. Empty cells are missing. With
// label_column set, that column becomes the label; with header=true the
// first record names the features.
func FromURI(uri string, opts ...Option) (*DMatrix, error) {
	spec, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(spec.Path)
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "dmatrix.FromURI: open %s", spec.Path)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "dmatrix.FromURI: read %s", spec.Path)
	}
	var header []string
	if spec.Header && len(records) > 0 {
		header, records = records[0], records[1:]
	}
	if len(records) == 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "dmatrix.FromURI")
	}

	width := len(records[0])
	if spec.LabelColumn >= width {
		return nil, scigoErrors.NewValidationError("label_column", "out of range", spec.LabelColumn)
	}
	cols := width
	if spec.LabelColumn >= 0 {
		cols--
	}
	if cols == 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "dmatrix.FromURI: no feature columns")
	}

	data := mat.NewDense(len(records), cols, nil)
	var label []float64
	if spec.LabelColumn >= 0 {
		label = make([]float64, len(records))
	}
	for i, rec := range records {
		if len(rec) != width {
			return nil, scigoErrors.NewDimensionError("dmatrix.FromURI", width, len(rec), 1)
		}
		j := 0
		for k, cell := range rec {
			v, err := parseCell(cell)
			if err != nil {
				return nil, scigoErrors.Wrapf(err, "dmatrix.FromURI: row %d column %d", i, k)
			}
			if k == spec.LabelColumn {
				label[i] = v
				continue
			}
			data.Set(i, j, v)
			j++
		}
	}

	var names []string
	if header != nil && len(header) == width {
		for k, h := range header {
			if k != spec.LabelColumn {
				names = append(names, strings.TrimSpace(h))
			}
		}
	}

	cfg := defaultConfig()
	cfg.label = label
	cfg.featureNames = names
	for _, opt := range opts {
		opt(&cfg)
	}
	return build(data, cfg)
}

func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}
