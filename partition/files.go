package partition

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"github.com/dustin/go-humanize"
	"github.com/golang/snappy"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

const (
	filePattern     = "part-*.csv"
	snappyExtension = ".snappy"
	vectorSeparator = ";"
)

// ReaderConfig controls ReadDir.
type ReaderConfig struct {
	// Alias decides the column kinds: the data column holds vectors, the
	// valid column holds bools, everything else is float unless Kinds says
	// otherwise.
	Alias Alias
	// Kinds overrides the kind of individual columns.
	Kinds map[string]Kind
	// Parallelism bounds concurrent file reads; <= 0 means one per file.
	Parallelism int
}

// DefaultReaderConfig reads DefaultAlias columns four files at a time.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{Alias: DefaultAlias, Parallelism: 4}
}

func (c ReaderConfig) kind(column string) Kind {
	if k, ok := c.Kinds[column]; ok {
		return k
	}
	switch column {
	case c.Alias.Data:
		return KindVector
	case c.Alias.Valid:
		return KindBool
	}
	return KindFloat
}

// ReadDir loads every part-*.csv and part-*.csv.snappy file of dir
// concurrently and returns an iterator over them in file-name order.
func ReadDir(ctx context.Context, dir string, cfg ReaderConfig) (Iterator, error) {
	logger := log.GetLoggerWithName("partition")

	plain, err := filepath.Glob(filepath.Join(dir, filePattern))
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "partition.ReadDir: %s", dir)
	}
	compressed, err := filepath.Glob(filepath.Join(dir, filePattern+snappyExtension))
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "partition.ReadDir: %s", dir)
	}
	paths := append(plain, compressed...)
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, scigoErrors.Wrapf(scigoErrors.ErrEmptyData, "partition.ReadDir: no partition files in %s", dir)
	}

	frames := make([]*Frame, len(paths))
	sizes := make([]int64, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Parallelism > 0 {
		g.SetLimit(cfg.Parallelism)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return scigoErrors.WithStack(err)
			}
			f, n, err := readFile(path, cfg)
			if err != nil {
				return scigoErrors.Wrapf(err, "partition %d (%s)", i, filepath.Base(path))
			}
			frames[i], sizes[i] = f, n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int64
	for _, n := range sizes {
		total += n
	}
	logger.Info("partition files read",
		log.PathKey, dir,
		log.PartitionsKey, len(frames),
		log.DataSizeKey, humanize.Bytes(uint64(total)),
	)
	return NewSliceIterator(frames...), nil
}

func readFile(path string, cfg ReaderConfig) (*Frame, int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	size := int64(len(raw))
	var r io.Reader = bytes.NewReader(raw)
	if strings.HasSuffix(path, snappyExtension) {
		r = snappy.NewReader(r)
	}
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, size, err
	}
	if len(records) == 0 {
		return nil, size, scigoErrors.NewValueError("partition.ReadDir", "missing header")
	}
	f, err := decodeRecords(records[0], records[1:], cfg)
	return f, size, err
}

func decodeRecords(header []string, rows [][]string, cfg ReaderConfig) (*Frame, error) {
	series := make([]Series, len(header))
	for j, name := range header {
		name = strings.TrimSpace(name)
		kind := cfg.kind(name)
		s := Series{Name: name, kind: kind}
		for i, rec := range rows {
			cell := strings.TrimSpace(rec[j])
			switch kind {
			case KindFloat:
				v, err := parseFloat(cell)
				if err != nil {
					return nil, cellError(i, name, err)
				}
				s.floats = append(s.floats, v)
			case KindVector:
				var vec []float64
				if cell != "" {
					for _, part := range strings.Split(cell, vectorSeparator) {
						v, err := parseFloat(strings.TrimSpace(part))
						if err != nil {
							return nil, cellError(i, name, err)
						}
						vec = append(vec, v)
					}
				}
				s.vectors = append(s.vectors, vec)
			case KindBool:
				v, err := strconv.ParseBool(cell)
				if err != nil {
					return nil, cellError(i, name, err)
				}
				s.bools = append(s.bools, v)
			}
		}
		series[j] = s
	}
	return NewFrame(series...)
}

func parseFloat(cell string) (float64, error) {
	if cell == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

func cellError(row int, column string, err error) error {
	return scigoErrors.Wrapf(err, "row %d column %q", row, column)
}

// WriteFile writes frame as CSV with a header row, snappy-framed when compress
// is set. Vector cells are ';'-separated.
func WriteFile(path string, frame *Frame, compress bool) error {
	var buf bytes.Buffer
	var w io.Writer = &buf
	var sw *snappy.Writer
	if compress {
		sw = snappy.NewBufferedWriter(&buf)
		w = sw
	}

	csvw := csv.NewWriter(w)
	if err := csvw.Write(frame.Columns()); err != nil {
		return scigoErrors.Wrap(err, "partition.WriteFile")
	}
	record := make([]string, len(frame.cols))
	for i := 0; i < frame.Len(); i++ {
		for j, s := range frame.cols {
			record[j] = formatCell(s, i)
		}
		if err := csvw.Write(record); err != nil {
			return scigoErrors.Wrap(err, "partition.WriteFile")
		}
	}
	csvw.Flush()
	if err := csvw.Error(); err != nil {
		return scigoErrors.Wrap(err, "partition.WriteFile")
	}
	if sw != nil {
		if err := sw.Close(); err != nil {
			return scigoErrors.Wrap(err, "partition.WriteFile")
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return scigoErrors.Wrapf(err, "partition.WriteFile: %s", path)
	}
	return nil
}

func formatCell(s Series, i int) string {
	switch s.kind {
	case KindVector:
		parts := make([]string, len(s.vectors[i]))
		for k, v := range s.vectors[i] {
			parts[k] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return strings.Join(parts, vectorSeparator)
	case KindBool:
		return strconv.FormatBool(s.bools[i])
	}
	return strconv.FormatFloat(s.floats[i], 'g', -1, 64)
}

// FileName returns the conventional name of partition i.
func FileName(i int, compress bool) string {
	name := fmt.Sprintf("part-%05d.csv", i)
	if compress {
		name += snappyExtension
	}
	return name
}

// SplitRows cuts X and y into parts contiguous partitions with DefaultAlias
// columns. When validFraction > 0 a seeded random share of the rows is
// flagged in the validation column.
func SplitRows(X mat.Matrix, y []float64, parts int, validFraction float64, seed int64) ([]*Frame, error) {
	rows, _ := X.Dims()
	if len(y) != rows {
		return nil, scigoErrors.NewDimensionError("partition.SplitRows", rows, len(y), 0)
	}
	if parts <= 0 || parts > rows {
		return nil, scigoErrors.NewValidationError("parts", "must be in [1, rows]", parts)
	}
	if validFraction < 0 || validFraction >= 1 {
		return nil, scigoErrors.NewValidationError("validFraction", "must be in [0, 1)", validFraction)
	}

	var flags []bool
	if validFraction > 0 {
		flags = make([]bool, rows)
		rng := rand.New(rand.NewSource(seed))
		for _, r := range rng.Perm(rows)[:int(validFraction*float64(rows))] {
			flags[r] = true
		}
	}

	frames := make([]*Frame, 0, parts)
	// The first rows%parts partitions take one extra row.
	base, extra := rows/parts, rows%parts
	for p, start := 0, 0; p < parts; p++ {
		end := start + base
		if p < extra {
			end++
		}
		vectors := make([][]float64, 0, end-start)
		for i := start; i < end; i++ {
			vectors = append(vectors, mat.Row(nil, i, X))
		}
		cols := []Series{
			Vectors(DefaultAlias.Data, vectors),
			Floats(DefaultAlias.Label, append([]float64(nil), y[start:end]...)),
		}
		if flags != nil {
			cols = append(cols, Bools(DefaultAlias.Valid, append([]bool(nil), flags[start:end]...)))
		}
		f, err := NewFrame(cols...)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
		start = end
	}
	return frames, nil
}
