package dmatrix

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/mllite/core/parallel"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Cuts holds per-feature histogram boundaries.
//
// Values[f] is ascending; a value v falls into the first bin b with
// v < Values[f][b]. The last boundary is strictly above the feature maximum,
// so every present value maps to a bin. Features with no present value have
// no bins and are never split on.
type Cuts struct {
	Values [][]float64
	Min    []float64
}

// NumFeature returns the number of features covered.
func (c *Cuts) NumFeature() int { return len(c.Values) }

// NumBins returns the number of bins of feature f.
func (c *Cuts) NumBins(f int) int { return len(c.Values[f]) }

// TotalBins returns the sum of bins over all features.
func (c *Cuts) TotalBins() int {
	n := 0
	for _, v := range c.Values {
		n += len(v)
	}
	return n
}

// Search returns the bin of value v for feature f, or -1 when v is missing.
func (c *Cuts) Search(f int, v float64) int {
	if math.IsNaN(v) {
		return -1
	}
	cuts := c.Values[f]
	if len(cuts) == 0 {
		return -1
	}
	b := sort.Search(len(cuts), func(i int) bool { return v < cuts[i] })
	if b == len(cuts) {
		// above the sketch, e.g. unseen value at predict time
		b = len(cuts) - 1
	}
	return b
}

// Threshold returns the split value that separates bins [0, bin] from the rest:
// rows with x < Threshold(f, bin) go left.
func (c *Cuts) Threshold(f, bin int) float64 {
	return c.Values[f][bin]
}

// ComputeCuts sketches every column of data. Features with at most maxBin
// distinct values get one bin per value; otherwise interior boundaries are
// weighted empirical quantiles.
func ComputeCuts(data mat.Matrix, weight []float64, maxBin int) *Cuts {
	return computeCuts(data, weight, maxBin, 0)
}

func computeCuts(data mat.Matrix, weight []float64, maxBin, nthread int) *Cuts {
	if maxBin < 2 {
		maxBin = DefaultMaxBin
	}
	rows, cols := data.Dims()
	cuts := &Cuts{Values: make([][]float64, cols), Min: make([]float64, cols)}

	parallel.ParallelizeN(nthread, cols, func(start, end int) {
		vals := make([]entry, 0, rows)
		for j := start; j < end; j++ {
			vals = vals[:0]
			for i := 0; i < rows; i++ {
				v := data.At(i, j)
				if math.IsNaN(v) {
					continue
				}
				w := 1.0
				if weight != nil {
					w = weight[i]
				}
				vals = append(vals, entry{v: v, w: w})
			}
			cuts.Values[j], cuts.Min[j] = featureCuts(vals, maxBin)
		}
	})
	return cuts
}

type entry struct{ v, w float64 }

func featureCuts(vals []entry, maxBin int) ([]float64, float64) {
	if len(vals) == 0 {
		return nil, math.NaN()
	}
	sort.Slice(vals, func(a, b int) bool { return vals[a].v < vals[b].v })

	// collapse duplicates, summing weights
	xs := make([]float64, 0, len(vals))
	ws := make([]float64, 0, len(vals))
	for _, e := range vals {
		if n := len(xs); n > 0 && xs[n-1] == e.v {
			ws[n-1] += e.w
			continue
		}
		xs = append(xs, e.v)
		ws = append(ws, e.w)
	}
	minV, maxV := xs[0], xs[len(xs)-1]

	var out []float64
	if len(xs) <= maxBin {
		out = append(out, xs[1:]...)
	} else {
		total := 0.0
		for _, w := range ws {
			total += w
		}
		if total <= 0 {
			ws = nil
		}
		for k := 1; k < maxBin; k++ {
			q := stat.Quantile(float64(k)/float64(maxBin), stat.Empirical, xs, ws)
			if q <= minV {
				continue
			}
			if n := len(out); n > 0 && out[n-1] >= q {
				continue
			}
			out = append(out, q)
		}
	}
	out = append(out, maxV+math.Max(math.Abs(maxV)*1e-5, 1e-5))
	return out, minV
}
