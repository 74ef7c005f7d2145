package booster

import (
	"math"

	"github.com/YuminosukeSato/mllite/core/parallel"
	"github.com/YuminosukeSato/mllite/dmatrix"
)

// rtEps is the smallest loss change that justifies a split.
const rtEps = 1e-6

type gradPair struct {
	g, h float64
}

func (a gradPair) add(b gradPair) gradPair { return gradPair{a.g + b.g, a.h + b.h} }
func (a gradPair) sub(b gradPair) gradPair { return gradPair{a.g - b.g, a.h - b.h} }

func thresholdL1(w, alpha float64) float64 {
	switch {
	case w > alpha:
		return w - alpha
	case w < -alpha:
		return w + alpha
	}
	return 0
}

// leafWeight is the regularised optimal weight of a node before shrinkage.
func leafWeight(s gradPair, lambda, alpha float64) float64 {
	if s.h+lambda <= 0 {
		return 0
	}
	return -thresholdL1(s.g, alpha) / (s.h + lambda)
}

// nodeScore is the loss reduction contributed by a node at its optimal weight.
func nodeScore(s gradPair, lambda, alpha float64) float64 {
	if s.h+lambda <= 0 {
		return 0
	}
	t := thresholdL1(s.g, alpha)
	return t * t / (s.h + lambda)
}

// binnedMatrix stores the histogram bin of every entry, row-major; -1 is missing.
type binnedMatrix struct {
	rows, cols int
	index      []int32
	cuts       *dmatrix.Cuts
}

func newBinnedMatrix(d *dmatrix.DMatrix, cuts *dmatrix.Cuts, nthread int) *binnedMatrix {
	rows, cols := d.NumRow(), d.NumCol()
	b := &binnedMatrix{rows: rows, cols: cols, index: make([]int32, rows*cols), cuts: cuts}
	data := d.Data()
	parallel.ParallelizeN(nthread, rows, func(start, end int) {
		for i := start; i < end; i++ {
			row := data.RawRowView(i)
			for j, v := range row {
				b.index[i*cols+j] = int32(cuts.Search(j, v))
			}
		}
	})
	return b
}

func (b *binnedMatrix) bin(row, feature int) int {
	return int(b.index[row*b.cols+feature])
}

type splitCandidate struct {
	feature     int
	bin         int
	gain        float64
	defaultLeft bool
	left, right gradPair
}

func (c splitCandidate) better(o splitCandidate) bool {
	if c.gain != o.gain {
		return c.gain > o.gain
	}
	return c.feature < o.feature
}

// grower builds one tree depth-wise from histograms over quantile bins.
type grower struct {
	params   Params
	bins     *binnedMatrix
	gpair    []gradPair
	features []int
}

type expandEntry struct {
	id    int
	depth int
	rows  []int
}

// grow returns the tree and the gradient sum of every node, indexed by node ID.
func (g *grower) grow(rows []int) (*Tree, []gradPair) {
	p := g.params
	total := gradPair{}
	for _, r := range rows {
		total = total.add(g.gpair[r])
	}

	tree := &Tree{Nodes: []Node{newLeafNode(0, 0, 0, total.h)}}
	sums := []gradPair{total}
	frontier := []expandEntry{{id: 0, depth: 0, rows: rows}}

	for len(frontier) > 0 {
		var next []expandEntry
		for _, e := range frontier {
			sum := sums[e.id]
			var split splitCandidate
			ok := false
			if p.MaxDepth == 0 || e.depth < p.MaxDepth {
				split, ok = g.evaluate(e.rows, sum)
			}
			if !ok {
				n := &tree.Nodes[e.id]
				n.Leaf = leafWeight(sum, p.Lambda, p.Alpha) * p.Eta
				continue
			}

			leftID, rightID := len(tree.Nodes), len(tree.Nodes)+1
			n := &tree.Nodes[e.id]
			n.Feature = split.feature
			n.Threshold = g.bins.cuts.Threshold(split.feature, split.bin)
			n.DefaultLeft = split.defaultLeft
			n.Gain = split.gain
			n.Left, n.Right = leftID, rightID

			tree.Nodes = append(tree.Nodes,
				newLeafNode(leftID, e.depth+1, 0, split.left.h),
				newLeafNode(rightID, e.depth+1, 0, split.right.h),
			)
			sums = append(sums, split.left, split.right)

			leftRows, rightRows := g.partition(e.rows, split)
			next = append(next,
				expandEntry{id: leftID, depth: e.depth + 1, rows: leftRows},
				expandEntry{id: rightID, depth: e.depth + 1, rows: rightRows},
			)
		}
		frontier = next
	}
	return tree, sums
}

// evaluate finds the best split of the rows among the sampled features.
func (g *grower) evaluate(rows []int, total gradPair) (splitCandidate, bool) {
	p := g.params
	parentScore := nodeScore(total, p.Lambda, p.Alpha)
	candidates := make([]splitCandidate, len(g.features))
	found := make([]bool, len(g.features))

	parallel.ParallelizeWithThreshold(p.NThread, len(g.features), 1, func(start, end int) {
		for k := start; k < end; k++ {
			f := g.features[k]
			nb := g.bins.cuts.NumBins(f)
			if nb < 2 {
				continue
			}
			hist := make([]gradPair, nb)
			present := gradPair{}
			nMissing := 0
			for _, r := range rows {
				if b := g.bins.bin(r, f); b >= 0 {
					hist[b] = hist[b].add(g.gpair[r])
					present = present.add(g.gpair[r])
				} else {
					nMissing++
				}
			}
			missing := gradPair{}
			hasMissing := nMissing > 0
			if hasMissing {
				missing = total.sub(present)
			}

			best := splitCandidate{feature: f, gain: rtEps}
			left := gradPair{}
			for b := 0; b < nb-1; b++ {
				left = left.add(hist[b])
				// missing values follow the left branch
				l := left.add(missing)
				if c, ok := g.tryCandidate(f, b, true, l, total.sub(l), parentScore); ok && c.gain > best.gain {
					best, found[k] = c, true
				}
				if !hasMissing {
					continue
				}
				// missing values follow the right branch
				if c, ok := g.tryCandidate(f, b, false, left, total.sub(left), parentScore); ok && c.gain > best.gain {
					best, found[k] = c, true
				}
			}
			candidates[k] = best
		}
	})

	var best splitCandidate
	ok := false
	for k, c := range candidates {
		if !found[k] {
			continue
		}
		if !ok || c.better(best) {
			best, ok = c, true
		}
	}
	if ok && (math.IsNaN(best.gain) || math.IsInf(best.gain, 0)) {
		return best, false
	}
	return best, ok
}

func (g *grower) tryCandidate(f, b int, defaultLeft bool, l, r gradPair, parentScore float64) (splitCandidate, bool) {
	p := g.params
	if l.h < p.MinChildWeight || r.h < p.MinChildWeight {
		return splitCandidate{}, false
	}
	gain := nodeScore(l, p.Lambda, p.Alpha) + nodeScore(r, p.Lambda, p.Alpha) - parentScore
	return splitCandidate{feature: f, bin: b, gain: gain, defaultLeft: defaultLeft, left: l, right: r}, true
}

func (g *grower) partition(rows []int, s splitCandidate) (left, right []int) {
	for _, r := range rows {
		b := g.bins.bin(r, s.feature)
		goLeft := b <= s.bin
		if b < 0 {
			goLeft = s.defaultLeft
		}
		if goLeft {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}
