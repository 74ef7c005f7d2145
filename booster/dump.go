package booster

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mllite/core/parallel"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
)

// parallelRows calls fn for every row index, split across nthread workers.
func parallelRows(nthread, rows int, fn func(i int)) {
	parallel.ParallelizeWithThreshold(nthread, rows, 256, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

func (b *Booster) featureName(f int) string {
	if f < len(b.featureNames) {
		return b.featureNames[f]
	}
	return "f" + strconv.Itoa(f)
}

// dumpNode is the JSON layout of one dumped node.
type dumpNode struct {
	NodeID         int        `json:"nodeid"`
	Depth          *int       `json:"depth,omitempty"`
	Split          string     `json:"split,omitempty"`
	SplitCondition *float64   `json:"split_condition,omitempty"`
	Yes            *int       `json:"yes,omitempty"`
	No             *int       `json:"no,omitempty"`
	Missing        *int       `json:"missing,omitempty"`
	Gain           *float64   `json:"gain,omitempty"`
	Leaf           *float64   `json:"leaf,omitempty"`
	Cover          *float64   `json:"cover,omitempty"`
	Children       []dumpNode `json:"children,omitempty"`
}

// DumpModel renders every tree as one string in "json" or "text" format.
// With withStats, gain and cover are included.
func (b *Booster) DumpModel(withStats bool, format string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.trees))
	for _, t := range b.trees {
		switch format {
		case "json":
			raw, err := json.Marshal(b.dumpJSON(t, 0, withStats))
			if err != nil {
				return nil, scigoErrors.Wrap(err, "Booster.DumpModel")
			}
			out = append(out, string(raw))
		case "text":
			var sb strings.Builder
			b.dumpText(&sb, t, 0, withStats)
			out = append(out, sb.String())
		default:
			return nil, scigoErrors.NewValidationError("format", "must be json or text", format)
		}
	}
	return out, nil
}

func (b *Booster) dumpJSON(t *Tree, id int, withStats bool) dumpNode {
	n := &t.Nodes[id]
	d := dumpNode{NodeID: n.ID}
	cover := n.Cover
	if n.IsLeaf() {
		leaf := n.Leaf
		d.Leaf = &leaf
		if withStats {
			d.Cover = &cover
		}
		return d
	}
	depth, thr := n.Depth, n.Threshold
	yes, no, missing := n.Left, n.Right, n.Missing()
	d.Depth = &depth
	d.Split = b.featureName(n.Feature)
	d.SplitCondition = &thr
	d.Yes, d.No, d.Missing = &yes, &no, &missing
	if withStats {
		gain := n.Gain
		d.Gain = &gain
		d.Cover = &cover
	}
	d.Children = []dumpNode{b.dumpJSON(t, n.Left, withStats), b.dumpJSON(t, n.Right, withStats)}
	return d
}

func (b *Booster) dumpText(sb *strings.Builder, t *Tree, id int, withStats bool) {
	n := &t.Nodes[id]
	sb.WriteString(strings.Repeat("\t", n.Depth))
	if n.IsLeaf() {
		fmt.Fprintf(sb, "%d:leaf=%s", n.ID, formatFloat(n.Leaf))
		if withStats {
			fmt.Fprintf(sb, ",cover=%s", formatFloat(n.Cover))
		}
		sb.WriteString("\n")
		return
	}
	fmt.Fprintf(sb, "%d:[%s<%s] yes=%d,no=%d,missing=%d",
		n.ID, b.featureName(n.Feature), formatFloat(n.Threshold), n.Left, n.Right, n.Missing())
	if withStats {
		fmt.Fprintf(sb, ",gain=%s,cover=%s", formatFloat(n.Gain), formatFloat(n.Cover))
	}
	sb.WriteString("\n")
	b.dumpText(sb, t, n.Left, withStats)
	b.dumpText(sb, t, n.Right, withStats)
}

// GetScore returns per-feature importance. importanceType is one of weight,
// gain, cover, total_gain and total_cover. Features never split on are absent.
func (b *Booster) GetScore(importanceType string) (map[string]float64, error) {
	switch importanceType {
	case "weight", "gain", "cover", "total_gain", "total_cover":
	default:
		return nil, scigoErrors.NewValidationError("importance_type", "unknown importance type", importanceType)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := map[string]float64{}
	gains := map[string]float64{}
	covers := map[string]float64{}
	for _, t := range b.trees {
		for i := range t.Nodes {
			n := &t.Nodes[i]
			if n.IsLeaf() {
				continue
			}
			name := b.featureName(n.Feature)
			counts[name]++
			gains[name] += n.Gain
			covers[name] += n.Cover
		}
	}

	out := make(map[string]float64, len(counts))
	for name, c := range counts {
		switch importanceType {
		case "weight":
			out[name] = c
		case "gain":
			out[name] = gains[name] / c
		case "cover":
			out[name] = covers[name] / c
		case "total_gain":
			out[name] = gains[name]
		case "total_cover":
			out[name] = covers[name]
		}
	}
	return out, nil
}
