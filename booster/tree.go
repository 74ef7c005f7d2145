package booster

import (
	"math"
)

// Node is one node of a regression tree. Leaves have Left == -1.
//
// An internal node sends a row left ("yes") when x[Feature] < Threshold,
// right ("no") otherwise, and to the default child when x[Feature] is NaN.
type Node struct {
	ID          int     `json:"nodeid"`
	Depth       int     `json:"depth"`
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"split_condition"`
	Left        int     `json:"yes"`
	Right       int     `json:"no"`
	DefaultLeft bool    `json:"default_left"`
	Gain        float64 `json:"gain"`
	Cover       float64 `json:"cover"`
	Leaf        float64 `json:"leaf"`
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// Missing returns the child taken by missing values.
func (n *Node) Missing() int {
	if n.DefaultLeft {
		return n.Left
	}
	return n.Right
}

// Tree is a regression tree for one output group. Nodes are indexed by ID.
type Tree struct {
	Group int    `json:"group"`
	Nodes []Node `json:"nodes"`
}

func newLeafNode(id, depth int, leaf, cover float64) Node {
	return Node{ID: id, Depth: depth, Left: -1, Right: -1, Leaf: leaf, Cover: cover}
}

// Predict walks the tree for one dense row and returns the leaf value.
func (t *Tree) Predict(row []float64) float64 {
	return t.Nodes[t.LeafIndex(row)].Leaf
}

// LeafIndex returns the ID of the leaf that row falls into.
func (t *Tree) LeafIndex(row []float64) int {
	id := 0
	for {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return id
		}
		v := row[n.Feature]
		switch {
		case math.IsNaN(v):
			id = n.Missing()
		case v < n.Threshold:
			id = n.Left
		default:
			id = n.Right
		}
	}
}

// NumLeaves counts the leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// MaxDepth returns the depth of the deepest node.
func (t *Tree) MaxDepth() int {
	d := 0
	for i := range t.Nodes {
		d = max(d, t.Nodes[i].Depth)
	}
	return d
}

// prune collapses splits whose children are both leaves and whose gain is
// below gamma, repeating until no such split remains.
func (t *Tree) prune(gamma, eta, lambda, alpha float64, sums []gradPair) int {
	if gamma <= 0 {
		return 0
	}
	pruned := 0
	var visit func(id int) bool
	visit = func(id int) bool {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return true
		}
		leftLeaf := visit(n.Left)
		rightLeaf := visit(n.Right)
		if leftLeaf && rightLeaf && n.Gain < gamma {
			n.Left, n.Right = -1, -1
			n.Gain = 0
			n.Leaf = leafWeight(sums[id], lambda, alpha) * eta
			pruned++
			return true
		}
		return false
	}
	visit(0)
	if pruned > 0 {
		t.compact()
	}
	return pruned
}

// compact renumbers reachable nodes in breadth-first order.
func (t *Tree) compact() {
	old := t.Nodes
	remap := map[int]int{0: 0}
	queue := []int{0}
	nodes := make([]Node, 0, len(old))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := old[id]
		n.ID = remap[id]
		if !n.IsLeaf() {
			remap[n.Left] = len(remap)
			remap[n.Right] = len(remap)
			queue = append(queue, n.Left, n.Right)
			n.Left, n.Right = remap[n.Left], remap[n.Right]
		}
		nodes = append(nodes, n)
	}
	t.Nodes = nodes
}
