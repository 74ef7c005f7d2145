package booster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stump splits f0 at 2; missing values go right.
func stump() *Tree {
	return &Tree{Nodes: []Node{
		{ID: 0, Feature: 0, Threshold: 2, Left: 1, Right: 2, Gain: 0.5, Cover: 3},
		newLeafNode(1, 1, -1, 1),
		newLeafNode(2, 1, 1, 2),
	}}
}

func TestTreePredict(t *testing.T) {
	tree := stump()
	assert.Equal(t, -1.0, tree.Predict([]float64{1.9}))
	assert.Equal(t, 1.0, tree.Predict([]float64{2}))
	assert.Equal(t, 1.0, tree.Predict([]float64{math.NaN()}))

	tree.Nodes[0].DefaultLeft = true
	assert.Equal(t, -1.0, tree.Predict([]float64{math.NaN()}))
	assert.Equal(t, 1, tree.Nodes[0].Missing())

	assert.Equal(t, 2, tree.NumLeaves())
	assert.Equal(t, 1, tree.MaxDepth())
}

func TestTreePruneCollapsesWeakSplits(t *testing.T) {
	tree := stump()
	sums := []gradPair{{2, 3}, {1, 1}, {1, 2}}

	assert.Equal(t, 0, tree.prune(0, 0.3, 1, 0, sums))
	assert.Len(t, tree.Nodes, 3)

	assert.Equal(t, 1, tree.prune(1, 0.3, 1, 0, sums))
	require.Len(t, tree.Nodes, 1)
	assert.True(t, tree.Nodes[0].IsLeaf())
	assert.InDelta(t, -0.5*0.3, tree.Nodes[0].Leaf, 1e-12)
}

func TestTreePruneKeepsStrongParents(t *testing.T) {
	tree := &Tree{Nodes: []Node{
		{ID: 0, Feature: 0, Threshold: 5, Left: 1, Right: 2, Gain: 5},
		{ID: 1, Depth: 1, Feature: 1, Threshold: 1, Left: 3, Right: 4, Gain: 0.1},
		newLeafNode(2, 1, 2, 1),
		newLeafNode(3, 2, -1, 1),
		newLeafNode(4, 2, 1, 1),
	}}
	sums := []gradPair{{0, 3}, {1, 2}, {-1, 1}, {0, 1}, {1, 1}}

	assert.Equal(t, 1, tree.prune(1, 1, 1, 0, sums))
	require.Len(t, tree.Nodes, 3)
	root := tree.Nodes[0]
	assert.Equal(t, 1, root.Left)
	assert.Equal(t, 2, root.Right)
	assert.True(t, tree.Nodes[1].IsLeaf())
	assert.InDelta(t, -1.0/3, tree.Nodes[1].Leaf, 1e-12)
	assert.Equal(t, 2.0, tree.Nodes[2].Leaf)
	for i, n := range tree.Nodes {
		assert.Equal(t, i, n.ID)
	}
}

func TestThresholdL1(t *testing.T) {
	assert.Equal(t, 1.5, thresholdL1(2, 0.5))
	assert.Equal(t, -1.5, thresholdL1(-2, 0.5))
	assert.Equal(t, 0.0, thresholdL1(0.3, 0.5))

	s := gradPair{g: 2, h: 3}
	assert.InDelta(t, -0.5, leafWeight(s, 1, 0), 1e-12)
	assert.InDelta(t, -0.25, leafWeight(s, 1, 1), 1e-12)
	assert.InDelta(t, 1.0, nodeScore(s, 1, 0), 1e-12)
}
