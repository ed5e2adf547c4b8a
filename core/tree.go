package vjcascade

import "math/bits"

// ThresholdSentinel marks a tree which does not end a stage.
const ThresholdSentinel float32 = -1000.0

// stageThresholdMin is the lowest threshold value considered a real stage threshold.
const stageThresholdMin float32 = -999.0

// Tree is a full binary decision tree stored in flat arrays. The children of
// node i are 2i+1 (test failed) and 2i+2 (test passed); the leaf reached from
// node i at the last level is Leafs[i-len(Nodes)].
type Tree struct {
	Nodes     []Node
	Leafs     []float32
	Threshold float32
}

// NewTree allocates a tree of the given depth with zero nodes and leaves and
// the sentinel threshold.
func NewTree(depth int) Tree {
	return Tree{
		Nodes:     make([]Node, 1<<depth-1),
		Leafs:     make([]float32, 1<<depth),
		Threshold: ThresholdSentinel,
	}
}

// Depth returns the number of node levels of the tree.
func (t Tree) Depth() int {
	return bits.Len(uint(len(t.Nodes)))
}

// EndsStage reports whether the tree carries a stage rejection threshold.
func (t Tree) EndsStage() bool {
	return t.Threshold >= stageThresholdMin
}

// EvalTree traverses the tree with the patch and returns the reached leaf value.
func EvalTree(t Tree, patch ImageParams) float32 {
	idx := 0
	for d := t.Depth(); d > 0; d-- {
		if EvalFeature(t.Nodes[idx], patch) {
			idx = 2*idx + 2
		} else {
			idx = 2*idx + 1
		}
	}
	return t.Leafs[idx-len(t.Nodes)]
}
