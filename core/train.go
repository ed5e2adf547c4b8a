package vjcascade

import (
	"math/rand"

	"github.com/esimov/vjcascade/pool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// RandomFeatureCount is the number of candidate features drawn for every tree node.
const RandomFeatureCount = 1024

// Trainer grows trees and appends boosted stages to a cascade.
type Trainer struct {
	// Pool runs the split evaluation and the hard sample mining.
	// A nil pool runs everything on the calling goroutine.
	Pool *pool.Pool
	// Rand draws the candidate features. It is used from a single goroutine only.
	Rand *rand.Rand
	// FeatureCount is the number of candidate features per node.
	FeatureCount int
	// Logger receives the training progress.
	Logger logrus.FieldLogger
}

// NewTrainer creates a trainer running on p with a feature generator seeded with seed.
func NewTrainer(p *pool.Pool, seed int64) *Trainer {
	return &Trainer{
		Pool:         p,
		Rand:         rand.New(rand.NewSource(seed)),
		FeatureCount: RandomFeatureCount,
		Logger:       logrus.StandardLogger(),
	}
}

// TrainTree grows a full tree of depth maxDepth on the weighted samples.
func (tr *Trainer) TrainTree(patches []ImageParams, labels, weights []float64, maxDepth int) (Tree, error) {
	if maxDepth < 1 || maxDepth > MaxTreeDepth {
		return Tree{}, errors.Wrapf(ErrInvalidArgument, "tree depth %d", maxDepth)
	}
	if len(patches) != len(labels) || len(labels) != len(weights) {
		return Tree{}, errors.Wrapf(ErrInvalidArgument,
			"%d patches, %d labels and %d weights", len(patches), len(labels), len(weights))
	}

	if tr.Rand == nil {
		tr.Rand = rand.New(rand.NewSource(1))
	}

	tree := NewTree(maxDepth)
	if err := tr.trainNode(&tree, 0, 0, maxDepth, patches, labels, weights); err != nil {
		return Tree{}, err
	}
	return tree, nil
}

func (tr *Trainer) trainNode(tree *Tree, nodeIdx, depth, maxDepth int, patches []ImageParams, labels, weights []float64) error {
	if depth == maxDepth {
		tree.Leafs[nodeIdx-len(tree.Nodes)] = float32(WeightedAverage(labels, weights))
		return nil
	}

	// Nothing left to split: keep the zero feature and fill the subtree anyway.
	if len(patches) <= 1 {
		tree.Nodes[nodeIdx] = Node{}
		if err := tr.trainNode(tree, 2*nodeIdx+1, depth+1, maxDepth, patches, labels, weights); err != nil {
			return err
		}
		return tr.trainNode(tree, 2*nodeIdx+2, depth+1, maxDepth, patches, labels, weights)
	}

	count := tr.FeatureCount
	if count < 1 {
		count = RandomFeatureCount
	}
	candidates := make([]Node, count)
	for i := range candidates {
		candidates[i] = RandomNode(tr.Rand)
	}

	errs, err := SplitErrors(tr.Pool, candidates, patches, labels, weights)
	if err != nil {
		return err
	}
	node := candidates[floats.MinIdx(errs)]
	tree.Nodes[nodeIdx] = node

	var (
		lPatches, rPatches []ImageParams
		lLabels, rLabels   []float64
		lWeights, rWeights []float64
	)
	for i, patch := range patches {
		if EvalFeature(node, patch) {
			rPatches = append(rPatches, patch)
			rLabels = append(rLabels, labels[i])
			rWeights = append(rWeights, weights[i])
		} else {
			lPatches = append(lPatches, patch)
			lLabels = append(lLabels, labels[i])
			lWeights = append(lWeights, weights[i])
		}
	}

	if err := tr.trainNode(tree, 2*nodeIdx+1, depth+1, maxDepth, lPatches, lLabels, lWeights); err != nil {
		return err
	}
	return tr.trainNode(tree, 2*nodeIdx+2, depth+1, maxDepth, rPatches, rLabels, rWeights)
}

func (tr *Trainer) logger() logrus.FieldLogger {
	if tr.Logger == nil {
		return logrus.StandardLogger()
	}
	return tr.Logger
}
