package vjcascade

// MaxTreeDepth is the deepest tree a cascade may hold.
const MaxTreeDepth = 16

// Cascade is an ordered list of boosted trees sharing the same depth.
// A stage is a run of trees closed by the first tree with a real threshold.
type Cascade struct {
	TreeDepth        int
	WidthHeightRatio float32
	Trees            []Tree
}

// NewCascade creates an empty cascade.
func NewCascade(treeDepth int, widthHeightRatio float32) *Cascade {
	return &Cascade{
		TreeDepth:        treeDepth,
		WidthHeightRatio: widthHeightRatio,
	}
}

// StageCount returns the number of completed stages.
func (c *Cascade) StageCount() int {
	var n int
	for _, t := range c.Trees {
		if t.EndsStage() {
			n++
		}
	}
	return n
}

// Stages returns the number of trees of every completed stage.
// Trailing trees without a stage threshold are not counted.
func (c *Cascade) Stages() []int {
	var (
		stages []int
		trees  int
	)
	for _, t := range c.Trees {
		trees++
		if t.EndsStage() {
			stages = append(stages, trees)
			trees = 0
		}
	}
	return stages
}

// ClassifyPatch runs the patch through the cascade. It returns false as soon as the
// accumulated score falls below the threshold of a tree, otherwise true and the
// score. Every threshold other than the sentinel is checked.
func (c *Cascade) ClassifyPatch(patch ImageParams) (bool, float32) {
	var conf float32
	for _, t := range c.Trees {
		conf += EvalTree(t, patch)
		if t.Threshold != ThresholdSentinel && conf < t.Threshold {
			return false, conf
		}
	}
	return true, conf
}
