package vjcascade_test

import (
	"io"
	"sync"
	"testing"

	"github.com/esimov/vjcascade/config"
	vj "github.com/esimov/vjcascade/core"
	"github.com/esimov/vjcascade/pool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func quietTrainer(p *pool.Pool, seed int64) *vj.Trainer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tr := vj.NewTrainer(p, seed)
	tr.FeatureCount = 64
	tr.Logger = logger
	return tr
}

func TestBoost_WeightSamplesShouldBalanceClasses(t *testing.T) {
	assert := assert.New(t)

	labels := []float64{1, 1, 1, -1}
	weights := vj.WeightSamples(labels, make([]float64, 4))

	assert.InDelta(1.0, floats.Sum(weights), 1e-12)
	assert.InDelta(0.5, floats.Sum(weights[:3]), 1e-12)
	assert.InDelta(0.5, weights[3], 1e-12)

	// Confident correct samples lose weight, confident mistakes gain it.
	weights = vj.WeightSamples([]float64{1, 1, -1, -1}, []float64{2, -2, -2, 2})
	assert.Less(weights[0], weights[1])
	assert.Less(weights[2], weights[3])
	assert.InDelta(1.0, floats.Sum(weights), 1e-12)
}

func TestBoost_AppendStageShouldSetOnlyLastThreshold(t *testing.T) {
	assert := assert.New(t)

	patches, labels := trainingSet(30, 1)
	c := vj.NewCascade(2, 1)
	c.Trees = append(c.Trees, vj.NewTree(2))
	c.Trees[0].Threshold = -5

	// A zero false positive target forces every tree of the budget unless separation is perfect.
	report, err := quietTrainer(nil, 1).AppendStage(c, patches, labels, make([]float64, len(labels)), 0.99, 0, 4)
	require.NoError(t, err)

	added := c.Trees[1:]
	require.Len(t, added, report.Trees)
	require.GreaterOrEqual(t, report.Trees, 1)
	assert.LessOrEqual(report.Trees, 4)

	for i, tree := range added[:len(added)-1] {
		assert.Equalf(vj.ThresholdSentinel, tree.Threshold, "tree %d", i)
	}
	assert.Equal(report.Threshold, added[len(added)-1].Threshold)
	assert.NotEqual(vj.ThresholdSentinel, report.Threshold)
	assert.Equal(float32(-5), c.Trees[0].Threshold)
	assert.Equal(2, c.StageCount())
	assert.GreaterOrEqual(report.TPR, 0.99)
}

func TestBoost_AppendStageShouldStopAtMaxFPR(t *testing.T) {
	patches, labels := trainingSet(30, 2)
	c := vj.NewCascade(3, 1)

	report, err := quietTrainer(nil, 2).AppendStage(c, patches, labels, make([]float64, len(labels)), 0.9, 0.5, 64)
	require.NoError(t, err)
	assert.LessOrEqual(t, report.FPR, 0.5)
	assert.Less(t, report.Trees, 64)
}

func TestBoost_AppendStageShouldRejectBadInput(t *testing.T) {
	patches, labels := trainingSet(5, 3)
	tr := quietTrainer(nil, 3)
	c := vj.NewCascade(2, 1)
	outputs := make([]float64, len(labels))

	_, err := tr.AppendStage(c, patches[:5], labels[:5], outputs[:5], 0.9, 0.5, 4)
	assert.ErrorIs(t, err, vj.ErrInvalidArgument, "positives only")

	_, err = tr.AppendStage(c, patches, labels, outputs, 1.5, 0.5, 4)
	assert.ErrorIs(t, err, vj.ErrInvalidArgument)

	_, err = tr.AppendStage(c, patches, labels, outputs, 0.9, 0.5, 0)
	assert.ErrorIs(t, err, vj.ErrInvalidArgument)

	_, err = tr.AppendStage(c, patches, labels[:3], outputs, 0.9, 0.5, 4)
	assert.ErrorIs(t, err, vj.ErrInvalidArgument)

	assert.Empty(t, c.Trees)
}

func TestBoost_TryAppendStageShouldStopWhenNegativesAreRejected(t *testing.T) {
	c := rejectAll()

	added, _, err := quietTrainer(nil, 4).TryAppendStage(c, objectSource(10, 4), newNoiseSource(4), 0.99, 0.5, 1e-3, 4)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, c.Trees, 1)
}

func TestBoost_TryAppendStageShouldAddStage(t *testing.T) {
	p := pool.New(4)
	defer p.Close()

	c := vj.NewCascade(2, 1)
	added, report, err := quietTrainer(p, 5).TryAppendStage(c, objectSource(20, 5), newNoiseSource(5), 0.95, 0.5, 1e-3, 8)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, c.StageCount())
	assert.Equal(t, report.Trees, len(c.Trees))
}

func TestBoost_TrainShouldSaveEveryStage(t *testing.T) {
	cfg := config.Default()
	cfg.MaxTreeDepth = 2
	cfg.MaxTreeCount = 8
	cfg.MinTPRs = []float64{0.95, 0.95, 0.95}

	c := vj.NewCascade(cfg.MaxTreeDepth, cfg.WidthHeightRatio)
	var saved int
	reports, err := quietTrainer(nil, 6).Train(c, objectSource(20, 6), newNoiseSource(6), cfg, func(*vj.Cascade) error {
		saved++
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, reports)
	assert.Equal(t, len(reports), saved)
	assert.Equal(t, len(reports), c.StageCount())
	assert.LessOrEqual(t, len(reports), len(cfg.MinTPRs))

	for i, r := range reports {
		assert.Equal(t, i, r.Stage)
	}
}

func TestBoost_AppendStageShouldTrainOneTreeWhenFPRAlreadyMet(t *testing.T) {
	assert := assert.New(t)
	patches, labels := trainingSet(20, 4)

	empty := vj.NewCascade(2, 1)
	report, err := quietTrainer(nil, 4).AppendStage(empty, patches, labels, make([]float64, len(labels)), 0.9, 1, 4)
	require.NoError(t, err)
	assert.Equal(1, report.Trees)
	require.Len(t, empty.Trees, 1)
	assert.Equal(report.Threshold, empty.Trees[0].Threshold)

	c := vj.NewCascade(2, 1)
	c.Trees = append(c.Trees, vj.NewTree(2))
	c.Trees[0].Threshold = -5

	report, err = quietTrainer(nil, 4).AppendStage(c, patches, labels, make([]float64, len(labels)), 0.9, 1, 4)
	require.NoError(t, err)
	assert.Equal(1, report.Trees)
	require.Len(t, c.Trees, 2)
	assert.Equal(float32(-5), c.Trees[0].Threshold)
	assert.Equal(report.Threshold, c.Trees[1].Threshold)
	assert.Equal(2, c.StageCount())
}

// closeOnTree closes the pool once the first tree of a stage was logged.
type closeOnTree struct {
	pool *pool.Pool
	once sync.Once
}

func (h *closeOnTree) Levels() []logrus.Level { return []logrus.Level{logrus.DebugLevel} }

func (h *closeOnTree) Fire(e *logrus.Entry) error {
	if e.Message == "tree added" {
		h.once.Do(h.pool.Close)
	}
	return nil
}

func TestBoost_AppendStageShouldRollBackOnTreeFailure(t *testing.T) {
	assert := assert.New(t)

	p := pool.New(2)
	defer p.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(&closeOnTree{pool: p})

	tr := vj.NewTrainer(p, 5)
	tr.FeatureCount = 16
	tr.Logger = logger

	// The same patch labeled both ways keeps the false positive rate above zero
	// at a full true positive rate, so a second tree is always needed.
	patches, labels := trainingSet(20, 5)
	patches = append(patches, patches[0])
	labels = append(labels, -1)

	c := vj.NewCascade(2, 1)
	c.Trees = append(c.Trees, vj.NewTree(2))
	c.Trees[0].Threshold = -5

	_, err := tr.AppendStage(c, patches, labels, make([]float64, len(labels)), 1, 0, 8)
	require.Error(t, err)
	assert.ErrorIs(err, pool.ErrClosed)
	assert.Len(c.Trees, 1)
	assert.Equal(float32(-5), c.Trees[0].Threshold)
}
