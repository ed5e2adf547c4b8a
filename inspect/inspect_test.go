package inspect_test

import (
	"os"
	"path/filepath"
	"testing"

	vj "github.com/esimov/vjcascade/core"
	"github.com/esimov/vjcascade/inspect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCascade() *vj.Cascade {
	c := vj.NewCascade(2, 1)
	for i := 0; i < 3; i++ {
		t := vj.NewTree(2)
		t.Nodes[0] = vj.Node{RowA: int8(i), ColA: 1, RowB: -1, ColB: -2}
		for j := range t.Leafs {
			t.Leafs[j] = float32(i*10 + j)
		}
		c.Trees = append(c.Trees, t)
	}
	c.Trees[1].Threshold = 0.5
	c.Trees[2].Threshold = -2
	return c
}

func TestSummary(t *testing.T) {
	c := sampleCascade()
	c.Trees = append(c.Trees, vj.NewTree(2))

	assert.Equal(t, []inspect.StageSummary{
		{Stage: 0, FirstTree: 0, Trees: 2, Threshold: 0.5},
		{Stage: 1, FirstTree: 2, Trees: 1, Threshold: -2},
	}, inspect.Summary(c))
	assert.Empty(t, inspect.Summary(vj.NewCascade(2, 1)))
}

func TestMatrices(t *testing.T) {
	assert := assert.New(t)
	c := sampleCascade()

	leaves := inspect.LeafMatrix(c)
	rows, cols := leaves.Dims()
	assert.Equal(3, rows)
	assert.Equal(4, cols)
	assert.Equal(23.0, leaves.At(2, 3))

	thresholds := inspect.ThresholdMatrix(c)
	assert.Equal(float64(vj.ThresholdSentinel), thresholds.At(0, 0))
	assert.Equal(0.5, thresholds.At(1, 0))

	assert.Nil(inspect.LeafMatrix(vj.NewCascade(2, 1)))
	assert.Nil(inspect.LearningCurve(nil))

	curve := inspect.LearningCurve([]vj.StageReport{{Stage: 3, Trees: 7, TPR: 0.99, FPR: 0.4, Threshold: -1}})
	assert.Equal([]float64{3, 7, 0.99, 0.4, -1}, curve.RawRowView(0))
}

func TestNpyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaves.npy")
	want := inspect.LeafMatrix(sampleCascade())

	require.NoError(t, inspect.WriteNpy(path, want))
	got, err := inspect.ReadNpy(path)
	require.NoError(t, err)
	assert.Equal(t, want.RawMatrix().Data, got.RawMatrix().Data)

	assert.ErrorIs(t, inspect.WriteNpy(path, nil), vj.ErrInvalidArgument)
}

func TestFormat(t *testing.T) {
	for _, ext := range []string{"svg", ".png", "JPG", "dot"} {
		_, err := inspect.Format(ext)
		assert.NoError(t, err, ext)
	}
	_, err := inspect.Format(".gif")
	assert.ErrorIs(t, err, inspect.ErrUnknownFormat)
}

func TestRenderTrees(t *testing.T) {
	dir := t.TempDir()

	files, err := inspect.RenderTrees(sampleCascade(), dir, "tree", "svg")
	require.NoError(t, err)
	require.Len(t, files, 3)

	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	data, err := os.ReadFile(files[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), "stage threshold")
}
