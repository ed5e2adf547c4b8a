package vjcascade_test

import (
	"errors"
	"testing"

	vj "github.com/esimov/vjcascade/core"
	"github.com/esimov/vjcascade/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct{}

var errRead = errors.New("cannot read image")

func (failingSource) Patch(int) (vj.ImageParams, error) { return vj.ImageParams{}, errRead }
func (failingSource) Count() int                        { return 10 }

func TestSample_EmptyCascadeShouldAcceptEverything(t *testing.T) {
	p := pool.New(3)
	defer p.Close()

	for name, workers := range map[string]*pool.Pool{"sequential": nil, "parallel": p} {
		tr := vj.NewTrainer(workers, 1)

		patches, confs, rate, err := tr.SampleHard(vj.NewCascade(2, 1), objectSource(12, 1), 12, 0.5)
		require.NoError(t, err)
		assert.Len(t, patches, 12, name)
		assert.Len(t, confs, 12, name)
		assert.Equal(t, 1.0, rate, name)
	}
}

func TestSample_ShouldStopAtPickCount(t *testing.T) {
	p := pool.New(4)
	defer p.Close()

	for name, workers := range map[string]*pool.Pool{"sequential": nil, "parallel": p} {
		patches, _, _, err := vj.NewTrainer(workers, 1).SampleHard(vj.NewCascade(2, 1), newNoiseSource(2), 25, 0)
		require.NoError(t, err)
		assert.Len(t, patches, 25, name)
	}
}

func TestSample_ShouldGiveUpBelowMinHitRate(t *testing.T) {
	p := pool.New(4)
	defer p.Close()

	for name, workers := range map[string]*pool.Pool{"sequential": nil, "parallel": p} {
		patches, _, rate, err := vj.NewTrainer(workers, 1).SampleHard(rejectAll(), newNoiseSource(3), 50, 0.01)
		require.NoError(t, err)
		assert.Empty(t, patches, name)
		assert.Zero(t, rate, name)
	}
}

func TestSample_ShouldStopAtSourceEnd(t *testing.T) {
	p := pool.New(2)
	defer p.Close()

	patches, _, rate, err := vj.NewTrainer(p, 1).SampleHard(rejectAll(), objectSource(7, 4), 100, 0)
	require.NoError(t, err)
	assert.Empty(t, patches)
	assert.Zero(t, rate)
}

func TestSample_ShouldReturnSourceErrors(t *testing.T) {
	p := pool.New(2)
	defer p.Close()

	for _, workers := range []*pool.Pool{nil, p} {
		_, _, _, err := vj.NewTrainer(workers, 1).SampleHard(vj.NewCascade(1, 1), failingSource{}, 5, 0)
		assert.ErrorIs(t, err, errRead)
	}
}
