package inspect

import (
	"os"

	vj "github.com/esimov/vjcascade/core"
	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// StageSummary describes one completed stage of a cascade.
type StageSummary struct {
	Stage     int
	FirstTree int
	Trees     int
	Threshold float32
}

// Summary lists the completed stages of the cascade.
func Summary(c *vj.Cascade) []StageSummary {
	var (
		out   []StageSummary
		first int
	)
	for i, t := range c.Trees {
		if !t.EndsStage() {
			continue
		}
		out = append(out, StageSummary{
			Stage:     len(out),
			FirstTree: first,
			Trees:     i - first + 1,
			Threshold: t.Threshold,
		})
		first = i + 1
	}
	return out
}

// LeafMatrix returns the leaf outputs as a trees x 2^depth matrix,
// or nil for a cascade without trees.
func LeafMatrix(c *vj.Cascade) *mat.Dense {
	if len(c.Trees) == 0 {
		return nil
	}
	m := mat.NewDense(len(c.Trees), len(c.Trees[0].Leafs), nil)
	for i, t := range c.Trees {
		for j, l := range t.Leafs {
			m.Set(i, j, float64(l))
		}
	}
	return m
}

// ThresholdMatrix returns the tree thresholds as a column, the sentinel included.
func ThresholdMatrix(c *vj.Cascade) *mat.Dense {
	if len(c.Trees) == 0 {
		return nil
	}
	m := mat.NewDense(len(c.Trees), 1, nil)
	for i, t := range c.Trees {
		m.Set(i, 0, float64(t.Threshold))
	}
	return m
}

// LearningCurve returns one row per stage report holding the stage index, the
// tree count, the true and false positive rates and the threshold.
func LearningCurve(reports []vj.StageReport) *mat.Dense {
	if len(reports) == 0 {
		return nil
	}
	m := mat.NewDense(len(reports), 5, nil)
	for i, r := range reports {
		m.SetRow(i, []float64{float64(r.Stage), float64(r.Trees), r.TPR, r.FPR, float64(r.Threshold)})
	}
	return m
}

// WriteNpy stores the matrix into a numpy file.
func WriteNpy(path string, m *mat.Dense) (err error) {
	if m == nil {
		return errors.Wrapf(vj.ErrInvalidArgument, "nothing to write to %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create npy file")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return errors.Wrapf(npyio.Write(f, m), "cannot write %s", path)
}

// ReadNpy loads a matrix from a numpy file.
func ReadNpy(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open npy file")
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	m := &mat.Dense{}
	if err := r.Read(m); err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	return m, nil
}
