package vjcascade

import (
	"math"

	"github.com/esimov/vjcascade/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// StageMaxFPR is the false positive rate every stage has to reach on its training negatives.
const StageMaxFPR = 0.5

// StageReport describes a stage appended to a cascade.
type StageReport struct {
	Stage     int
	Trees     int
	TPR       float64
	FPR       float64
	Threshold float32
}

// WeightSamples returns the GentleBoost weights of the samples given their
// current classifier confidences. Both classes get the same total weight
// before the final normalization.
func WeightSamples(labels, confidences []float64) []float64 {
	var nPos, nNeg float64
	for _, l := range labels {
		if l > 0 {
			nPos++
		} else {
			nNeg++
		}
	}

	weights := make([]float64, len(labels))
	for i, l := range labels {
		if l > 0 {
			weights[i] = math.Exp(-confidences[i]) / nPos
		} else {
			weights[i] = math.Exp(confidences[i]) / nNeg
		}
	}
	floats.Scale(1/floats.Sum(weights), weights)

	return weights
}

// AppendStage adds trees to the cascade until the false positive rate on the
// samples drops to maxFPR or maxTreeCount trees were added. outputs holds the
// current cascade score of every sample and is updated with each new tree.
// At least one tree is added. Only the last added tree gets the stage threshold,
// which keeps the true positive rate at minTPR or above. On error the cascade
// is left unchanged.
func (tr *Trainer) AppendStage(c *Cascade, patches []ImageParams, labels, outputs []float64, minTPR, maxFPR float64, maxTreeCount int) (StageReport, error) {
	var report StageReport

	if len(patches) != len(labels) || len(labels) != len(outputs) {
		return report, errors.Wrapf(ErrInvalidArgument,
			"%d patches, %d labels and %d outputs", len(patches), len(labels), len(outputs))
	}
	if !(minTPR > 0 && minTPR <= 1) {
		return report, errors.Wrapf(ErrInvalidArgument, "minimum true positive rate %v", minTPR)
	}
	if !(maxFPR >= 0 && maxFPR <= 1) {
		return report, errors.Wrapf(ErrInvalidArgument, "maximum false positive rate %v", maxFPR)
	}
	if maxTreeCount < 1 {
		return report, errors.Wrapf(ErrInvalidArgument, "tree count %d", maxTreeCount)
	}
	var nPos int
	for _, l := range labels {
		if l > 0 {
			nPos++
		}
	}
	if nPos == 0 || nPos == len(labels) {
		return report, errors.Wrapf(ErrInvalidArgument,
			"stage needs positive and negative samples, got %d positives of %d", nPos, len(labels))
	}

	var (
		start     = len(c.Trees)
		stage     = c.StageCount()
		tpr       float64
		fpr       = 1.0
		threshold float64
	)
	for t := 0; t < maxTreeCount && (t == 0 || fpr > maxFPR); t++ {
		weights := WeightSamples(labels, outputs)

		tree, err := tr.TrainTree(patches, labels, weights, c.TreeDepth)
		if err != nil {
			c.Trees = c.Trees[:start]
			return report, errors.Wrapf(err, "stage %d, tree %d", stage, t)
		}
		for i, patch := range patches {
			outputs[i] += float64(EvalTree(tree, patch))
		}
		c.Trees = append(c.Trees, tree)

		tpr, fpr, threshold = SearchROC(labels, outputs, minTPR)

		tr.logger().WithFields(logrus.Fields{
			"stage": stage,
			"tree":  t + 1,
			"tpr":   tpr,
			"fpr":   fpr,
		}).Debug("tree added")
	}
	if len(c.Trees) == start {
		return report, errors.Wrapf(ErrInvalidArgument, "stage %d has no tree", stage)
	}
	c.Trees[len(c.Trees)-1].Threshold = float32(threshold)

	report = StageReport{
		Stage:     stage,
		Trees:     len(c.Trees) - start,
		TPR:       tpr,
		FPR:       fpr,
		Threshold: float32(threshold),
	}
	tr.logger().WithFields(logrus.Fields{
		"stage":     stage,
		"trees":     report.Trees,
		"tpr":       tpr,
		"fpr":       fpr,
		"threshold": report.Threshold,
	}).Info("stage added")

	return report, nil
}

// TryAppendStage mines the positives the cascade still accepts and twice as many
// samples in total of hard negatives, then appends a stage trained on them.
// It returns false without changing the cascade when the rate of accepted
// negatives is already at or below targetFPR.
func (tr *Trainer) TryAppendStage(c *Cascade, positives, negatives Source, minTPR, maxFPR, targetFPR float64, maxTreeCount int) (bool, StageReport, error) {
	if positives.Count() < 1 {
		return false, StageReport{}, errors.Wrap(ErrInvalidArgument, "no positive samples")
	}

	posPatches, posConfs, tpr, err := tr.SampleHard(c, positives, positives.Count(), minTPR)
	if err != nil {
		return false, StageReport{}, errors.Wrap(err, "sampling positives")
	}
	negPatches, negConfs, fpr, err := tr.SampleHard(c, negatives, 2*positives.Count()-len(posPatches), targetFPR)
	if err != nil {
		return false, StageReport{}, errors.Wrap(err, "sampling negatives")
	}

	tr.logger().WithFields(logrus.Fields{
		"positives": len(posPatches),
		"negatives": len(negPatches),
		"tpr":       tpr,
		"fpr":       fpr,
	}).Info("samples mined")

	if fpr <= targetFPR {
		return false, StageReport{}, nil
	}

	var (
		n       = len(posPatches) + len(negPatches)
		patches = make([]ImageParams, 0, n)
		labels  = make([]float64, 0, n)
		outputs = make([]float64, 0, n)
	)
	patches = append(patches, posPatches...)
	patches = append(patches, negPatches...)
	for range posPatches {
		labels = append(labels, 1)
	}
	for range negPatches {
		labels = append(labels, -1)
	}
	outputs = append(outputs, posConfs...)
	outputs = append(outputs, negConfs...)

	report, err := tr.AppendStage(c, patches, labels, outputs, minTPR, maxFPR, maxTreeCount)
	if err != nil {
		return false, report, err
	}
	return true, report, nil
}

// Train appends stages to the cascade, one for every remaining entry of
// cfg.MinTPRs, until the false positive rate on the negatives drops to
// cfg.MaxFPR. save is called after every appended stage.
func (tr *Trainer) Train(c *Cascade, positives, negatives Source, cfg *config.TrainConfig, save func(*Cascade) error) ([]StageReport, error) {
	var reports []StageReport

	for stage := c.StageCount(); stage < len(cfg.MinTPRs); stage++ {
		added, report, err := tr.TryAppendStage(c, positives, negatives,
			cfg.MinTPRs[stage], StageMaxFPR, cfg.MaxFPR, cfg.MaxTreeCount)
		if err != nil {
			return reports, errors.Wrapf(err, "stage %d", stage)
		}
		if !added {
			tr.logger().WithField("stage", stage).Info("target false positive rate reached")
			break
		}
		reports = append(reports, report)

		if save != nil {
			if err := save(c); err != nil {
				return reports, err
			}
		}
	}
	return reports, nil
}
