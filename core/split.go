package vjcascade

import (
	"github.com/esimov/vjcascade/pool"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// weightEpsilon keeps weighted averages finite for sample sets without weight.
const weightEpsilon = 1e-5

// WeightedAverage returns Σ(label·weight) / (Σweight + 1e-5), 0 for no samples.
func WeightedAverage(labels, weights []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	return floats.Dot(labels, weights) / (floats.Sum(weights) + weightEpsilon)
}

// SplitErrors scores every candidate feature by the weighted squared error left
// after splitting the samples with it, normalized by the total weight.
// The candidates are evaluated on the pool when one is given; the result does
// not depend on it.
func SplitErrors(p *pool.Pool, candidates []Node, patches []ImageParams, labels, weights []float64) ([]float64, error) {
	if len(patches) != len(labels) || len(labels) != len(weights) {
		return nil, errors.Wrapf(ErrInvalidArgument,
			"%d patches, %d labels and %d weights", len(patches), len(labels), len(weights))
	}

	result := make([]float64, len(candidates))
	wsum := floats.Sum(weights)

	if p == nil || p.ThreadCount() == 1 {
		for i, n := range candidates {
			result[i] = splitError(n, patches, labels, weights, wsum)
		}
		return result, nil
	}

	// Every job writes its own slot only.
	err := p.For(0, len(candidates), func(i int) error {
		result[i] = splitError(candidates[i], patches, labels, weights, wsum)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// splitError returns (SSE_left + SSE_right) / wsum, where the squared errors are
// measured against the weighted mean label of each side.
func splitError(n Node, patches []ImageParams, labels, weights []float64, wsum float64) float64 {
	var (
		side      = make([]bool, len(patches))
		wl, wr    float64
		wll, wlr  float64
		sse, mean float64
	)
	for i, patch := range patches {
		side[i] = EvalFeature(n, patch)
		if side[i] {
			wr += weights[i]
			wlr += weights[i] * labels[i]
		} else {
			wl += weights[i]
			wll += weights[i] * labels[i]
		}
	}
	meanL := wll / (wl + weightEpsilon)
	meanR := wlr / (wr + weightEpsilon)

	for i, l := range labels {
		if side[i] {
			mean = meanR
		} else {
			mean = meanL
		}
		sse += weights[i] * (l - mean) * (l - mean)
	}
	return sse / wsum
}
