package vjcascade

import "gonum.org/v1/gonum/floats"

// ROCStep is the decrement of the threshold scan in SearchROC.
const ROCStep = 0.001

// RocPoint returns the true and false positive rates of the classifier
// predicting positive for every output >= threshold. Positive samples have a
// label > 0.
func RocPoint(labels, outputs []float64, threshold float64) (tpr, fpr float64) {
	var tp, fn, fp, tn float64
	for i, l := range labels {
		predicted := outputs[i] >= threshold
		switch {
		case l > 0 && predicted:
			tp++
		case l > 0:
			fn++
		case predicted:
			fp++
		default:
			tn++
		}
	}
	return tp / (tp + fn), fp / (fp + tn)
}

// SearchROC scans the thresholds downwards from the highest output in steps of
// ROCStep until the true positive rate reaches minTPR. It returns the rates at
// that threshold and the threshold lowered by one more step.
func SearchROC(labels, outputs []float64, minTPR float64) (tpr, fpr, threshold float64) {
	if len(outputs) == 0 {
		return 0, 0, 0
	}
	start, lowest := floats.Max(outputs), floats.Min(outputs)

	// The threshold is computed from the step count to avoid accumulating rounding errors.
	for k := 0; ; k++ {
		threshold = start - float64(k)*ROCStep
		tpr, fpr = RocPoint(labels, outputs, threshold)
		// Every sample is predicted positive below the lowest output.
		if tpr >= minTPR || threshold < lowest {
			return tpr, fpr, threshold - ROCStep
		}
	}
}
