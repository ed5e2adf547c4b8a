package vjcascade

import "math/rand"

// Node is a binary pixel comparison test. The four offsets are relative to the
// patch center and scaled by the patch size, 127 being roughly half the patch.
type Node struct {
	RowA int8
	ColA int8
	RowB int8
	ColB int8
}

// EvalFeature reports whether the intensity of the first pixel is not greater
// than the intensity of the second one.
func EvalFeature(n Node, patch ImageParams) bool {
	rA := featureCoord(n.RowA, patch.Rows)
	cA := featureCoord(n.ColA, patch.Cols)
	rB := featureCoord(n.RowB, patch.Rows)
	cB := featureCoord(n.ColB, patch.Cols)

	return patch.At(rA, cA) <= patch.At(rB, cB)
}

// featureCoord maps an offset to a pixel coordinate in a dimension of size d
// using 8 bit fixed point arithmetic. The division truncates toward zero,
// trained cascades depend on this exact rounding.
func featureCoord(o int8, d int) int {
	return ((d/2)*256 + int(o)*d) / 256
}

// RandomNode generates a feature with every offset drawn uniformly from [-127, 127].
func RandomNode(rng *rand.Rand) Node {
	return Node{
		RowA: int8(rng.Intn(255) - 127),
		ColA: int8(rng.Intn(255) - 127),
		RowB: int8(rng.Intn(255) - 127),
		ColB: int8(rng.Intn(255) - 127),
	}
}
