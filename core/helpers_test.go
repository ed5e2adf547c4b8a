package vjcascade_test

import (
	"math/rand"
	"sync"

	vj "github.com/esimov/vjcascade/core"
)

const patchSize = 16

// objectPatch returns a dark patch with a bright square in its center.
func objectPatch(rng *rand.Rand) vj.ImageParams {
	img := vj.ImageParams{
		Pixels: make([]uint8, patchSize*patchSize),
		Rows:   patchSize,
		Cols:   patchSize,
		Dim:    patchSize,
	}
	for r := 0; r < patchSize; r++ {
		for c := 0; c < patchSize; c++ {
			v := rng.Intn(60)
			if r >= patchSize/4 && r < 3*patchSize/4 && c >= patchSize/4 && c < 3*patchSize/4 {
				v = 200 + rng.Intn(56)
			}
			img.Pixels[r*patchSize+c] = uint8(v)
		}
	}
	return img
}

// noisePatch returns a patch of uniform random pixels.
func noisePatch(rng *rand.Rand) vj.ImageParams {
	img := vj.ImageParams{
		Pixels: make([]uint8, patchSize*patchSize),
		Rows:   patchSize,
		Cols:   patchSize,
		Dim:    patchSize,
	}
	rng.Read(img.Pixels)
	return img
}

type sliceSource []vj.ImageParams

func (s sliceSource) Patch(i int) (vj.ImageParams, error) { return s[i], nil }
func (s sliceSource) Count() int                        { return len(s) }

func objectSource(n int, seed int64) sliceSource {
	rng := rand.New(rand.NewSource(seed))
	src := make(sliceSource, n)
	for i := range src {
		src[i] = objectPatch(rng)
	}
	return src
}

type noiseSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newNoiseSource(seed int64) *noiseSource {
	return &noiseSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *noiseSource) Patch(int) (vj.ImageParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return noisePatch(s.rng), nil
}

func (s *noiseSource) Count() int { return vj.Infinite }

// trainingSet returns n object patches labeled +1 followed by n noise patches labeled -1.
func trainingSet(n int, seed int64) ([]vj.ImageParams, []float64) {
	rng := rand.New(rand.NewSource(seed))
	patches := make([]vj.ImageParams, 0, 2*n)
	labels := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		patches = append(patches, objectPatch(rng))
		labels = append(labels, 1)
	}
	for i := 0; i < n; i++ {
		patches = append(patches, noisePatch(rng))
		labels = append(labels, -1)
	}
	return patches, labels
}

// rejectAll is a cascade rejecting every patch.
func rejectAll() *vj.Cascade {
	c := vj.NewCascade(1, 1)
	c.Trees = append(c.Trees, vj.Tree{
		Nodes:     []vj.Node{{}},
		Leafs:     []float32{-1, -1},
		Threshold: -0.5,
	})
	return c
}
