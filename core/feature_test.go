package vjcascade_test

import (
	"math/rand"
	"testing"

	vj "github.com/esimov/vjcascade/core"
	"github.com/stretchr/testify/assert"
)

func TestFeature_ZeroOffsetsShouldAlwaysPass(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for rows := 1; rows < 40; rows += 3 {
		for cols := 1; cols < 40; cols += 5 {
			img := vj.ImageParams{Pixels: make([]uint8, rows*cols), Rows: rows, Cols: cols, Dim: cols}
			rng.Read(img.Pixels)

			if !vj.EvalFeature(vj.Node{}, img) {
				t.Fatalf("zero feature should pass on a %dx%d patch", cols, rows)
			}
		}
	}
}

func TestFeature_ExtremeOffsetsShouldStayInsidePatch(t *testing.T) {
	offsets := []int8{-127, -64, -1, 0, 1, 64, 127}

	for d := 1; d <= 130; d++ {
		img := vj.ImageParams{Pixels: make([]uint8, d*d), Rows: d, Cols: d, Dim: d}
		for _, a := range offsets {
			for _, b := range offsets {
				// Panics on an out of range pixel access.
				vj.EvalFeature(vj.Node{RowA: a, ColA: b, RowB: b, ColB: a}, img)
			}
		}
	}
}

func TestFeature_ShouldUseFixedPointCoordinates(t *testing.T) {
	assert := assert.New(t)

	// On a 4x4 patch the offset 127 maps to (2*256 + 127*4) / 256 = 3
	// and the offset -127 maps to (2*256 - 127*4) / 256 = 0.
	img := vj.ImageParams{Pixels: make([]uint8, 16), Rows: 4, Cols: 4, Dim: 4}
	img.Pixels[3*4+3] = 10

	assert.False(vj.EvalFeature(vj.Node{RowA: 127, ColA: 127, RowB: -127, ColB: -127}, img))
	assert.True(vj.EvalFeature(vj.Node{RowA: -127, ColA: -127, RowB: 127, ColB: 127}, img))

	// 126 maps to (512 + 504) / 256 = 3 as well.
	assert.False(vj.EvalFeature(vj.Node{RowA: 126, ColA: 126}, img))
	// 63 maps to (512 + 252) / 256 = 2.
	assert.True(vj.EvalFeature(vj.Node{RowA: 63, ColA: 63}, img))
}

func TestFeature_RandomNodeShouldBeReproducible(t *testing.T) {
	r1 := rand.New(rand.NewSource(42))
	r2 := rand.New(rand.NewSource(42))

	for i := 0; i < 100; i++ {
		n := vj.RandomNode(r1)
		assert.Equal(t, n, vj.RandomNode(r2))
		for _, o := range []int8{n.RowA, n.ColA, n.RowB, n.ColB} {
			if o < -127 {
				t.Fatalf("offset %d out of range", o)
			}
		}
	}
}

func TestImage_SubImageShouldRejectInvalidRegions(t *testing.T) {
	img := vj.ImageParams{Pixels: make([]uint8, 100), Rows: 10, Cols: 10, Dim: 10}

	_, err := img.SubImage(0, 0, 0, 5)
	assert.ErrorIs(t, err, vj.ErrInvalidArgument)

	_, err = img.SubImage(6, 0, 5, 5)
	assert.ErrorIs(t, err, vj.ErrInvalidArgument)

	_, err = img.SubImage(-1, 0, 5, 5)
	assert.ErrorIs(t, err, vj.ErrInvalidArgument)
}

func TestImage_SubImageShouldShareAndCloneShouldCopy(t *testing.T) {
	assert := assert.New(t)

	img := vj.ImageParams{Pixels: make([]uint8, 100), Rows: 10, Cols: 10, Dim: 10}
	for i := range img.Pixels {
		img.Pixels[i] = uint8(i)
	}

	sub, err := img.SubImage(2, 3, 4, 5)
	assert.NoError(err)
	assert.Equal(uint8(23), sub.At(0, 0))
	assert.Equal(uint8(57), sub.At(3, 4))

	clone := sub.Clone()
	assert.Equal(5, clone.Dim)
	assert.Len(clone.Pixels, 20)
	for r := 0; r < 4; r++ {
		for c := 0; c < 5; c++ {
			assert.Equal(sub.At(r, c), clone.At(r, c))
		}
	}
}
