package dataset

import (
	"math/rand"
	"sync"

	vj "github.com/esimov/vjcascade/core"
	"github.com/pkg/errors"
)

const (
	// DefaultMinHeight is the default minimum height of a negative patch in pixels.
	DefaultMinHeight = 50
	// maxOverlap is the IoU with a labeled object from which a region is not a negative.
	maxOverlap = 0.5
	// maxAttempts bounds the search for a free region before another image is tried.
	maxAttempts = 100
)

// Negative draws an unlimited number of random regions which do not overlap the
// labeled objects of a dataset.
type Negative struct {
	set       *Labeled
	ratio     float64
	minHeight int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewNegative creates a negative source drawing regions of the given width/height
// ratio and at least minHeight pixels high (or the image height when smaller).
func NewNegative(set *Labeled, ratio float32, minHeight int, seed int64) (*Negative, error) {
	if set.Count() == 0 {
		return nil, errors.Wrap(ErrEmpty, "no images")
	}
	if !(ratio > 0) {
		return nil, errors.Wrapf(vj.ErrInvalidArgument, "width/height ratio %v", ratio)
	}
	return &Negative{
		set:       set,
		ratio:     float64(ratio),
		minHeight: minHeight,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// Count returns vjcascade.Infinite.
func (n *Negative) Count() int {
	return vj.Infinite
}

// Patch returns a random negative patch, the index is ignored.
func (n *Negative) Patch(int) (vj.ImageParams, error) {
	for tries := 0; tries < maxAttempts*n.set.Count(); tries++ {
		n.mu.Lock()
		i := n.rng.Intn(n.set.Count())
		n.mu.Unlock()

		img, err := n.set.Image(i)
		if err != nil {
			return vj.ImageParams{}, err
		}
		if patch, ok := n.sample(img, n.set.Objects[i]); ok {
			return patch, nil
		}
	}
	return vj.ImageParams{}, errors.Wrap(ErrEmpty, "no region free of objects found")
}

// sample looks for a random region of img overlapping none of the objects.
func (n *Negative) sample(img vj.ImageParams, objects []ROI) (vj.ImageParams, bool) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		x, y, w, h, ok := n.randomRegion(img.Cols, img.Rows)
		if !ok {
			return vj.ImageParams{}, false
		}
		if maxIoU(fromPixels(x, y, w, h, img.Cols, img.Rows), objects) >= maxOverlap {
			continue
		}
		patch, err := crop(img, x, y, w, h)
		if err != nil {
			continue
		}
		return patch, true
	}
	return vj.ImageParams{}, false
}

// randomRegion draws the top-left corner and the size of a region inside an imW x imH image.
func (n *Negative) randomRegion(imW, imH int) (x, y, w, h int, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	lo := min(n.minHeight, imH)
	h = lo
	if imH > lo {
		h += n.rng.Intn(imH - lo)
	}
	w = int(n.ratio * float64(h))
	if w > imW {
		w = imW
		h = int(float64(w) / n.ratio)
	}
	if w < 1 || h < 1 {
		return 0, 0, 0, 0, false
	}
	x = n.rng.Intn(imW - w + 1)
	y = n.rng.Intn(imH - h + 1)

	return x, y, w, h, true
}
