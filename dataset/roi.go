package dataset

import (
	"math"
	"math/rand"
	"sync"

	vj "github.com/esimov/vjcascade/core"
	"github.com/pkg/errors"
)

// ErrInvalidROI reports an empty region or one reaching outside of its image.
var ErrInvalidROI = errors.Wrap(vj.ErrInvalidArgument, "invalid region of interest")

// ROI is a rectangle in normalized image coordinates: the center and the size
// are fractions of the image width and height, as in YOLO label files.
type ROI struct {
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
}

// Pixels returns the top-left corner and the size of the region in an image of imW x imH pixels.
func (r ROI) Pixels(imW, imH int) (x, y, w, h int) {
	x = int((r.CenterX - r.Width/2) * float64(imW))
	y = int((r.CenterY - r.Height/2) * float64(imH))
	w = int(r.Width * float64(imW))
	h = int(r.Height * float64(imH))
	return
}

// fromPixels converts a pixel rectangle into normalized coordinates.
func fromPixels(x, y, w, h, imW, imH int) ROI {
	return ROI{
		CenterX: (float64(x) + float64(w)/2) / float64(imW),
		CenterY: (float64(y) + float64(h)/2) / float64(imH),
		Width:   float64(w) / float64(imW),
		Height:  float64(h) / float64(imH),
	}
}

// IoU returns the intersection over union of two regions.
func IoU(a, b ROI) float64 {
	overX := math.Max(0, math.Min(a.CenterX+a.Width/2, b.CenterX+b.Width/2)-math.Max(a.CenterX-a.Width/2, b.CenterX-b.Width/2))
	overY := math.Max(0, math.Min(a.CenterY+a.Height/2, b.CenterY+b.Height/2)-math.Max(a.CenterY-a.Height/2, b.CenterY-b.Height/2))
	inter := overX * overY

	union := a.Width*a.Height + b.Width*b.Height - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// maxIoU returns the highest IoU of roi with any of the regions.
func maxIoU(roi ROI, regions []ROI) float64 {
	var best float64
	for _, r := range regions {
		best = math.Max(best, IoU(roi, r))
	}
	return best
}

// ExtractPatch copies the region out of img.
func ExtractPatch(img vj.ImageParams, roi ROI) (vj.ImageParams, error) {
	x, y, w, h := roi.Pixels(img.Cols, img.Rows)
	return crop(img, x, y, w, h)
}

func crop(img vj.ImageParams, x, y, w, h int) (vj.ImageParams, error) {
	if w <= 0 || h <= 0 {
		return vj.ImageParams{}, errors.Wrapf(ErrInvalidROI, "zero size patch %dx%d", w, h)
	}
	if x < 0 || y < 0 || x+w > img.Cols || y+h > img.Rows {
		return vj.ImageParams{}, errors.Wrapf(ErrInvalidROI,
			"patch %dx%d at (%d,%d) outside of %dx%d image", w, h, x, y, img.Cols, img.Rows)
	}
	patch, err := img.SubImage(y, x, h, w)
	if err != nil {
		return vj.ImageParams{}, err
	}
	return patch.Clone(), nil
}

// Jitter randomly moves and rescales regions, keeping their aspect ratio.
type Jitter struct {
	// TranslateX is the maximum horizontal shift as a fraction of the region width.
	TranslateX float64
	// TranslateY is the maximum vertical shift as a fraction of the region height.
	TranslateY float64
	// Scale is the maximum relative size change.
	Scale float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitter creates a jitter with the default limits of 3% shift and 5% scale.
func NewJitter(seed int64) *Jitter {
	return &Jitter{
		TranslateX: 0.03,
		TranslateY: 0.03,
		Scale:      0.05,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Apply returns a randomly jittered copy of roi clipped to the image.
func (j *Jitter) Apply(roi ROI) ROI {
	j.mu.Lock()
	dx, dy, ds := j.rng.Float64()*2-1, j.rng.Float64()*2-1, j.rng.Float64()*2-1
	j.mu.Unlock()

	ratio := roi.Width / roi.Height
	out := ROI{
		CenterX: roi.CenterX + dx*roi.Width*j.TranslateX,
		CenterY: roi.CenterY + dy*roi.Height*j.TranslateY,
		Height:  roi.Height * (1 + ds*j.Scale),
	}
	out.Width = out.Height * ratio

	return clip(out)
}

// clip moves the center inside the unit square and shrinks the region, keeping
// its aspect ratio, until it fits.
func clip(r ROI) ROI {
	r.CenterX = math.Min(1, math.Max(0, r.CenterX))
	r.CenterY = math.Min(1, math.Max(0, r.CenterY))

	maxW := 2 * math.Min(r.CenterX, 1-r.CenterX)
	maxH := 2 * math.Min(r.CenterY, 1-r.CenterY)
	if r.Width > 0 && r.Height > 0 {
		if f := math.Min(maxW/r.Width, maxH/r.Height); f < 1 {
			r.Width *= f
			r.Height *= f
		}
	}
	return r
}
