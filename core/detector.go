package vjcascade

import (
	"math"
	"sort"
	"sync"

	"github.com/esimov/vjcascade/pool"
	"github.com/pkg/errors"
)

const (
	// MinScaleFactor multiplies the smaller image dimension to get the first window height.
	MinScaleFactor = 0.1
	// StepScale multiplies the window height to get the scan step.
	StepScale = 0.1
	// ScaleIncrease multiplies the window height between two scales.
	ScaleIncrease = 1.1
)

// Detection is a window classified as positive. Row and Col are the window's
// top-left corner, Scale its height; its width is Scale*WidthHeightRatio.
type Detection struct {
	Row        int
	Col        int
	Scale      float32
	Confidence float32
}

// RowRange is a band of image rows, both ends included.
type RowRange struct {
	Start int
	Stop  int
}

// RowBands splits height rows into bands of height/threads rows, each starting
// half a band after the previous one, so consecutive bands overlap by half.
func RowBands(height, threads int) []RowRange {
	if height <= 0 {
		return nil
	}
	bandHeight := max(1, height/max(threads, 1))
	advance := max(1, bandHeight/2)

	var bands []RowRange
	for row := 0; row < height; row += advance {
		bands = append(bands, RowRange{
			Start: row,
			Stop:  min(row+bandHeight-1, height-1),
		})
	}
	return bands
}

// nextScale returns floor(ScaleIncrease*s), or the next integer above s
// where the increase is lost to the rounding.
func nextScale(s float64) float64 {
	next := math.Floor(ScaleIncrease * s)
	if next <= s {
		next = math.Floor(s) + 1
	}
	return next
}

// DetectObjects scans the image with windows of every scale from
// MinScaleFactor*min(w,h) up to min(w,h) and returns the windows the cascade
// accepts. The rows are split into overlapping bands scanned in parallel on p;
// a nil pool scans the whole image on the calling goroutine.
// The order of the detections is not defined.
func DetectObjects(c *Cascade, img ImageParams, p *pool.Pool) ([]Detection, error) {
	if img.Rows <= 0 || img.Cols <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "empty image %dx%d", img.Cols, img.Rows)
	}
	if !(c.WidthHeightRatio > 0) {
		return nil, errors.Wrapf(ErrInvalidArgument, "window width/height ratio %v", c.WidthHeightRatio)
	}

	var (
		mu   sync.Mutex
		dets []Detection
	)
	emit := func(d Detection) {
		mu.Lock()
		dets = append(dets, d)
		mu.Unlock()
	}

	if p == nil {
		err := detectInBand(c, img, RowRange{0, img.Rows - 1}, emit)
		return dets, err
	}

	g := p.NewGroup()
	for _, band := range RowBands(img.Rows, p.ThreadCount()) {
		band := band
		g.Go(func() error {
			return detectInBand(c, img, band, emit)
		}, false)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dets, nil
}

// detectInBand scans the windows whose top row lies inside the band.
func detectInBand(c *Cascade, img ImageParams, band RowRange, emit func(Detection)) error {
	w, h := float64(img.Cols), float64(img.Rows)
	minDim := math.Min(w, h)

	for s := MinScaleFactor * minDim; s < minDim; s = nextScale(s) {
		height := int(s)
		width := int(s * float64(c.WidthHeightRatio))
		if height < 1 || width < 1 {
			continue
		}
		step := max(int(StepScale*s), 1)
		rowStop := min(band.Stop+1, int(h-s))

		for row := band.Start; row < rowStop; row += step {
			for col := 0; col < img.Cols-width; col += step {
				patch, err := img.SubImage(row, col, height, width)
				if err != nil {
					return err
				}
				if ok, conf := c.ClassifyPatch(patch); ok {
					emit(Detection{
						Row:        row,
						Col:        col,
						Scale:      float32(s),
						Confidence: conf,
					})
				}
			}
		}
	}
	return nil
}

// IoU returns the intersection over union of two detection windows with the
// given width/height ratio.
func IoU(d1, d2 Detection, ratio float32) float64 {
	h1, h2 := float64(d1.Scale), float64(d2.Scale)
	w1, w2 := h1*float64(ratio), h2*float64(ratio)
	r1, c1 := float64(d1.Row), float64(d1.Col)
	r2, c2 := float64(d2.Row), float64(d2.Col)

	overRow := math.Max(0, math.Min(r1+h1, r2+h2)-math.Max(r1, r2))
	overCol := math.Max(0, math.Min(c1+w1, c2+w2)-math.Max(c1, c2))
	inter := overRow * overCol

	union := h1*w1 + h2*w2 - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ClusterDetections merges the detections overlapping by more than iouThreshold.
// Every cluster is seeded by its most confident detection, gets the average
// position and scale of its members and the sum of their confidences.
func ClusterDetections(detections []Detection, ratio float32, iouThreshold float64) []Detection {
	dets := make([]Detection, len(detections))
	copy(dets, detections)
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	assignments := make([]bool, len(dets))
	clusters := []Detection{}

	for i := range dets {
		// Skip the detections already merged into a cluster.
		if assignments[i] {
			continue
		}
		var (
			r, c, s float64
			q       float32
			n       int
		)
		for j := range dets {
			if assignments[j] {
				continue
			}
			if i == j || IoU(dets[i], dets[j], ratio) > iouThreshold {
				assignments[j] = true
				r += float64(dets[j].Row)
				c += float64(dets[j].Col)
				s += float64(dets[j].Scale)
				q += dets[j].Confidence
				n++
			}
		}
		clusters = append(clusters, Detection{
			Row:        int(math.Round(r / float64(n))),
			Col:        int(math.Round(c / float64(n))),
			Scale:      float32(s / float64(n)),
			Confidence: q,
		})
	}
	return clusters
}
