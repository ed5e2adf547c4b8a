// Package dataset reads training images together with their YOLO label files
// and serves them as positive and negative patch sources for training.
//
// Every image of the database folder (.jpg, .jpeg, .png, .bmp) may have a label
// file with the same name and the .txt extension, one object per line:
//
//	<class> <center x> <center y> <width> <height>
//
// with coordinates normalized to the image size. The class is ignored.
package dataset

import (
	"bufio"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	vj "github.com/esimov/vjcascade/core"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
)

// ErrEmpty is returned when a dataset has no image or no object to sample from.
var ErrEmpty = errors.New("empty dataset")

var imageExts = []string{".jpg", ".jpeg", ".png", ".bmp"}

// cacheSize is the number of decoded images kept in memory.
const cacheSize = 64

// Labeled is a set of images with their labeled objects.
type Labeled struct {
	Files   []string
	Objects [][]ROI

	cache *imageCache
}

// Open scans dir for images and their label files. When ratio is positive every
// object's width is recomputed from its height so that its aspect ratio in
// pixels is ratio.
func Open(dir string, ratio float32) (*Labeled, error) {
	set := &Labeled{cache: newImageCache(cacheSize)}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if d.IsDir() || !slices.Contains(imageExts, ext) {
			return nil
		}

		objects, err := readLabels(strings.TrimSuffix(path, filepath.Ext(path)) + ".txt")
		if err != nil {
			return err
		}
		if ratio > 0 && len(objects) > 0 {
			if objects, err = enforceRatio(path, objects, float64(ratio)); err != nil {
				return err
			}
		}
		set.Files = append(set.Files, path)
		set.Objects = append(set.Objects, objects)

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read dataset %s", dir)
	}
	return set, nil
}

// Count returns the number of images.
func (l *Labeled) Count() int {
	return len(l.Files)
}

// ObjectCount returns the number of labeled objects over all images.
func (l *Labeled) ObjectCount() int {
	var n int
	for _, objects := range l.Objects {
		n += len(objects)
	}
	return n
}

// Image returns the i-th image converted to grayscale.
func (l *Labeled) Image(i int) (vj.ImageParams, error) {
	if i < 0 || i >= len(l.Files) {
		return vj.ImageParams{}, errors.Wrapf(vj.ErrInvalidArgument, "image %d of %d", i, len(l.Files))
	}
	if img, ok := l.cache.get(i); ok {
		return img, nil
	}

	src, err := imaging.Open(l.Files[i], imaging.AutoOrientation(true))
	if err != nil {
		return vj.ImageParams{}, errors.Wrapf(err, "cannot decode %s", l.Files[i])
	}
	img := vj.ImageFromRGB(src)
	l.cache.put(i, img)

	return img, nil
}

// ParseLabels reads YOLO label rows. Objects with zero size are skipped.
func ParseLabels(r io.Reader) ([]ROI, error) {
	var rois []ROI

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 5 {
			return nil, errors.Errorf("label line %d: expected 5 values, got %d", line, len(fields))
		}

		var vals [4]float64
		for i := range vals {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "label line %d", line)
			}
			vals[i] = v
		}
		roi := ROI{CenterX: vals[0], CenterY: vals[1], Width: vals[2], Height: vals[3]}
		if roi.Width <= 0 || roi.Height <= 0 {
			continue
		}
		rois = append(rois, roi)
	}
	return rois, errors.Wrap(scanner.Err(), "cannot read labels")
}

func readLabels(path string) ([]ROI, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot open label file")
	}
	defer f.Close()

	rois, err := ParseLabels(f)
	if err != nil {
		return nil, errors.Wrapf(err, "label file %s", path)
	}
	return rois, nil
}

// enforceRatio sets the width of every object to ratio times its height in pixels.
func enforceRatio(path string, objects []ROI, ratio float64) ([]ROI, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open image")
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %s", path)
	}
	for i := range objects {
		objects[i].Width = ratio * objects[i].Height * float64(cfg.Height) / float64(cfg.Width)
	}
	return objects, nil
}

// imageCache keeps the most recently decoded images.
type imageCache struct {
	mu    sync.Mutex
	size  int
	items map[int]vj.ImageParams
	order []int
}

func newImageCache(size int) *imageCache {
	return &imageCache{size: size, items: make(map[int]vj.ImageParams, size)}
}

func (c *imageCache) get(i int) (vj.ImageParams, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.items[i]
	return img, ok
}

func (c *imageCache) put(i int, img vj.ImageParams) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[i]; ok {
		return
	}
	if len(c.order) >= c.size {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
	c.items[i] = img
	c.order = append(c.order, i)
}
