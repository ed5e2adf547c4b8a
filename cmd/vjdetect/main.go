package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	vj "github.com/esimov/vjcascade/core"
	"github.com/esimov/vjcascade/pool"
	"github.com/esimov/vjcascade/utils"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/term"
)

const banner = `
┬  ┬ ┬┌┬┐┌─┐┌┬┐┌─┐┌─┐┌┬┐
└┐┌┘ │ ││├┤  │ ├┤ │   │
 └┘└─┘─┴┘└─┘ ┴ └─┘└─┘ ┴

Object detection with a trained pixel comparison cascade.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

const (
	// markerRectangle - use rectangle as detection marker
	markerRectangle string = "rect"
	// markerCircle - use circle as detection marker
	markerCircle string = "circle"
)

// Version indicates the current build version.
var Version string

// detector holds the detection settings.
type detector struct {
	cascadeFile  string
	destination  string
	iouThreshold float64
	minConf      float64
	maxDim       int
	threads      int
	marker       string
}

// box is a detection as written to the json output.
type box struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float32 `json:"confidence"`
}

func main() {
	var (
		// Flags
		source       = flag.String("in", pipeName, "Source image")
		destination  = flag.String("out", pipeName, "Destination image, \"empty\" for none")
		cascadeFile  = flag.String("cf", "", "Cascade binary file")
		iouThreshold = flag.Float64("iou", 0.2, "Intersection over union (IoU) threshold")
		minConf      = flag.Float64("minconf", 0, "Minimum confidence of a clustered detection")
		maxDim       = flag.Int("maxdim", 0, "Downscale the image to fit this size before detection, 0 keeps it")
		threads      = flag.Int("threads", 0, "Number of detection threads, 0 uses every CPU")
		marker       = flag.String("marker", markerRectangle, "Detection marker: rect|circle")
		jsonf        = flag.String("json", "", "Output the detections into a json file")
	)

	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, banner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if len(*source) == 0 || len(*cascadeFile) == 0 {
		log.Fatal("Usage: vjdetect -in input.jpg -out out.png -cf database/cascade.bin")
	}
	if *marker != markerRectangle && *marker != markerCircle {
		log.Fatalf("Unknown marker: %v", *marker)
	}

	start := time.Now()

	det := &detector{
		cascadeFile:  *cascadeFile,
		destination:  *destination,
		iouThreshold: utils.Clamp(*iouThreshold, 0, 1),
		minConf:      *minConf,
		maxDim:       utils.Max(*maxDim, 0),
		threads:      *threads,
		marker:       *marker,
	}

	var dst io.Writer
	if det.destination != "empty" {
		if det.destination == pipeName {
			if term.IsTerminal(int(os.Stdout.Fd())) {
				log.Fatalln("`-` should be used with a pipe for stdout")
			}
			dst = os.Stdout
		} else {
			fileTypes := []string{".jpg", ".jpeg", ".png", ".bmp"}
			ext := strings.ToLower(filepath.Ext(det.destination))

			if !slices.Contains(fileTypes, ext) {
				log.Fatalf("Output file type not supported: %v", ext)
			}

			fn, err := os.OpenFile(det.destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				log.Fatalf("Unable to open output file: %v", err)
			}
			defer fn.Close()
			dst = fn
		}
	}

	spinner := utils.NewSpinner("Detecting objects...", time.Millisecond*100, true)
	spinner.Start()

	src, dets, ratio, err := det.detect(*source)
	if err != nil {
		spinner.StopMsg = fmt.Sprintf("Detecting objects... %s\n", utils.DecorateText("failed ✗", utils.ErrorMessage))
		spinner.Stop()
		log.Fatalf("Detection error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
	}

	dc, boxes := det.draw(src, dets, ratio)

	if dst != nil {
		if err := encodeImage(dst, dc.Image()); err != nil {
			log.Fatalf("Error encoding the output image: %v", err)
		}
	}

	var out io.Writer
	if *jsonf != "" {
		if *jsonf == pipeName {
			out = os.Stdout
		} else {
			f, err := os.Create(*jsonf)
			if err != nil {
				spinner.StopMsg = fmt.Sprintf("Detecting objects... %s\n", utils.DecorateText("failed ✗", utils.ErrorMessage))
				spinner.Stop()
				log.Fatalf("Could not create the json file: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
			}
			defer f.Close()
			out = f
		}
	}
	spinner.StopMsg = fmt.Sprintf("Detecting objects... %s", utils.DecorateText("finished ✔", utils.SuccessMessage))
	spinner.Stop()

	if len(boxes) > 0 {
		log.Printf("\n%s object(s) detected", utils.DecorateText(fmt.Sprint(len(boxes)), utils.SuccessMessage))

		if out != nil {
			if err := json.NewEncoder(out).Encode(boxes); err != nil {
				log.Fatalf("Error encoding the json file: %s", err)
			}
		}
	} else {
		log.Printf("\n%s", utils.DecorateText("no detected objects!", utils.ErrorMessage))
	}

	log.Printf("\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(start)), utils.SuccessMessage))
}

// detect runs the cascade over the source image and returns the decoded
// image together with the clustered detections.
func (d *detector) detect(source string) (image.Image, []vj.Detection, float32, error) {
	var srcFile io.Reader
	if source == pipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, nil, 0, errors.New("`-` should be used with a pipe for stdin")
		}
		srcFile = os.Stdin
	} else {
		file, err := os.Open(source)
		if err != nil {
			return nil, nil, 0, err
		}
		defer file.Close()
		srcFile = file
	}

	src, err := imaging.Decode(srcFile, imaging.AutoOrientation(true))
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "cannot decode the source image")
	}
	if d.maxDim > 0 {
		b := src.Bounds()
		if b.Dx() > d.maxDim || b.Dy() > d.maxDim {
			src = imaging.Fit(src, d.maxDim, d.maxDim, imaging.Lanczos)
		}
	}

	contentType, err := utils.DetectFileContentType(d.cascadeFile)
	if err != nil {
		return nil, nil, 0, err
	}
	if contentType != "application/octet-stream" {
		return nil, nil, 0, errors.New("the provided cascade classifier is not valid")
	}

	cascade, err := vj.FromFile(d.cascadeFile)
	if err != nil {
		return nil, nil, 0, err
	}
	if cascade.StageCount() == 0 {
		return nil, nil, 0, errors.New("the cascade has no trained stage")
	}

	p := pool.New(d.threads)
	defer p.Close()

	dets, err := vj.DetectObjects(cascade, vj.ImageFromRGB(src), p)
	if err != nil {
		return nil, nil, 0, err
	}
	return src, vj.ClusterDetections(dets, cascade.WidthHeightRatio, d.iouThreshold), cascade.WidthHeightRatio, nil
}

// draw marks the detections above the minimum confidence on a copy of the
// source image and returns them as json boxes.
func (d *detector) draw(src image.Image, dets []vj.Detection, ratio float32) (*gg.Context, []box) {
	b := src.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.DrawImage(src, 0, 0)

	var boxes []box
	for _, det := range dets {
		if float64(det.Confidence) < d.minConf {
			continue
		}
		h := float64(det.Scale)
		w := h * float64(ratio)
		x, y := float64(det.Col), float64(det.Row)

		switch d.marker {
		case markerRectangle:
			dc.DrawRectangle(x, y, w, h)
		case markerCircle:
			dc.DrawEllipse(x+w/2, y+h/2, w/2, h/2)
		}
		dc.SetLineWidth(2.0)
		dc.SetStrokeStyle(gg.NewSolidPattern(color.RGBA{R: 255, G: 0, B: 0, A: 255}))
		dc.Stroke()

		boxes = append(boxes, box{
			X:          det.Col,
			Y:          det.Row,
			Width:      int(math.Round(w)),
			Height:     int(math.Round(h)),
			Confidence: det.Confidence,
		})
	}
	return dc, boxes
}

func encodeImage(dst io.Writer, img image.Image) error {
	f, ok := dst.(*os.File)
	if !ok || f == os.Stdout {
		return jpeg.Encode(dst, img, &jpeg.Options{Quality: 100})
	}
	switch strings.ToLower(filepath.Ext(f.Name())) {
	case "", ".jpg", ".jpeg":
		return jpeg.Encode(dst, img, &jpeg.Options{Quality: 100})
	case ".png":
		return png.Encode(dst, img)
	case ".bmp":
		return bmp.Encode(dst, img)
	}
	return errors.New("unsupported image format")
}
