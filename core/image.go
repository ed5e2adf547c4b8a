package vjcascade

import (
	"image"

	"github.com/pkg/errors"
)

// ImageParams is a grayscale image or a view into one.
// Pixels: the grayscale pixel data, starting with the view's top-left pixel.
// Rows: the number of rows of the view.
// Cols: the number of columns of the view.
// Dim: the row stride of the underlying pixel data.
type ImageParams struct {
	Pixels []uint8
	Rows   int
	Cols   int
	Dim    int
}

// At returns the pixel intensity at the given row and column.
func (img ImageParams) At(row, col int) uint8 {
	return img.Pixels[row*img.Dim+col]
}

// SubImage returns a view of the rows x cols region with its top-left corner at (row, col).
// The view shares the pixel data of img.
func (img ImageParams) SubImage(row, col, rows, cols int) (ImageParams, error) {
	if rows <= 0 || cols <= 0 {
		return ImageParams{}, errors.Wrapf(ErrInvalidArgument, "empty patch %dx%d", cols, rows)
	}
	if row < 0 || col < 0 || row+rows > img.Rows || col+cols > img.Cols {
		return ImageParams{}, errors.Wrapf(ErrInvalidArgument,
			"patch %dx%d at (%d,%d) outside of %dx%d image", cols, rows, col, row, img.Cols, img.Rows)
	}
	return ImageParams{
		Pixels: img.Pixels[row*img.Dim+col:],
		Rows:   rows,
		Cols:   cols,
		Dim:    img.Dim,
	}, nil
}

// Clone returns a compact copy of the view which does not keep the parent image alive.
func (img ImageParams) Clone() ImageParams {
	pixels := make([]uint8, img.Rows*img.Cols)
	for r := 0; r < img.Rows; r++ {
		copy(pixels[r*img.Cols:(r+1)*img.Cols], img.Pixels[r*img.Dim:r*img.Dim+img.Cols])
	}
	return ImageParams{
		Pixels: pixels,
		Rows:   img.Rows,
		Cols:   img.Cols,
		Dim:    img.Cols,
	}
}

// RgbToGrayscale converts the image to grayscale mode.
func RgbToGrayscale(src image.Image) []uint8 {
	bounds := src.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	gray := make([]uint8, rows*cols)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			gray[y*cols+x] = uint8(
				(0.299*float64(r) +
					0.587*float64(g) +
					0.114*float64(b)) / 256,
			)
		}
	}
	return gray
}

// ImageFromRGB converts src to grayscale and wraps it into an ImageParams.
func ImageFromRGB(src image.Image) ImageParams {
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	return ImageParams{
		Pixels: RgbToGrayscale(src),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}
}
