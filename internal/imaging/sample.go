package imaging

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/block-mosaic/internal/apperr"
)

// Filter selects how a cell's representative color is computed from the
// source pixels it covers.
type Filter string

const (
	// FilterBox averages every source pixel in the cell footprint.
	FilterBox Filter = "box"

	// FilterNearest takes the source pixel nearest the cell centre.
	FilterNearest Filter = "nearest"
)

// ParseFilter validates a filter name. The empty string selects FilterBox.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterBox:
		return FilterBox, nil
	case FilterNearest:
		return FilterNearest, nil
	default:
		return "", fmt.Errorf("unknown sample filter %q (want box or nearest)", s)
	}
}

func (f Filter) resample() imaging.ResampleFilter {
	if f == FilterNearest {
		return imaging.NearestNeighbor
	}
	return imaging.Box
}

// SampleOptions controls decoding and downsampling.
type SampleOptions struct {
	// Filter is the downsampling policy. Empty means FilterBox.
	Filter Filter

	// Background is the color transparent source pixels are flattened over.
	// Nil means white.
	Background *RGBColor

	// MaxPixels bounds the decoded image size. Zero means DefaultMaxPixels,
	// negative disables the limit.
	MaxPixels int
}

func (o SampleOptions) maxPixels() int {
	if o.MaxPixels == 0 {
		return DefaultMaxPixels
	}
	return o.MaxPixels
}

func (o SampleOptions) background() RGBColor {
	if o.Background == nil {
		return RGBColor{R: 255, G: 255, B: 255}
	}
	return *o.Background
}

// CellGrid holds one representative color per output cell, row-major.
type CellGrid struct {
	Width  int        `json:"width"`  // Number of columns
	Height int        `json:"height"` // Number of rows
	Cells  []RGBColor `json:"cells"`  // Width*Height colors, row-major
}

// At returns the color of the cell at (col, row).
func (g *CellGrid) At(col, row int) RGBColor {
	return g.Cells[row*g.Width+col]
}

// OutputHeight derives the grid height from the source aspect ratio:
// round(width * srcH / srcW) with halves rounding up and a floor of 1.
func OutputHeight(width, srcW, srcH int) int {
	if width <= 0 || srcW <= 0 || srcH <= 0 {
		return 1
	}
	h := (2*width*srcH + srcW) / (2 * srcW)
	if h < 1 {
		return 1
	}
	return h
}

// Sample decodes data and downsamples it to a grid of the given width.
//
// Decoding errors are KindDecode; a non-positive width is KindValidation.
func Sample(data []byte, width int, opts SampleOptions) (*CellGrid, error) {
	img, err := Decode(data, opts.maxPixels())
	if err != nil {
		return nil, err
	}
	return SampleImage(img, width, opts)
}

// SampleImage downsamples an already decoded image to a grid of the given
// width and a height that preserves the source aspect ratio.
//
// Parameters:
//   - img: The source image. Its bounds need not start at (0,0).
//   - width: Number of grid columns; must be positive.
//   - opts: Filter and background; MaxPixels is ignored here.
//
// Returns:
//   - *CellGrid: A fully populated grid of width x OutputHeight(...) cells.
//   - error: KindValidation if width is not positive, KindDecode if the
//     image is empty.
func SampleImage(img image.Image, width int, opts SampleOptions) (*CellGrid, error) {
	const op = "imaging.sample"

	if width <= 0 {
		return nil, apperr.Validationf(op, "width must be positive, got %d", width)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, apperr.New(apperr.KindDecode, op, "image has no pixels")
	}

	height := OutputHeight(width, bounds.Dx(), bounds.Dy())
	resized := imaging.Resize(flatten(img, opts.background()), width, height, opts.Filter.resample())

	grid := &CellGrid{
		Width:  width,
		Height: height,
		Cells:  make([]RGBColor, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := resized.PixOffset(x, y)
			grid.Cells[y*width+x] = RGBColor{R: resized.Pix[i], G: resized.Pix[i+1], B: resized.Pix[i+2]}
		}
	}

	return grid, nil
}

// flatten composites img over an opaque background of the same size.
// Opaque images are returned unchanged.
func flatten(img image.Image, bg RGBColor) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// AverageColor returns the alpha-weighted area average of img, computed with
// the same box filter the sampler uses. Fully transparent images average to
// black.
func AverageColor(img image.Image) RGBColor {
	px := imaging.Resize(img, 1, 1, imaging.Box)
	return RGBColor{R: px.Pix[0], G: px.Pix[1], B: px.Pix[2]}
}
