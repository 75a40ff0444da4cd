package mosaic

import (
	"image"

	"github.com/disintegration/imaging"
)

// Preview returns a copy of img no wider than maxWidth, scaled with a
// Lanczos filter and keeping the aspect ratio. A maxWidth of zero or less, or
// one at least as wide as img, returns an unscaled copy.
func Preview(img image.Image, maxWidth int) *image.NRGBA {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}
