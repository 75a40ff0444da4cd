package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/block-mosaic/internal/apperr"
)

// DefaultMaxPixels bounds the decoded size of an upload (width * height).
const DefaultMaxPixels = 40_000_000

// DecodeHeader reads the image dimensions from the header of data without
// decoding the pixels, applying the same checks as Decode.
func DecodeHeader(data []byte, maxPixels int) (image.Config, string, error) {
	const op = "imaging.decode"

	if len(data) == 0 {
		return image.Config{}, "", apperr.New(apperr.KindDecode, op, "image data is empty")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", apperr.Wrap(apperr.KindDecode, op, "invalid image format or corrupted image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, "", apperr.New(apperr.KindDecode, op, fmt.Sprintf("image has invalid dimensions %dx%d", cfg.Width, cfg.Height))
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return image.Config{}, "", apperr.New(apperr.KindDecode, op,
			fmt.Sprintf("image %dx%d exceeds the %d pixel limit", cfg.Width, cfg.Height, maxPixels))
	}
	return cfg, format, nil
}

// Decode turns raw upload bytes into an image.
//
// Parameters:
//   - data: The encoded image. PNG, JPEG, GIF, BMP, TIFF and WebP are
//     supported; for animated GIFs only the first frame is used.
//   - maxPixels: Upper bound on width*height, checked from the header before
//     the pixel data is decoded. Zero or negative disables the check.
//
// Returns:
//   - image.Image: The decoded image with EXIF orientation applied.
//   - error: A KindDecode *apperr.Error if the bytes are empty, truncated,
//     in an unsupported format, or describe an image larger than maxPixels.
func Decode(data []byte, maxPixels int) (image.Image, error) {
	_, format, err := DecodeHeader(data, maxPixels)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDecode, "imaging.decode", fmt.Sprintf("failed to decode %s image", format), err)
	}

	return img, nil
}
