package convert

import (
	"time"

	"github.com/ironsheep/block-mosaic/internal/apperr"
	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/match"
)

// Default limits, matching the service defaults.
const (
	DefaultMinWidth = 1
	DefaultMaxWidth = 512
	DefaultTimeout  = 30 * time.Second

	// DefaultMaxOutputPixels fits a square mosaic at the default maximum
	// width with 16px textures (8192x8192).
	DefaultMaxOutputPixels = 1 << 26
)

// Config holds the validated conversion limits and algorithm choices.
type Config struct {
	// MinWidth and MaxWidth bound the requested mosaic width, inclusive.
	MinWidth int
	MaxWidth int

	// Timeout is the wall-clock budget of one conversion.
	Timeout time.Duration

	// MaxPixels bounds the decoded source size. Zero or negative disables
	// the limit.
	MaxPixels int

	// MaxOutputPixels bounds the rendered canvas, Columns*Rows*TileSize².
	// It is checked from the image header before anything is allocated.
	// Zero or negative disables the limit.
	MaxOutputPixels int

	Filter imaging.Filter
	Metric match.Metric

	// Background is the color transparent pixels are flattened over.
	// Nil means white.
	Background *imaging.RGBColor
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MinWidth:        DefaultMinWidth,
		MaxWidth:        DefaultMaxWidth,
		Timeout:         DefaultTimeout,
		MaxPixels:       imaging.DefaultMaxPixels,
		MaxOutputPixels: DefaultMaxOutputPixels,
		Filter:          imaging.FilterBox,
		Metric:          match.MetricRGB,
	}
}

// Validate checks the configuration. Failures are KindConfiguration.
func (c Config) Validate() error {
	const op = "convert.config"

	if c.MinWidth < 1 {
		return apperr.Configurationf(op, "minimum width must be at least 1, got %d", c.MinWidth)
	}
	if c.MaxWidth < c.MinWidth {
		return apperr.Configurationf(op, "maximum width %d is below minimum width %d", c.MaxWidth, c.MinWidth)
	}
	if c.Timeout <= 0 {
		return apperr.Configurationf(op, "timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxOutputPixels > 0 && c.MaxOutputPixels < c.MaxWidth {
		return apperr.Configurationf(op, "output pixel limit %d cannot hold one row at maximum width %d", c.MaxOutputPixels, c.MaxWidth)
	}
	if _, err := imaging.ParseFilter(string(c.Filter)); err != nil {
		return apperr.Wrap(apperr.KindConfiguration, op, err.Error(), err)
	}
	if _, err := match.ParseMetric(string(c.Metric)); err != nil {
		return apperr.Wrap(apperr.KindConfiguration, op, err.Error(), err)
	}
	return nil
}

// ValidateOutput checks that a mosaic of width blocks over a source of
// srcW x srcH pixels fits the output limit. Failures are KindValidation.
func (c Config) ValidateOutput(width, srcW, srcH, tileSize int) error {
	if c.MaxOutputPixels <= 0 || width <= 0 || tileSize <= 0 {
		return nil
	}
	rows := imaging.OutputHeight(width, srcW, srcH)
	// Compare in blocks so the pixel product cannot overflow.
	maxCells := c.MaxOutputPixels / (tileSize * tileSize)
	if rows > maxCells/width {
		return apperr.Validationf("convert.size",
			"a %d block wide mosaic of a %dx%d image needs %d rows of %dpx blocks, exceeding the %d pixel output limit; use a smaller width",
			width, srcW, srcH, rows, tileSize, c.MaxOutputPixels)
	}
	return nil
}

// ValidateWidth checks a requested width against the configured bounds.
func (c Config) ValidateWidth(width int) error {
	if width < c.MinWidth || width > c.MaxWidth {
		return apperr.Validationf("convert.width", "width must be between %d and %d, got %d", c.MinWidth, c.MaxWidth, width)
	}
	return nil
}
