// Package convert is the entry point for turning an uploaded image into a
// block mosaic.
//
// A Converter validates the request, loads the palette through the shared
// cache, samples the image, and composes the mosaic, all under one deadline.
// Every failure is an *apperr.Error whose Kind tells the transport how to
// answer: KindValidation for a bad width, KindDecode for unreadable bytes,
// KindConfiguration for a broken palette, KindTimeout when the deadline passes
// or the caller gives up.
package convert

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/ironsheep/block-mosaic/internal/apperr"
	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/match"
	"github.com/ironsheep/block-mosaic/internal/metrics"
	"github.com/ironsheep/block-mosaic/internal/mosaic"
	"github.com/ironsheep/block-mosaic/internal/palette"
)

const opConvert = "convert"

// Result is a finished mosaic and its report.
type Result struct {
	Image     *image.NRGBA
	Columns   int
	Rows      int
	TileSize  int
	Blocks    []mosaic.BlockCount
	MeanError float64
	Elapsed   time.Duration
}

// Converter runs conversions against palettes from a shared cache. It is
// safe for concurrent use.
type Converter struct {
	cfg      Config
	cache    *palette.Cache
	logger   hclog.Logger
	recorder *metrics.Recorder

	mu       sync.Mutex
	matchers map[string]matcherEntry
}

// matcherEntry remembers the matcher built for one palette instance, so the
// k-d tree is built once per load rather than once per request.
type matcherEntry struct {
	pal     *palette.Palette
	matcher match.Matcher
}

// New validates cfg and returns a Converter. logger and recorder may be nil.
func New(cfg Config, cache *palette.Cache, logger hclog.Logger, recorder *metrics.Recorder) (*Converter, error) {
	if cfg.Filter == "" {
		cfg.Filter = imaging.FilterBox
	}
	if cfg.Metric == "" {
		cfg.Metric = match.MetricRGB
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, apperr.Configurationf(opConvert, "palette cache is required")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Converter{
		cfg:      cfg,
		cache:    cache,
		logger:   logger.Named("convert"),
		recorder: recorder,
		matchers: make(map[string]matcherEntry),
	}, nil
}

// Config returns the validated configuration.
func (c *Converter) Config() Config {
	return c.cfg
}

// Convert turns encoded image bytes into a mosaic width blocks wide.
//
// Parameters:
//   - ctx: Caller context. The configured timeout is applied on top of it.
//   - data: The encoded source image.
//   - width: Mosaic width in blocks, within [MinWidth, MaxWidth].
//   - src: The palette to build with.
//
// Returns:
//   - *Result: The canvas and its report. Never partial.
//   - error: An *apperr.Error. The width is checked before anything is
//     decoded.
func (c *Converter) Convert(ctx context.Context, data []byte, width int, src palette.Source) (*Result, error) {
	start := time.Now()

	res, err := c.convert(ctx, data, width, src)
	elapsed := time.Since(start)
	if err != nil {
		c.recorder.Conversion(outcome(err), elapsed, 0)
		c.logger.Warn("conversion failed", "width", width, "bytes", len(data), "elapsed", elapsed, "error", err)
		return nil, err
	}

	res.Elapsed = elapsed
	c.recorder.Conversion(metrics.OutcomeOK, elapsed, res.Columns*res.Rows)
	c.logger.Info("conversion finished",
		"columns", res.Columns,
		"rows", res.Rows,
		"tile_size", res.TileSize,
		"blocks", len(res.Blocks),
		"elapsed", elapsed)
	return res, nil
}

func (c *Converter) convert(ctx context.Context, data []byte, width int, src palette.Source) (*Result, error) {
	if err := c.cfg.ValidateWidth(width); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	pal, m, err := c.palette(src)
	if err != nil {
		return nil, err
	}

	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	hdr, format, err := imaging.DecodeHeader(data, c.maxPixels())
	if err != nil {
		return nil, err
	}
	if err := c.cfg.ValidateOutput(width, hdr.Width, hdr.Height, pal.TileSize); err != nil {
		// JPEG EXIF orientation may swap the axes on decode, so the header
		// only rejects a JPEG that is too large either way round.
		if format != "jpeg" || c.cfg.ValidateOutput(width, hdr.Height, hdr.Width, pal.TileSize) != nil {
			return nil, err
		}
	}

	decoded, err := imaging.Decode(data, c.maxPixels())
	if err != nil {
		return nil, err
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	b := decoded.Bounds()
	if err := c.cfg.ValidateOutput(width, b.Dx(), b.Dy(), pal.TileSize); err != nil {
		return nil, err
	}

	grid, err := imaging.SampleImage(decoded, width, imaging.SampleOptions{
		Filter:     c.cfg.Filter,
		Background: c.cfg.Background,
	})
	if err != nil {
		return nil, err
	}

	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	layout, err := mosaic.Plan(ctx, grid, m)
	if err != nil {
		return nil, classify(err)
	}

	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	img, err := mosaic.Render(ctx, layout, pal)
	if err != nil {
		return nil, classify(err)
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	return &Result{
		Image:     img,
		Columns:   layout.Columns,
		Rows:      layout.Rows,
		TileSize:  pal.TileSize,
		Blocks:    layout.Census(pal),
		MeanError: layout.MeanError(grid, pal),
	}, nil
}

// maxPixels maps the configured source limit onto Decode, where a
// non-positive value disables the check.
func (c *Converter) maxPixels() int {
	if c.cfg.MaxPixels <= 0 {
		return -1
	}
	return c.cfg.MaxPixels
}

// Match returns the palette entry closest to color under the configured
// metric.
func (c *Converter) Match(src palette.Source, color imaging.RGBColor) (*palette.Entry, error) {
	_, m, err := c.palette(src)
	if err != nil {
		return nil, err
	}
	return m.Match(color), nil
}

// palette fetches the palette for src and the matcher built for it.
func (c *Converter) palette(src palette.Source) (*palette.Palette, match.Matcher, error) {
	pal, err := c.cache.Get(src)
	if err != nil {
		return nil, nil, err
	}

	key := src.Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.matchers[key]; ok && e.pal == pal {
		return pal, e.matcher, nil
	}
	m := match.New(pal, c.cfg.Metric)
	c.matchers[key] = matcherEntry{pal: pal, matcher: m}
	return pal, m, nil
}

// checkpoint reports a cancelled or expired context as KindTimeout.
func checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return timeoutError(err)
	}
	return nil
}

func timeoutError(err error) error {
	msg := "conversion timed out"
	if errors.Is(err, context.Canceled) {
		msg = "conversion cancelled"
	}
	return apperr.Wrap(apperr.KindTimeout, opConvert, msg, err)
}

// classify maps context errors from the compose phase to KindTimeout.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return timeoutError(err)
	}
	if _, ok := apperr.KindOf(err); ok {
		return err
	}
	return apperr.Wrap(apperr.KindConfiguration, opConvert, "mosaic composition failed", err)
}

// outcome maps an error to its metrics label.
func outcome(err error) string {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return metrics.OutcomeError
	}
	switch kind {
	case apperr.KindValidation:
		return metrics.OutcomeValidationError
	case apperr.KindDecode:
		return metrics.OutcomeDecodeError
	case apperr.KindConfiguration:
		return metrics.OutcomeConfigurationError
	case apperr.KindTimeout:
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}
