package convert

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/block-mosaic/internal/apperr"
	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/match"
	"github.com/ironsheep/block-mosaic/internal/metrics"
	"github.com/ironsheep/block-mosaic/internal/mosaic"
	"github.com/ironsheep/block-mosaic/internal/palette"
	"github.com/ironsheep/block-mosaic/internal/palette/palettetest"
)

var (
	red  = imaging.RGBColor{R: 255}
	blue = imaging.RGBColor{B: 255}
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// redBlueImage is 2x2: top row red, bottom row blue.
func redBlueImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(0, 1, color.NRGBA{0, 0, 255, 255})
	img.SetNRGBA(1, 1, color.NRGBA{0, 0, 255, 255})
	return img
}

func newConverter(t *testing.T, cfg Config, recorder *metrics.Recorder) (*Converter, palette.Source) {
	t.Helper()
	src := palettetest.WriteFixture(t, 16,
		palettetest.Block{ID: "red_block", Color: red},
		palettetest.Block{ID: "blue_block", Color: blue},
	)
	conv, err := New(cfg, palette.NewCache(palette.Options{}, nil), nil, recorder)
	require.NoError(t, err)
	return conv, src
}

func requireKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok, "error %v is not classified", err)
	assert.Equal(t, want, kind, "error: %v", err)
}

func TestConvert_RedBlueScenario(t *testing.T) {
	conv, src := newConverter(t, DefaultConfig(), nil)

	res, err := conv.Convert(context.Background(), encodePNG(t, redBlueImage()), 2, src)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Columns)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 16, res.TileSize)
	assert.Equal(t, image.Rect(0, 0, 32, 32), res.Image.Bounds())
	assert.Equal(t, []mosaic.BlockCount{{ID: "red_block", Count: 2}, {ID: "blue_block", Count: 2}}, res.Blocks)
	assert.InDelta(t, 0, res.MeanError, 1e-9)
	assert.Greater(t, res.Elapsed, time.Duration(0))

	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			want := color.NRGBA{255, 0, 0, 255}
			if y >= 16 {
				want = color.NRGBA{0, 0, 255, 255}
			}
			require.Equal(t, want, res.Image.NRGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestConvert_Dimensions(t *testing.T) {
	conv, src := newConverter(t, DefaultConfig(), nil)

	tests := []struct {
		name         string
		srcW, srcH   int
		width        int
		wantW, wantH int
	}{
		{"square", 40, 40, 10, 160, 160},
		{"landscape", 100, 50, 8, 128, 64},
		{"portrait", 30, 90, 3, 48, 144},
		{"very wide", 200, 1, 4, 64, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewNRGBA(image.Rect(0, 0, tt.srcW, tt.srcH))
			res, err := conv.Convert(context.Background(), encodePNG(t, img), tt.width, src)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, res.Image.Bounds().Dx())
			assert.Equal(t, tt.wantH, res.Image.Bounds().Dy())
			assert.Equal(t, res.Columns*res.TileSize, res.Image.Bounds().Dx())
			assert.Equal(t, res.Rows*res.TileSize, res.Image.Bounds().Dy())
		})
	}
}

func TestConvert_WidthBoundaries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinWidth = 2
	cfg.MaxWidth = 6
	conv, src := newConverter(t, cfg, nil)
	data := encodePNG(t, redBlueImage())

	for _, width := range []int{2, 6} {
		_, err := conv.Convert(context.Background(), data, width, src)
		assert.NoError(t, err, "width %d", width)
	}
	for _, width := range []int{1, 7, 0, -3} {
		_, err := conv.Convert(context.Background(), data, width, src)
		requireKind(t, err, apperr.KindValidation)
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	}
}

func TestConvert_WidthCheckedBeforeDecode(t *testing.T) {
	conv, src := newConverter(t, DefaultConfig(), nil)

	_, err := conv.Convert(context.Background(), []byte("garbage"), 0, src)
	requireKind(t, err, apperr.KindValidation)
}

func TestConvert_DecodeErrors(t *testing.T) {
	conv, src := newConverter(t, DefaultConfig(), nil)
	valid := encodePNG(t, redBlueImage())

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
		{"truncated", valid[:len(valid)/2]},
		{"header only", valid[:8]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := conv.Convert(context.Background(), tt.data, 2, src)
			requireKind(t, err, apperr.KindDecode)
		})
	}
}

func TestConvert_PixelLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPixels = 100
	conv, src := newConverter(t, cfg, nil)

	_, err := conv.Convert(context.Background(), encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 20, 20))), 2, src)
	requireKind(t, err, apperr.KindDecode)

	_, err = conv.Convert(context.Background(), encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 10, 10))), 2, src)
	assert.NoError(t, err)
}

func TestConvert_Deterministic(t *testing.T) {
	conv, src := newConverter(t, DefaultConfig(), nil)

	img := image.NewNRGBA(image.Rect(0, 0, 37, 23))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 31)
	}
	data := encodePNG(t, img)

	first, err := conv.Convert(context.Background(), data, 11, src)
	require.NoError(t, err)
	firstPNG, err := mosaic.EncodePNG(first.Image)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := conv.Convert(context.Background(), data, 11, src)
		require.NoError(t, err)
		againPNG, err := mosaic.EncodePNG(again.Image)
		require.NoError(t, err)
		require.Equal(t, firstPNG, againPNG)
	}
}

func TestConvert_Timeout(t *testing.T) {
	conv, src := newConverter(t, DefaultConfig(), nil)
	data := encodePNG(t, redBlueImage())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := conv.Convert(ctx, data, 2, src)
	requireKind(t, err, apperr.KindTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = conv.Convert(ctx, data, 2, src)
	requireKind(t, err, apperr.KindTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvert_TimeoutBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = time.Nanosecond
	conv, src := newConverter(t, cfg, nil)

	res, err := conv.Convert(context.Background(), encodePNG(t, redBlueImage()), 2, src)
	requireKind(t, err, apperr.KindTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, res)
}

func TestConvert_TimeoutDuringWork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = time.Millisecond
	conv, src := newConverter(t, cfg, nil)

	img := image.NewNRGBA(image.Rect(0, 0, 2000, 2000))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}

	// Whichever stage the deadline lands in, no canvas is handed back.
	res, err := conv.Convert(context.Background(), encodePNG(t, img), 512, src)
	requireKind(t, err, apperr.KindTimeout)
	assert.Nil(t, res)
}

func TestConvert_OutputLimit(t *testing.T) {
	conv, src := newConverter(t, DefaultConfig(), nil)

	// 1x40 at 512 blocks wide would be 512x20480 blocks of 16px.
	tall := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 1, 40)))
	res, err := conv.Convert(context.Background(), tall, 512, src)
	requireKind(t, err, apperr.KindValidation)
	assert.Nil(t, res)

	// The same source at a small width stays within the limit.
	res, err = conv.Convert(context.Background(), tall, 1, src)
	require.NoError(t, err)
	assert.Equal(t, 40, res.Rows)
}

func TestConvert_OutputLimitCheckedFromHeader(t *testing.T) {
	conv, src := newConverter(t, DefaultConfig(), nil)

	// Signature plus IHDR only: the pixel data is missing, so anything but
	// the size check would fail as a decode error.
	data := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 1, 4000)))[:33]
	_, err := conv.Convert(context.Background(), data, 512, src)
	requireKind(t, err, apperr.KindValidation)
}

func TestConvert_OutputLimitBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWidth = 4
	cfg.MaxOutputPixels = 4 * 16 * 16
	conv, src := newConverter(t, cfg, nil)

	res, err := conv.Convert(context.Background(), encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 2, 2))), 2, src)
	require.NoError(t, err)
	assert.Equal(t, 4*16*16, res.Image.Bounds().Dx()*res.Image.Bounds().Dy())

	_, err = conv.Convert(context.Background(), encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 2, 3))), 2, src)
	requireKind(t, err, apperr.KindValidation)

	cfg.MaxOutputPixels = -1
	unlimited, src := newConverter(t, cfg, nil)
	_, err = unlimited.Convert(context.Background(), encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 2, 3))), 2, src)
	assert.NoError(t, err)
}

func TestConfig_ValidateOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOutputPixels = 100

	tests := []struct {
		name                        string
		width, srcW, srcH, tileSize int
		wantErr                     bool
	}{
		{"fits", 10, 10, 10, 1, false},
		{"exact", 5, 5, 5, 2, false},
		{"one row too many", 5, 5, 6, 2, true},
		{"tile larger than limit", 1, 1, 1, 11, true},
		{"huge source height", 512, 1, 1 << 30, 16, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cfg.ValidateOutput(tt.width, tt.srcW, tt.srcH, tt.tileSize)
			if tt.wantErr {
				requireKind(t, err, apperr.KindValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConvert_ConfigurationError(t *testing.T) {
	conv, _ := newConverter(t, DefaultConfig(), nil)
	dir := t.TempDir()
	src := palettetest.WriteDescriptor(t, dir, "blocks.json", `[{"id": "stone", "texture": "missing.png"}]`)

	_, err := conv.Convert(context.Background(), encodePNG(t, redBlueImage()), 2, src)
	requireKind(t, err, apperr.KindConfiguration)
}

func TestConvert_RecordsMetrics(t *testing.T) {
	rec := metrics.New()
	conv, src := newConverter(t, DefaultConfig(), rec)
	data := encodePNG(t, redBlueImage())

	_, err := conv.Convert(context.Background(), data, 2, src)
	require.NoError(t, err)
	_, err = conv.Convert(context.Background(), nil, 2, src)
	require.Error(t, err)

	families, err := rec.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "mosaic_cells_total" {
			found = true
			assert.Equal(t, 4.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)

	n, err := testutil.GatherAndCount(rec.Registry(), "mosaic_conversions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestConverter_Match(t *testing.T) {
	conv, src := newConverter(t, DefaultConfig(), nil)

	e, err := conv.Match(src, imaging.RGBColor{R: 200, B: 20})
	require.NoError(t, err)
	assert.Equal(t, "red_block", e.ID)

	e, err = conv.Match(src, imaging.RGBColor{R: 10, G: 10, B: 180})
	require.NoError(t, err)
	assert.Equal(t, "blue_block", e.ID)
}

func TestNew_InvalidConfig(t *testing.T) {
	cache := palette.NewCache(palette.Options{}, nil)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"min width zero", func(c *Config) { c.MinWidth = 0 }},
		{"max below min", func(c *Config) { c.MinWidth = 10; c.MaxWidth = 5 }},
		{"no timeout", func(c *Config) { c.Timeout = 0 }},
		{"bad filter", func(c *Config) { c.Filter = "bicubic" }},
		{"bad metric", func(c *Config) { c.Metric = "hsv" }},
		{"output limit below one row", func(c *Config) { c.MaxOutputPixels = c.MaxWidth - 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, cache, nil, nil)
			requireKind(t, err, apperr.KindConfiguration)
		})
	}

	_, err := New(DefaultConfig(), nil, nil, nil)
	requireKind(t, err, apperr.KindConfiguration)
}

func TestNew_DefaultsAlgorithms(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filter = ""
	cfg.Metric = ""
	conv, err := New(cfg, palette.NewCache(palette.Options{}, nil), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, imaging.FilterBox, conv.Config().Filter)
	assert.Equal(t, match.MetricRGB, conv.Config().Metric)
}
