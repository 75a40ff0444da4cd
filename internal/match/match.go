package match

import (
	"fmt"
	"strings"

	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/palette"
)

// Metric names a color distance function.
type Metric string

const (
	MetricRGB       Metric = "rgb"
	MetricLab       Metric = "lab"
	MetricCIEDE2000 Metric = "ciede2000"
)

// ParseMetric validates a metric name. The empty string selects MetricRGB.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetricRGB:
		return MetricRGB, nil
	case MetricLab:
		return MetricLab, nil
	case MetricCIEDE2000:
		return MetricCIEDE2000, nil
	default:
		return "", fmt.Errorf("unknown color metric %q (want rgb, lab or ciede2000)", s)
	}
}

// linearLimit is the palette size above which MetricRGB uses the k-d tree.
const linearLimit = 32

// Matcher returns the palette entry closest to a color.
type Matcher interface {
	// Match never fails for a non-empty palette.
	Match(c imaging.RGBColor) *palette.Entry
}

// New returns the matcher for p under metric. An unknown metric falls back
// to MetricRGB; validate configuration with ParseMetric first.
func New(p *palette.Palette, metric Metric) Matcher {
	switch metric {
	case MetricLab:
		return newLinear(p, labDistance(p))
	case MetricCIEDE2000:
		return newLinear(p, ciede2000Distance(p))
	}
	if p.Len() > linearLimit {
		return newKDTree(p)
	}
	return newLinear(p, rgbDistance(p))
}
