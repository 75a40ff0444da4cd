package match

import (
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/palette"
)

// distanceFunc returns the distance from c to palette entry i.
type distanceFunc func(c imaging.RGBColor, i int) float64

// linear scans every entry. Entries are visited in declaration order and only
// a strictly smaller distance replaces the current best, so ties keep the
// first declared entry.
type linear struct {
	p    *palette.Palette
	dist distanceFunc
}

func newLinear(p *palette.Palette, dist distanceFunc) *linear {
	return &linear{p: p, dist: dist}
}

func (m *linear) Match(c imaging.RGBColor) *palette.Entry {
	best := 0
	bestDist := m.dist(c, 0)
	for i := 1; i < len(m.p.Entries); i++ {
		if d := m.dist(c, i); d < bestDist {
			best, bestDist = i, d
		}
	}
	return &m.p.Entries[best]
}

func rgbDistance(p *palette.Palette) distanceFunc {
	colors := p.Colors()
	return func(c imaging.RGBColor, i int) float64 {
		return float64(c.DistanceSq(colors[i]))
	}
}

func labDistance(p *palette.Palette) distanceFunc {
	colors := colorfulColors(p)
	return func(c imaging.RGBColor, i int) float64 {
		return c.Colorful().DistanceLab(colors[i])
	}
}

func ciede2000Distance(p *palette.Palette) distanceFunc {
	colors := colorfulColors(p)
	return func(c imaging.RGBColor, i int) float64 {
		return c.Colorful().DistanceCIEDE2000(colors[i])
	}
}

func colorfulColors(p *palette.Palette) []colorful.Color {
	out := make([]colorful.Color, p.Len())
	for i := range p.Entries {
		out[i] = p.Entries[i].Color.Colorful()
	}
	return out
}
