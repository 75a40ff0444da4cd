package mosaic

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/clone"
)

// DefaultGridColor is the boundary color used when none is given.
const DefaultGridColor = "#FF000080"

// GridOverlay draws block boundaries onto a copy of a mosaic so it can be
// used as a building guide.
//
// Parameters:
//   - img: A rendered mosaic.
//   - tileSize: Pixel size of one block in img.
//   - every: Draw a boundary line every this many blocks; values below 1
//     are treated as 1.
//   - showCoordinates: Label each intersection with its "column,row" block
//     coordinates.
//   - gridColorHex: Line color as "#RRGGBB" or "#RRGGBBAA". Empty or
//     unparsable values fall back to DefaultGridColor.
//
// Returns:
//   - *image.RGBA: The annotated copy; img itself is never modified.
//   - error: If tileSize is not positive.
func GridOverlay(img image.Image, tileSize, every int, showCoordinates bool, gridColorHex string) (*image.RGBA, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %d", tileSize)
	}
	if every < 1 {
		every = 1
	}

	gridColor, err := parseHexColor(gridColorHex)
	if err != nil {
		gridColor, _ = parseHexColor(DefaultGridColor)
	}

	result := clone.AsRGBA(img)
	bounds := result.Bounds()
	spacing := tileSize * every
	line := image.NewUniform(gridColor)

	for x := bounds.Min.X + spacing; x < bounds.Max.X; x += spacing {
		draw.Draw(result, image.Rect(x, bounds.Min.Y, x+1, bounds.Max.Y), line, image.Point{}, draw.Over)
	}
	for y := bounds.Min.Y + spacing; y < bounds.Max.Y; y += spacing {
		draw.Draw(result, image.Rect(bounds.Min.X, y, bounds.Max.X, y+1), line, image.Point{}, draw.Over)
	}

	if showCoordinates {
		labelColor := color.RGBA{255, 255, 255, 255}
		bgColor := color.RGBA{0, 0, 0, 180}

		for y := bounds.Min.Y + spacing; y < bounds.Max.Y; y += spacing {
			for x := bounds.Min.X + spacing; x < bounds.Max.X; x += spacing {
				label := fmt.Sprintf("%d,%d", (x-bounds.Min.X)/tileSize, (y-bounds.Min.Y)/tileSize)
				drawLabel(result, x+2, y+2, label, labelColor, bgColor)
			}
		}
	}

	return result, nil
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA" into a non-premultiplied
// color.
func parseHexColor(hex string) (color.NRGBA, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color length")
	}

	val, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, err
	}
	if len(hex) == 6 {
		val = val<<8 | 0xff
	}
	return color.NRGBA{R: uint8(val >> 24), G: uint8(val >> 16), B: uint8(val >> 8), A: uint8(val)}, nil
}

// glyphs is a 3x5 pixel font covering block coordinate labels.
var glyphs = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	',': {"000", "000", "000", "010", "010"},
}

// drawLabel draws text on a filled box with its top-left corner at (x, y),
// clipped to the image.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	const charWidth, labelHeight = 4, 7

	box := image.Rect(x-1, y-1, x+len(text)*charWidth, y+labelHeight).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(bg), image.Point{}, draw.Over)

	bounds := img.Bounds()
	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				if pt := image.Pt(cx+col, y+row); pt.In(bounds) {
					img.SetRGBA(pt.X, pt.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}
