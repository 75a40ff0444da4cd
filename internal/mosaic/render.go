package mosaic

import (
	"context"
	"fmt"
	"image"

	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/match"
	"github.com/ironsheep/block-mosaic/internal/palette"
)

// Render draws layout with the textures of pal.
//
// Parameters:
//   - ctx: Checked before every row of cells.
//   - layout: The per-cell entry choices from Plan.
//   - pal: The palette layout was planned against.
//
// Returns:
//   - *image.NRGBA: A canvas of Columns*TileSize x Rows*TileSize pixels with
//     origin (0,0). The texture for cell (col,row) occupies
//     [col*TileSize, (col+1)*TileSize) x [row*TileSize, (row+1)*TileSize).
//   - error: ctx.Err() if cancelled.
func Render(ctx context.Context, layout *Layout, pal *palette.Palette) (*image.NRGBA, error) {
	if layout == nil || layout.Columns <= 0 || layout.Rows <= 0 {
		return nil, fmt.Errorf("empty layout")
	}

	ts := pal.TileSize
	canvas := image.NewNRGBA(image.Rect(0, 0, layout.Columns*ts, layout.Rows*ts))
	rowBytes := ts * 4

	err := forEachRow(ctx, layout.Rows, func(row int) {
		for col := 0; col < layout.Columns; col++ {
			tex := pal.Entries[layout.At(col, row)].Texture
			for y := 0; y < ts; y++ {
				dst := canvas.PixOffset(col*ts, row*ts+y)
				src := tex.PixOffset(0, y)
				copy(canvas.Pix[dst:dst+rowBytes], tex.Pix[src:src+rowBytes])
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return canvas, nil
}

// Compose plans and renders a mosaic in one call.
func Compose(ctx context.Context, grid *imaging.CellGrid, pal *palette.Palette, m match.Matcher) (*image.NRGBA, *Layout, error) {
	layout, err := Plan(ctx, grid, m)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	img, err := Render(ctx, layout, pal)
	if err != nil {
		return nil, nil, err
	}
	return img, layout, nil
}
