package mosaic

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/match"
	"github.com/ironsheep/block-mosaic/internal/palette"
)

// Layout records the palette entry chosen for every cell.
type Layout struct {
	Columns int
	Rows    int

	// Indices holds the Entry.Index chosen for each cell, row-major.
	Indices []int
}

// At returns the entry index placed at (col, row).
func (l *Layout) At(col, row int) int {
	return l.Indices[row*l.Columns+col]
}

// BlockCount is one line of a mosaic's bill of materials.
type BlockCount struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Plan matches every cell of grid against m.
//
// Rows are distributed over up to GOMAXPROCS workers. Each worker checks ctx
// before starting a row; on cancellation Plan returns ctx.Err() and no layout.
func Plan(ctx context.Context, grid *imaging.CellGrid, m match.Matcher) (*Layout, error) {
	if grid == nil || grid.Width <= 0 || grid.Height <= 0 {
		return nil, fmt.Errorf("empty cell grid")
	}

	layout := &Layout{
		Columns: grid.Width,
		Rows:    grid.Height,
		Indices: make([]int, grid.Width*grid.Height),
	}

	err := forEachRow(ctx, grid.Height, func(row int) {
		base := row * grid.Width
		for col := 0; col < grid.Width; col++ {
			layout.Indices[base+col] = m.Match(grid.Cells[base+col]).Index
		}
	})
	if err != nil {
		return nil, err
	}
	return layout, nil
}

// forEachRow calls fn for every row in [0, rows) on a bounded worker pool.
// Workers write disjoint rows, so fn needs no locking of its own.
func forEachRow(ctx context.Context, rows int, fn func(row int)) error {
	workers := runtime.GOMAXPROCS(0)
	if workers > rows {
		workers = rows
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for row := w; row < rows; row += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				fn(row)
			}
			return nil
		})
	}
	return g.Wait()
}

// Census counts how many cells use each block, most used first. Blocks with
// equal counts keep palette declaration order. Unused blocks are omitted.
func (l *Layout) Census(pal *palette.Palette) []BlockCount {
	counts := make([]int, pal.Len())
	for _, idx := range l.Indices {
		counts[idx]++
	}

	out := make([]BlockCount, 0, len(counts))
	for i, n := range counts {
		if n > 0 {
			out = append(out, BlockCount{ID: pal.Entries[i].ID, Count: n})
		}
	}
	// out is already in declaration order; a stable sort keeps it for ties.
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Count > out[b].Count
	})
	return out
}

// MeanError is the average CIE76 distance between each cell color and the
// representative color of the block placed there. Zero means every cell
// found an exact match.
func (l *Layout) MeanError(grid *imaging.CellGrid, pal *palette.Palette) float64 {
	if len(l.Indices) == 0 {
		return 0
	}
	var sum float64
	for i, idx := range l.Indices {
		sum += grid.Cells[i].Colorful().DistanceLab(pal.Entries[idx].Color.Colorful())
	}
	return sum / float64(len(l.Indices))
}
