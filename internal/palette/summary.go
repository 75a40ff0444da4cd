package palette

import (
	"time"

	"github.com/ironsheep/block-mosaic/internal/imaging"
)

// Summary describes a loaded palette without its pixel data.
type Summary struct {
	Descriptor  string         `json:"descriptor"`
	TexturesDir string         `json:"textures_dir"`
	Policy      ColorPolicy    `json:"color_policy"`
	TileSize    int            `json:"tile_size"`
	Count       int            `json:"count"`
	LoadedAt    time.Time      `json:"loaded_at"`
	Entries     []EntrySummary `json:"entries"`
}

// EntrySummary describes one palette entry.
type EntrySummary struct {
	ID      string              `json:"id"`
	Texture string              `json:"texture"`
	Color   imaging.ColorResult `json:"color"`
}

// Summarize returns metadata about the palette for display.
func (p *Palette) Summarize() *Summary {
	entries := make([]EntrySummary, len(p.Entries))
	for i, e := range p.Entries {
		entries[i] = EntrySummary{
			ID:      e.ID,
			Texture: e.TextureFile,
			Color:   e.Color.Describe(),
		}
	}
	return &Summary{
		Descriptor:  p.Source.Descriptor,
		TexturesDir: p.Source.TexturesDir,
		Policy:      p.Policy,
		TileSize:    p.TileSize,
		Count:       len(p.Entries),
		LoadedAt:    p.LoadedAt,
		Entries:     entries,
	}
}
