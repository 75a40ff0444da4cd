// Package palettetest builds palettes for tests, in memory or on disk.
package palettetest

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/palette"
)

// Block is a solid-color test block.
type Block struct {
	ID    string
	Color imaging.RGBColor
}

// Solid returns a size x size opaque texture of one color.
func Solid(c imaging.RGBColor, size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 0xff
	}
	return img
}

// New builds an in-memory palette of solid blocks in the given order.
func New(t testing.TB, tileSize int, blocks ...Block) *palette.Palette {
	t.Helper()
	entries := make([]palette.Entry, len(blocks))
	for i, b := range blocks {
		entries[i] = palette.Entry{
			ID:          b.ID,
			TextureFile: b.ID + ".png",
			Color:       b.Color,
			Texture:     Solid(b.Color, tileSize),
		}
	}
	p, err := palette.New(palette.Source{}, palette.PolicyAverage, entries)
	if err != nil {
		t.Fatalf("failed to build palette: %v", err)
	}
	return p
}

// WriteTexture encodes img as PNG at dir/name.
func WriteTexture(t testing.TB, dir, name string, img image.Image) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create texture dir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create texture: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode texture: %v", err)
	}
}

// WriteFixture writes one PNG texture per block and a JSON array descriptor
// listing them in order, under a fresh temp directory.
func WriteFixture(t testing.TB, tileSize int, blocks ...Block) palette.Source {
	t.Helper()
	dir := t.TempDir()

	type entry struct {
		ID      string `json:"id"`
		Texture string `json:"texture"`
		Color   string `json:"color"`
	}
	decl := make([]entry, len(blocks))
	for i, b := range blocks {
		name := b.ID + ".png"
		WriteTexture(t, dir, name, Solid(b.Color, tileSize))
		decl[i] = entry{ID: b.ID, Texture: name, Color: b.Color.Hex()}
	}

	data, err := json.MarshalIndent(decl, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal descriptor: %v", err)
	}
	return WriteDescriptor(t, dir, "blocks.json", string(data))
}

// WriteDescriptor writes a descriptor file into dir and returns the source
// pointing at it.
func WriteDescriptor(t testing.TB, dir, name, content string) palette.Source {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}
	return palette.Source{Descriptor: path, TexturesDir: dir}
}

// Pattern returns a size x size texture split into a left and right color,
// handy for checking that textures are copied verbatim.
func Pattern(left, right color.NRGBA, size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x < size/2 {
				img.SetNRGBA(x, y, left)
			} else {
				img.SetNRGBA(x, y, right)
			}
		}
	}
	return img
}
