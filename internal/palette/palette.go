package palette

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/block-mosaic/internal/apperr"
	imgx "github.com/ironsheep/block-mosaic/internal/imaging"
)

const opLoad = "palette.load"

// ColorPolicy selects where an entry's representative color comes from.
type ColorPolicy string

const (
	// PolicyAverage computes the color from the texture pixels.
	PolicyAverage ColorPolicy = "average"

	// PolicyDescriptor takes the color written in the descriptor.
	PolicyDescriptor ColorPolicy = "descriptor"
)

// ParsePolicy validates a policy name. The empty string selects PolicyAverage.
func ParsePolicy(s string) (ColorPolicy, error) {
	switch ColorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAverage:
		return PolicyAverage, nil
	case PolicyDescriptor:
		return PolicyDescriptor, nil
	default:
		return "", fmt.Errorf("unknown color policy %q (want average or descriptor)", s)
	}
}

// Source identifies a palette on disk.
type Source struct {
	// Descriptor is the path of the JSON or YAML descriptor file.
	Descriptor string `json:"descriptor"`

	// TexturesDir is the directory texture filenames are resolved against.
	TexturesDir string `json:"textures_dir"`
}

// Key returns the cache identity of the source: both paths cleaned and made
// absolute where possible.
func (s Source) Key() string {
	return absPath(s.Descriptor) + "\x00" + absPath(s.TexturesDir)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Options controls palette construction.
type Options struct {
	// Policy selects the representative color source. Empty means PolicyAverage.
	Policy ColorPolicy
}

// Entry is one block of the palette. Entries are read-only once loaded.
type Entry struct {
	// ID is the block identifier from the descriptor, unique in the palette.
	ID string

	// Index is the declaration order in the descriptor, starting at 0.
	Index int

	// TextureFile is the texture filename as written in the descriptor.
	TextureFile string

	// Color is the representative color used for matching.
	Color imgx.RGBColor

	// Texture is the tile image, TileSize x TileSize, origin at (0,0).
	Texture *image.NRGBA
}

// Palette is an immutable, non-empty set of entries sharing one tile size.
type Palette struct {
	Source   Source
	Policy   ColorPolicy
	TileSize int
	Entries  []Entry
	LoadedAt time.Time

	// Digest is a hex SHA-256 over the policy and every entry's ID, color and
	// texture pixels. Two palettes with the same content share a digest
	// regardless of where or when they were loaded.
	Digest string

	byID map[string]int
}

// Len returns the number of entries.
func (p *Palette) Len() int {
	return len(p.Entries)
}

// Lookup returns the entry with the given ID.
func (p *Palette) Lookup(id string) (*Entry, bool) {
	i, ok := p.byID[id]
	if !ok {
		return nil, false
	}
	return &p.Entries[i], true
}

// Colors returns the representative colors in declaration order.
func (p *Palette) Colors() []imgx.RGBColor {
	colors := make([]imgx.RGBColor, len(p.Entries))
	for i := range p.Entries {
		colors[i] = p.Entries[i].Color
	}
	return colors
}

// Load reads the descriptor and every texture it references and builds a
// Palette.
//
// Parameters:
//   - src: Descriptor path and textures directory.
//   - opts: Representative color policy.
//
// Returns:
//   - *Palette: A non-empty palette in descriptor order.
//   - error: A KindConfiguration *apperr.Error describing the first problem
//     found. Texture errors are reported for the first failing entry in
//     declaration order.
//
// Textures are decoded in parallel, bounded by GOMAXPROCS.
func Load(src Source, opts Options) (*Palette, error) {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyAverage
	}
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, opLoad, "invalid color policy", err)
	}

	data, err := os.ReadFile(src.Descriptor)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, opLoad, "blocks descriptor not readable", err)
	}

	decl, err := parseDescriptor(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, opLoad,
			fmt.Sprintf("malformed blocks descriptor %s", filepath.Base(src.Descriptor)), err)
	}
	if len(decl) == 0 {
		return nil, apperr.Configurationf(opLoad, "blocks descriptor %s defines no blocks", filepath.Base(src.Descriptor))
	}

	byID := make(map[string]int, len(decl))
	for i, d := range decl {
		switch {
		case strings.TrimSpace(d.ID) == "":
			return nil, apperr.Configurationf(opLoad, "entry %d has an empty id", i)
		case strings.TrimSpace(d.Texture) == "":
			return nil, apperr.Configurationf(opLoad, "block %q has no texture", d.ID)
		case !filepath.IsLocal(filepath.FromSlash(d.Texture)):
			return nil, apperr.Configurationf(opLoad, "block %q texture %q is outside the textures directory", d.ID, d.Texture)
		case policy == PolicyDescriptor && !d.Color.set:
			return nil, apperr.Configurationf(opLoad, "block %q has no color but the color policy is %q", d.ID, policy)
		}
		if prev, dup := byID[d.ID]; dup {
			return nil, apperr.Configurationf(opLoad, "block %q declared twice (entries %d and %d)", d.ID, prev, i)
		}
		byID[d.ID] = i
	}

	textures, err := loadTextures(src.TexturesDir, decl)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(decl))
	for i, d := range decl {
		c := d.Color.rgb
		if policy == PolicyAverage {
			c = imgx.AverageColor(textures[i])
		}
		entries[i] = Entry{
			ID:          d.ID,
			TextureFile: d.Texture,
			Color:       c,
			Texture:     textures[i],
		}
	}

	return New(src, policy, entries)
}

// New builds a palette from decoded entries, enforcing the invariants Load
// enforces: at least one entry, unique non-empty IDs, square textures of one
// size. Entry.Index is assigned from slice order.
func New(src Source, policy ColorPolicy, entries []Entry) (*Palette, error) {
	if len(entries) == 0 {
		return nil, apperr.Configurationf(opLoad, "palette has no blocks")
	}

	tileSize := 0
	byID := make(map[string]int, len(entries))
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, apperr.Configurationf(opLoad, "entry %d has an empty id", i)
		}
		if prev, dup := byID[e.ID]; dup {
			return nil, apperr.Configurationf(opLoad, "block %q declared twice (entries %d and %d)", e.ID, prev, i)
		}
		if e.Texture == nil {
			return nil, apperr.Configurationf(opLoad, "block %q has no texture", e.ID)
		}
		b := e.Texture.Bounds()
		if b.Empty() || b.Dx() != b.Dy() || b.Min != (image.Point{}) {
			return nil, apperr.Configurationf(opLoad, "block %q texture must be square at the origin, got %v", e.ID, b)
		}
		if i == 0 {
			tileSize = b.Dx()
		} else if b.Dx() != tileSize {
			return nil, apperr.Configurationf(opLoad, "block %q texture is %dx%d, expected %dx%d like %q",
				e.ID, b.Dx(), b.Dy(), tileSize, tileSize, entries[0].ID)
		}

		byID[e.ID] = i
		out[i] = e
		out[i].Index = i
	}

	return &Palette{
		Source:   src,
		Policy:   policy,
		TileSize: tileSize,
		Entries:  out,
		LoadedAt: time.Now(),
		Digest:   digest(policy, out),
		byID:     byID,
	}, nil
}

func digest(policy ColorPolicy, entries []Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00", policy, len(entries))
	for _, e := range entries {
		b := e.Texture.Bounds()
		fmt.Fprintf(h, "%s\x00%s\x00%dx%d\x00", e.ID, e.Color.Hex(), b.Dx(), b.Dy())
		for y := 0; y < b.Dy(); y++ {
			off := e.Texture.PixOffset(b.Min.X, b.Min.Y+y)
			h.Write(e.Texture.Pix[off : off+4*b.Dx()])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// loadTextures decodes every texture, checking that each one is square.
func loadTextures(dir string, decl []descriptorEntry) ([]*image.NRGBA, error) {
	textures := make([]*image.NRGBA, len(decl))
	errs := make([]error, len(decl))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range decl {
		i := i
		g.Go(func() error {
			textures[i], errs[i] = loadTexture(dir, decl[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return textures, nil
}

func loadTexture(dir string, d descriptorEntry) (*image.NRGBA, error) {
	path := filepath.Join(dir, filepath.FromSlash(d.Texture))

	if _, err := os.Stat(path); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, opLoad,
			fmt.Sprintf("block %q texture %q not found", d.ID, d.Texture), err)
	}

	img, err := imgio.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, opLoad,
			fmt.Sprintf("block %q texture %q is not a valid image", d.ID, d.Texture), err)
	}

	b := img.Bounds()
	if b.Empty() || b.Dx() != b.Dy() {
		return nil, apperr.Configurationf(opLoad, "block %q texture %q must be square, got %dx%d",
			d.ID, d.Texture, b.Dx(), b.Dy())
	}

	// Clone normalises the origin to (0,0) and the layout to NRGBA.
	return imaging.Clone(img), nil
}
