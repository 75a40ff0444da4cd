// Package palette loads the set of tile textures a mosaic is built from.
//
// A palette is described by a descriptor file (JSON or YAML) that names each
// block and its texture file, plus a directory holding those textures. Two
// descriptor shapes are accepted, and both keep declaration order, which is
// the tie-break order used by the color matcher:
//
//	{"stone": "stone.png", "dirt": {"texture": "dirt.png", "color": "#866043"}}
//
//	[{"id": "stone", "texture": "stone.png", "color": [125, 125, 125]}]
//
// # Representative Colors
//
// Every entry carries one representative color, chosen by a single policy for
// the whole palette:
//   - PolicyAverage: the alpha-weighted area average of the texture pixels.
//     Colors written in the descriptor are ignored.
//   - PolicyDescriptor: the color written in the descriptor. Every entry must
//     provide one.
//
// # Texture Requirements
//
// Textures must decode as images, be square, share one size, and live inside
// the textures directory. Any violation, like a missing or malformed
// descriptor, is reported as an apperr.KindConfiguration error: it is a
// deployment fault, not a user error.
//
// # Caching
//
// A loaded Palette is immutable and safe to share between goroutines. Cache
// keeps one Palette per Source for the life of the process, builds it on first
// use, and replaces it only when Reload is called.
package palette
