// Package imaging decodes source images and downsamples them into the cell
// grid the mosaic is built from.
//
// This package is the leaf of the conversion pipeline. It owns the colour
// type shared by the palette and the matcher, and turns raw upload bytes into
// one representative colour per output cell.
//
// # Coordinate System
//
// All grid coordinates in this package are 0-based:
//   - Column: horizontal cell index (0 = leftmost cell)
//   - Row: vertical cell index (0 = topmost cell)
//   - Cells are stored row-major, top-to-bottom, left-to-right
//
// # Downsampling Policy
//
// The default filter is a box filter, which averages every source pixel that
// falls inside a cell's footprint (area average). Nearest-pixel sampling is
// available for callers that prefer hard edges over colour fidelity; it picks
// the source pixel closest to each cell centre.
//
// Transparent pixels are flattened over an opaque background before sampling,
// so every cell colour is fully opaque.
//
// # Output Height
//
// The grid height follows the source aspect ratio:
//
//	height = max(1, round(width * sourceHeight / sourceWidth))
//
// Halves round up.
//
// # Error Handling
//
// Decoding failures (empty input, truncated data, unsupported formats,
// oversized images) are reported as apperr.KindDecode errors.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package imaging
