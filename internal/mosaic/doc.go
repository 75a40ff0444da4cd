// Package mosaic assembles block mosaics from a sampled cell grid.
//
// Composition happens in two phases:
//
//   - Plan matches every cell of an imaging.CellGrid to a palette entry and
//     records the choices in a Layout. Rows are matched by a bounded pool of
//     workers and the context is checked before each row.
//   - Render allocates a canvas of Columns*TileSize by Rows*TileSize pixels
//     and copies each chosen texture, unmodified, into its cell.
//
// Compose runs both phases. Every pixel of the result belongs to exactly one
// placed texture, and equal inputs always produce identical pixels.
//
// The package also carries the post-processing used by the transports:
// GridOverlay draws block boundaries and coordinates on a copy of a mosaic
// as a building guide, and Preview downscales a mosaic for display. Neither
// alters a mosaic in place.
package mosaic
