// Package httpapi serves the mosaic converter over HTTP.
//
// # Endpoints
//
//   - POST /minecraftify (alias POST /convert): multipart form with an
//     "image" file (png, jpg or jpeg), optional "width" (blocks across,
//     defaulting to the configured default width), optional "grid" (draw
//     block boundaries) and "grid_every" (boundary spacing in blocks).
//     Answers image/png with X-Mosaic-Columns, X-Mosaic-Rows,
//     X-Mosaic-Tile-Size and X-Mosaic-Cache headers.
//   - GET /health: liveness.
//   - GET /palette: the loaded palette summary.
//   - POST /palette/reload: rebuild the palette from disk.
//   - GET /metrics: Prometheus metrics.
//
// Errors are JSON objects of the form {"error": "..."}. Request bodies larger
// than the configured upload limit are rejected with 413 before conversion.
package httpapi
