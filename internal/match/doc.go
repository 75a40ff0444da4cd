// Package match finds the palette entry closest to a color.
//
// # Metrics
//
//   - MetricRGB (default): squared Euclidean distance over 8-bit RGB,
//     d = (r1-r2)² + (g1-g2)² + (b1-b2)², in exact integer arithmetic.
//   - MetricLab: CIE76 distance in L*a*b*, closer to perceived difference.
//   - MetricCIEDE2000: the CIEDE2000 formula, slowest and most perceptual.
//
// # Search
//
// MetricRGB palettes larger than a few dozen entries are indexed by a 3-d tree
// over the representative colors, built once per palette and amortised over
// every cell of a conversion. Smaller palettes and the perceptual metrics use
// a linear scan. Both strategies return identical results.
//
// # Ties
//
// When several entries are equally close, the one declared first in the
// palette descriptor (lowest Entry.Index) wins. Matching is therefore fully
// deterministic.
//
// Matchers are immutable after construction and safe for concurrent use.
package match
