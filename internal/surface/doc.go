// Package surface implements the live drawing surface a digit is sketched on.
//
// Strokes are rasterized with gg using round caps and joins, white ink on an
// opaque black background. The surface never exposes its pixels directly;
// readers get copies through SampleDownscaled or Snapshot, so a sample taken
// before a slow classifier call keeps describing the drawing as it was when
// sampled.
package surface
