// Package field implements the pixel-space stages that turn one marked point on an
// aerial tile into the outline of the surrounding field.
//
// The stages run in a fixed order, each a pure function of its inputs:
//
//  1. SampleReference: mean HSV color of a disk around the seed point
//  2. Segment: per-pixel HSV tolerance test against that reference
//  3. Smooth: tile-majority voting over the binary mask
//  4. ExtractRegion: 8-connected flood fill from the seed
//  5. Simplify: outer boundary trace and Douglas-Peucker simplification
//
// Every stage allocates a new artifact; inputs are never modified. Failures are
// returned as *fault.Error values so callers can tell a background seed from an
// empty sample.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X increasing
// rightward and Y increasing downward. Polygon vertices are pixel centers.
//
// # Color Scale
//
// Colors are compared on the 8-bit HSV scale (H 0-180, S 0-255, V 0-255).
// Tolerance bands are clamped to those ranges rather than wrapped, so a reference
// hue near 0 or 180 gets a narrower band on the side of the wrap point.
package field
