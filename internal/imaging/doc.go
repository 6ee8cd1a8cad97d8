// Package imaging provides the image handling shared by the field pipeline and the
// MCP tools: loading and caching tiles, color conversion, and preview rendering.
//
// All operations work with standard Go image.Image types and use a coordinate system
// where (0,0) is at the top-left corner, X increases rightward, and Y increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For rectangles, Min is inclusive and Max is exclusive
//
// # Color Representation
//
// Colors are reported as hex "#RRGGBB", 8-bit RGB, and 8-bit HSV. The HSV scale
// halves the hue so it fits a byte:
//   - H: 0-180
//   - S: 0-255
//   - V: 0-255
//
// Segmentation compares pixels on this scale, so a color sampled with SampleColor
// can be compared directly against a tolerance band.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Loaded images are private
// copies and are never modified by this package; every rendering function
// returns a new image.
//
// # Errors
//
// Load failures are reported as fault.DecodeFailure and out-of-range sample
// coordinates as fault.SeedOutOfBounds, so tool callers see the same error kinds
// as the pipeline.
package imaging
