package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
)

// Channel ranges of the HSV scale used throughout the field pipeline.
//
// The scale matches the common 8-bit convention where hue is halved to fit a byte:
//   - H: 0-180 (degrees / 2)
//   - S: 0-255
//   - V: 0-255
const (
	MaxHue        = 180
	MaxSaturation = 255
	MaxValue      = 255
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// HSVColor is a color on the 8-bit HSV scale (H 0-180, S 0-255, V 0-255).
//
// Components are integers because every pixel is rounded to the scale before it
// is compared against a tolerance band; only averages are kept as floats.
type HSVColor struct {
	H int `json:"h"` // Hue: 0-180 (0=red, 60=green, 120=blue)
	S int `json:"s"` // Saturation: 0-255 (0=gray)
	V int `json:"v"` // Value: 0-255 (0=black)
}

// ColorResult contains a color value in the representations the tools report.
type ColorResult struct {
	Hex string   `json:"hex"` // Hex format "#RRGGBB"
	RGB RGBColor `json:"rgb"` // RGB components
	HSV HSVColor `json:"hsv"` // 8-bit HSV, the space used for segmentation
}

// ToHSV converts 8-bit RGB components to the 8-bit HSV scale.
//
// The conversion is done in floating point by go-colorful and then rounded:
// H = round(h°/2) folded into [0,180), S = round(s*255), V = round(v*255).
func ToHSV(r, g, b uint8) HSVColor {
	c := colorful.Color{R: float64(r) / 255.0, G: float64(g) / 255.0, B: float64(b) / 255.0}
	h, s, v := c.Hsv()

	hue := int(math.Round(h / 2))
	if hue >= MaxHue {
		hue -= MaxHue
	}
	return HSVColor{
		H: hue,
		S: int(math.Round(s * MaxSaturation)),
		V: int(math.Round(v * MaxValue)),
	}
}

// RGBAt returns the 8-bit RGB components of the pixel at (x, y).
//
// Alpha is ignored; decoded tiles are opaque and the pipeline treats every pixel
// as a color sample. *image.NRGBA, the loader's output type, is read directly.
func RGBAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	if n, ok := img.(*image.NRGBA); ok {
		i := n.PixOffset(x, y)
		return n.Pix[i], n.Pix[i+1], n.Pix[i+2]
	}
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return c.R, c.G, c.B
}

// HSVAt converts the pixel at (x, y) to the 8-bit HSV scale.
func HSVAt(img image.Image, x, y int) HSVColor {
	return ToHSV(RGBAt(img, x, y))
}

// HSVBand is an inclusive range on each HSV channel.
//
// It is used to describe the color of UI markers drawn onto a tile so that those
// pixels can be excluded from color sampling.
type HSVBand struct {
	Lower HSVColor `json:"lower"`
	Upper HSVColor `json:"upper"`
}

// Contains reports whether c lies within the band on all three channels.
func (b HSVBand) Contains(c HSVColor) bool {
	return c.H >= b.Lower.H && c.H <= b.Upper.H &&
		c.S >= b.Lower.S && c.S <= b.Upper.S &&
		c.V >= b.Lower.V && c.V <= b.Upper.V
}

// SampleColor extracts the color value at a specific pixel coordinate.
//
// Coordinates are 0-based relative to the image bounds' origin. The returned
// HSV value is the one the segmenter would compare against a reference.
func SampleColor(img image.Image, x, y int) (*ColorResult, error) {
	bounds := img.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return nil, fault.New(fault.SeedOutOfBounds, "coordinates (%d,%d) outside image bounds", x, y)
	}

	r, g, b := RGBAt(img, x, y)
	return &ColorResult{
		Hex: fmt.Sprintf("#%02X%02X%02X", r, g, b),
		RGB: RGBColor{R: r, G: g, B: b},
		HSV: ToHSV(r, g, b),
	}, nil
}
