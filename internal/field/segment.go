package field

import (
	"image"

	"github.com/ironsheep/field-boundary-mcp/internal/imaging"
)

// Tolerance is the allowed per-channel deviation from the reference color.
type Tolerance struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	V float64 `json:"v"`
}

// DefaultTolerance is ±10 hue, ±50 saturation, ±50 value.
var DefaultTolerance = Tolerance{H: 10, S: 50, V: 50}

// Band is an inclusive floating-point range per HSV channel.
type Band struct {
	Lower HSV `json:"lower"`
	Upper HSV `json:"upper"`
}

// BandFor returns the acceptance band around ref.
//
// Each bound is clamped to its channel's range: hue to [0,180], saturation and
// value to [0,255]. The hue band does not wrap, so a reference hue of 2 with
// tolerance 10 gives [0,12] and pixels with hue 175 are rejected even though they
// are close on the color wheel.
func BandFor(ref HSV, tol Tolerance) Band {
	return Band{
		Lower: HSV{
			H: clampFloat(ref.H-tol.H, 0, imaging.MaxHue),
			S: clampFloat(ref.S-tol.S, 0, imaging.MaxSaturation),
			V: clampFloat(ref.V-tol.V, 0, imaging.MaxValue),
		},
		Upper: HSV{
			H: clampFloat(ref.H+tol.H, 0, imaging.MaxHue),
			S: clampFloat(ref.S+tol.S, 0, imaging.MaxSaturation),
			V: clampFloat(ref.V+tol.V, 0, imaging.MaxValue),
		},
	}
}

// Contains reports whether c lies inside the band on every channel.
func (b Band) Contains(c imaging.HSVColor) bool {
	h, s, v := float64(c.H), float64(c.S), float64(c.V)
	return h >= b.Lower.H && h <= b.Upper.H &&
		s >= b.Lower.S && s <= b.Upper.S &&
		v >= b.Lower.V && v <= b.Upper.V
}

// Segment marks every pixel whose HSV color lies within tol of the sample mean.
//
// The output has the source's dimensions, Foreground where the pixel matches and
// Background elsewhere.
func Segment(img image.Image, ref *ColorSample, tol Tolerance) *Mask {
	bounds := img.Bounds()
	mask := NewMask(bounds.Dx(), bounds.Dy())
	band := BandFor(ref.Mean, tol)

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if band.Contains(imaging.HSVAt(img, x+bounds.Min.X, y+bounds.Min.Y)) {
				mask.Pix[y*mask.Width+x] = Foreground
			}
		}
	}
	return mask
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
