package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/disintegration/imaging"
)

// DefaultGridColor is used when TileGrid is given an empty or malformed color.
var DefaultGridColor = color.NRGBA{255, 0, 0, 128}

// TileGrid draws the edges of size×size tiles anchored at the top-left corner, the
// partition the smoothing stage votes over. Lines fall on the first row and column
// of each tile after the first, so a trailing partial tile gets a leading edge only.
//
// colorHex accepts "#RRGGBB" or "#RRGGBBAA"; anything else draws DefaultGridColor.
func TileGrid(img image.Image, size int, colorHex string) *image.NRGBA {
	result := imaging.Clone(img)
	if size <= 0 {
		return result
	}

	gridColor, err := parseHexColor(colorHex)
	if err != nil {
		gridColor = DefaultGridColor
	}

	bounds := result.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	for x := size; x < width; x += size {
		for y := 0; y < height; y++ {
			result.SetNRGBA(x, y, gridColor)
		}
	}
	for y := size; y < height; y += size {
		for x := 0; x < width; x++ {
			result.SetNRGBA(x, y, gridColor)
		}
	}
	return result
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.NRGBA, error) {
	if len(hex) == 0 {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}
