package field

import (
	"image"
	"image/color"
	"strings"
)

var (
	fieldGreen = color.NRGBA{R: 40, G: 160, B: 40, A: 255}
	soilBrown  = color.NRGBA{R: 150, G: 110, B: 60, A: 255}
	markerRed  = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
)

// solidImage creates a width×height image filled with c.
func solidImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// fillRect paints r onto img.
func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// maskFrom builds a mask from rows of '#' (foreground) and '.' (background).
func maskFrom(rows ...string) *Mask {
	m := NewMask(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				m.Set(x, y, Foreground)
			}
		}
	}
	return m
}

// rectMask returns a width×height mask with r set to foreground.
func rectMask(width, height int, r image.Rectangle) *Mask {
	m := NewMask(width, height)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Set(x, y, Foreground)
		}
	}
	return m
}

// render draws m back into '#'/'.' rows for failure messages.
func render(m *Mask) string {
	var b strings.Builder
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.IsForeground(x, y) {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
