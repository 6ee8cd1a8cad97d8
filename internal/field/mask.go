package field

import (
	"image"
	"image/color"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
)

// Point is a pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// In reports whether p lies inside a width×height grid.
func (p Point) In(width, height int) bool {
	return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height
}

// Mask cell values. Binary masks only use Background and Foreground; the region
// visualization additionally tags the seed's component.
const (
	Background    uint8 = 0
	Foreground    uint8 = 1
	SeedComponent uint8 = 2
)

// Mask is a width×height grid of cell tags stored row-major.
//
// A Mask produced by a stage is never modified by a later stage; each stage
// allocates its own output.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask allocates an all-background mask.
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// At returns the tag at (x, y), or Background outside the grid.
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return Background
	}
	return m.Pix[y*m.Width+x]
}

// Set stores v at (x, y). Coordinates outside the grid are ignored.
func (m *Mask) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// IsForeground reports whether (x, y) holds any non-background tag.
func (m *Mask) IsForeground(x, y int) bool {
	return m.At(x, y) != Background
}

// Count returns the number of non-background cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != Background {
			n++
		}
	}
	return n
}

// Gray renders the mask as a grayscale image: background black, anything else white.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v != Background {
			img.Pix[i] = 255
		}
	}
	return img
}

// Visualization colors: every foreground cell red, the seed's component magenta.
var (
	foregroundColor = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
	componentColor  = color.NRGBA{R: 255, G: 0, B: 255, A: 255}
)

// Colorize renders a tagged mask with background left transparent, Foreground in
// red and SeedComponent in magenta, suitable for overlaying on the source tile.
func (m *Mask) Colorize() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			switch m.Pix[y*m.Width+x] {
			case Foreground:
				img.SetNRGBA(x, y, foregroundColor)
			case SeedComponent:
				img.SetNRGBA(x, y, componentColor)
			}
		}
	}
	return img
}

func checkSeed(seed Point, width, height int) error {
	if !seed.In(width, height) {
		return fault.New(fault.SeedOutOfBounds,
			"seed (%d,%d) outside image bounds %dx%d", seed.X, seed.Y, width, height)
	}
	return nil
}
