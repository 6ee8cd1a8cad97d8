package field

import (
	"image"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
)

// Region is the connected component of a mask that contains the seed point.
type Region struct {
	// Mask holds Foreground for the component's cells and Background elsewhere.
	Mask *Mask

	// View tags every foreground cell of the source mask: SeedComponent for the
	// component, Foreground for everything else. It is for inspection only.
	View *Mask

	// Seed is the point the component was grown from.
	Seed Point

	// Area is the number of cells in the component.
	Area int

	// Bounds is the component's bounding box (Max exclusive).
	Bounds image.Rectangle
}

// ExtractRegion isolates the 8-connected component of m that contains seed.
//
// Cells join the component only when their value equals the seed cell's value
// exactly; there is no neighborhood tolerance. Other components are dropped.
//
// # Errors
//
//   - fault.SeedOutOfBounds if seed is outside the mask
//   - fault.SeedNotOnRegion if the seed cell is background
func ExtractRegion(m *Mask, seed Point) (*Region, error) {
	if err := checkSeed(seed, m.Width, m.Height); err != nil {
		return nil, err
	}
	target := m.At(seed.X, seed.Y)
	if target == Background {
		return nil, fault.New(fault.SeedNotOnRegion,
			"selected point (%d,%d) is not on a foreground area", seed.X, seed.Y)
	}

	component := NewMask(m.Width, m.Height)
	area, bounds := floodFill(m, component, seed, func(v uint8) bool { return v == target })

	view := NewMask(m.Width, m.Height)
	for i, v := range m.Pix {
		switch {
		case component.Pix[i] != Background:
			view.Pix[i] = SeedComponent
		case v != Background:
			view.Pix[i] = Foreground
		}
	}

	return &Region{
		Mask:   component,
		View:   view,
		Seed:   seed,
		Area:   area,
		Bounds: bounds,
	}, nil
}

// floodFill marks in out every cell of src reachable from start through cells
// accepted by match, using 8-connectivity. It returns the number of cells marked and their
// bounding box.
//
// Uses an explicit stack instead of recursion so large fields cannot overflow the
// goroutine stack.
func floodFill(src, out *Mask, start Point, match func(uint8) bool) (int, image.Rectangle) {
	stack := []Point{start}
	out.Set(start.X, start.Y, Foreground)
	area := 0
	minX, minY, maxX, maxY := start.X, start.Y, start.X, start.Y

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		area++

		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := p.X+dx, p.Y+dy
				if nx < 0 || ny < 0 || nx >= src.Width || ny >= src.Height {
					continue
				}
				i := ny*src.Width + nx
				if out.Pix[i] != Background || !match(src.Pix[i]) {
					continue
				}
				out.Pix[i] = Foreground
				stack = append(stack, Point{X: nx, Y: ny})
			}
		}
	}

	return area, image.Rect(minX, minY, maxX+1, maxY+1)
}
