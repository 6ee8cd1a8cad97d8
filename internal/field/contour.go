package field

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
)

// Moore neighborhood in clockwise order on a y-down grid, starting east.
var neighbors = [8]Point{
	{X: 1, Y: 0},   // E
	{X: 1, Y: 1},   // SE
	{X: 0, Y: 1},   // S
	{X: -1, Y: 1},  // SW
	{X: -1, Y: 0},  // W
	{X: -1, Y: -1}, // NW
	{X: 0, Y: -1},  // N
	{X: 1, Y: -1},  // NE
}

func directionOf(dx, dy int) int {
	for i, n := range neighbors {
		if n.X == dx && n.Y == dy {
			return i
		}
	}
	return -1
}

// Boundaries traces the outer boundary of every 8-connected foreground component
// of m. Holes are not traced.
//
// Each ring lists pixel-center coordinates of the component's border cells at the
// points where the border changes direction, and is closed (last point equals the
// first). Components whose border has fewer than three distinct corners, such as
// isolated cells and one-cell-wide straight lines, produce no ring.
//
// Rings are returned in raster order of each component's top-left cell.
func Boundaries(m *Mask) []orb.Ring {
	visited := NewMask(m.Width, m.Height)
	isSet := func(v uint8) bool { return v != Background }

	var rings []orb.Ring
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := y*m.Width + x
			if m.Pix[i] == Background || visited.Pix[i] != Background {
				continue
			}
			start := Point{X: x, Y: y}
			floodFill(m, visited, start, isSet)

			corners := compress(trace(m, start))
			if len(corners) < 3 {
				continue
			}
			ring := make(orb.Ring, 0, len(corners)+1)
			for _, p := range corners {
				ring = append(ring, orb.Point{float64(p.X), float64(p.Y)})
			}
			rings = append(rings, append(ring, ring[0]))
		}
	}
	return rings
}

// SelectContaining picks the first ring whose interior or edge contains seed. When
// none does and there is exactly one ring, that ring is used.
//
// # Errors
//
//   - fault.NoContourFound if rings is empty or no ring can be attributed to seed
func SelectContaining(rings []orb.Ring, seed Point) (orb.Ring, error) {
	if len(rings) == 0 {
		return nil, fault.New(fault.NoContourFound, "no contour found in region")
	}
	p := orb.Point{float64(seed.X), float64(seed.Y)}
	for _, r := range rings {
		if planar.RingContains(r, p) {
			return r, nil
		}
	}
	if len(rings) == 1 {
		return rings[0], nil
	}
	return nil, fault.New(fault.NoContourFound,
		"none of %d contours contains (%d,%d)", len(rings), seed.X, seed.Y)
}

// trace walks the border of the component containing start clockwise with
// Moore-neighbor tracing. start must be the component's first cell in raster
// order, so its west neighbor is known to be background.
//
// The walk ends when it is back at start and about to repeat its first move.
// Cells may repeat in the result where the border passes through them twice.
func trace(m *Mask, start Point) []Point {
	first, firstBack, ok := nextBorderCell(m, start, Point{X: start.X - 1, Y: start.Y})
	if !ok {
		return []Point{start}
	}

	pts := []Point{start}
	cur, back := first, firstBack
	limit := 4*len(m.Pix) + 8
	for steps := 0; steps < limit; steps++ {
		next, nextBack, _ := nextBorderCell(m, cur, back)
		if cur == start && next == first {
			break
		}
		pts = append(pts, cur)
		cur, back = next, nextBack
	}
	return pts
}

// nextBorderCell scans the neighbors of cur clockwise, beginning just after the
// background cell back, and returns the first foreground cell together with the
// background cell examined right before it.
func nextBorderCell(m *Mask, cur, back Point) (Point, Point, bool) {
	dir := directionOf(back.X-cur.X, back.Y-cur.Y)
	if dir < 0 {
		dir = 4
	}
	prev := back
	for i := 1; i <= 8; i++ {
		d := neighbors[(dir+i)%8]
		n := Point{X: cur.X + d.X, Y: cur.Y + d.Y}
		if m.IsForeground(n.X, n.Y) {
			return n, prev, true
		}
		prev = n
	}
	return cur, back, false
}

// compress keeps only the cells of a closed walk where the step direction changes.
// A walk that doubles back on itself keeps its turning point.
func compress(walk []Point) []Point {
	n := len(walk)
	if n < 3 {
		return walk
	}
	out := make([]Point, 0, n)
	for i, p := range walk {
		prev := walk[(i+n-1)%n]
		next := walk[(i+1)%n]
		in := Point{X: p.X - prev.X, Y: p.Y - prev.Y}
		outStep := Point{X: next.X - p.X, Y: next.Y - p.Y}
		if in != outStep {
			out = append(out, p)
		}
	}
	return out
}
