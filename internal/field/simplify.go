package field

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
)

// DefaultEpsilonFactor scales the boundary perimeter into the simplification tolerance.
const DefaultEpsilonFactor = 0.001

// Polygon is an implicitly closed ring of pixel coordinates: the last vertex
// connects back to the first and is not repeated.
type Polygon []orb.Point

// Contour is the outline of a region before and after simplification.
type Contour struct {
	// Boundary is the traced outer border, closed.
	Boundary orb.Ring

	// Polygon is the simplified outline.
	Polygon Polygon

	// Perimeter is the closed length of Boundary in pixels.
	Perimeter float64

	// Epsilon is the tolerance that produced Polygon.
	Epsilon float64
}

// Simplify traces the outer boundary of the region and reduces it with
// Douglas-Peucker using epsilon = epsilonFactor × perimeter.
//
// When the region mask somehow yields several outlines, the one containing the
// seed is used. If simplification would leave fewer than three vertices, the
// unsimplified boundary is returned instead.
//
// # Errors
//
//   - fault.NoContourFound if the region has no outline with at least three corners
func Simplify(r *Region, epsilonFactor float64) (*Contour, error) {
	ring, err := SelectContaining(Boundaries(r.Mask), r.Seed)
	if err != nil {
		return nil, err
	}

	perimeter := planar.Length(orb.LineString(ring))
	if epsilonFactor < 0 {
		epsilonFactor = 0
	}
	epsilon := epsilonFactor * perimeter

	poly := open(ring)
	if epsilon > 0 {
		g := simplify.DouglasPeucker(epsilon).Simplify(orb.LineString(ring).Clone())
		reduced, ok := g.(orb.LineString)
		if !ok {
			return nil, fault.New(fault.NoContourFound, "simplification returned %T", g)
		}
		if candidate := open(orb.Ring(reduced)); len(candidate) >= 3 {
			poly = candidate
		}
	}

	return &Contour{
		Boundary:  ring,
		Polygon:   poly,
		Perimeter: perimeter,
		Epsilon:   epsilon,
	}, nil
}

// open drops the closing vertex of a ring.
func open(r orb.Ring) Polygon {
	if len(r) > 1 && r[0].Equal(r[len(r)-1]) {
		r = r[:len(r)-1]
	}
	out := make(Polygon, len(r))
	copy(out, r)
	return out
}
