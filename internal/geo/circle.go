package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Circle fallback defaults.
const (
	DefaultCircleRadius = 50.0
	DefaultCirclePoints = 32
)

// Circle approximates a circle of radiusMeters around center ([lng, lat]) with
// points vertices at angles 2πi/points, counterclockwise from east. The ring is
// closed. Fewer than three points uses DefaultCirclePoints.
func Circle(center orb.Point, radiusMeters float64, points int) orb.Ring {
	if points < 3 {
		points = DefaultCirclePoints
	}
	ring := make(orb.Ring, 0, points+1)
	for i := 0; i < points; i++ {
		angle := 2 * math.Pi * float64(i) / float64(points)
		ring = append(ring, OffsetToLngLat(center[1], center[0],
			radiusMeters*math.Cos(angle), radiusMeters*math.Sin(angle)))
	}
	return closeRing(ring)
}

// CirclePolygon builds the fallback outline: a circle of radiusMeters around the
// selected point (lat, lng), tagged with the map context it was requested for.
//
// # Errors
//
//   - fault.InvalidMapContext if ctx fails Validate or (lat, lng) is not a valid point
func CirclePolygon(ctx MapContext, lat, lng, radiusMeters float64, points int) (*GeoPolygon, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	if err := checkLatLng(lat, lng); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultCircleRadius
	}

	center := orb.Point{lng, lat}
	return &GeoPolygon{
		Ring:         Circle(center, radiusMeters, points),
		Center:       center,
		Zoom:         ctx.Zoom,
		Bounds:       ctx.Extent(),
		Selected:     &center,
		RadiusMeters: radiusMeters,
	}, nil
}
