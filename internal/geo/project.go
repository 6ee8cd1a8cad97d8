package geo

import (
	"image"
	"math"

	"github.com/paulmach/orb"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
)

const (
	// equatorMetersPerPixel is the ground resolution at zoom 0 on the equator for
	// 256-pixel Web Mercator tiles.
	equatorMetersPerPixel = 156543.03392

	// metersPerDegree is the flat-Earth conversion used for local offsets.
	metersPerDegree = 111111.0

	worldTileSize = 256.0
)

// MetersPerPixel returns the ground distance covered by one pixel at the given
// latitude and zoom.
func MetersPerPixel(lat float64, zoom int) float64 {
	return equatorMetersPerPixel * math.Cos(lat*math.Pi/180) / math.Pow(2, float64(zoom))
}

// OffsetToLngLat converts a displacement in meters (x east, y north) from
// (lat, lng) into a [lng, lat] point.
func OffsetToLngLat(lat, lng, dxMeters, dyMeters float64) orb.Point {
	dLat := dyMeters / metersPerDegree
	dLng := dxMeters / (metersPerDegree * math.Cos(lat*math.Pi/180))
	return orb.Point{lng + dLng, lat + dLat}
}

// PixelToLngLat maps an image pixel to [lng, lat]. The image center maps exactly
// to the context center; image Y grows downward, so it is inverted for north.
func (c MapContext) PixelToLngLat(x, y float64) orb.Point {
	w, h := c.Size()
	mpp := MetersPerPixel(c.CenterLat, c.Zoom)
	dx := (x - float64(w)/2) * mpp
	dy := (float64(h)/2 - y) * mpp
	return OffsetToLngLat(c.CenterLat, c.CenterLng, dx, dy)
}

// Project converts a pixel polygon into a closed geographic ring using the local
// equirectangular approximation around the context center. seed is the pixel the
// outline was grown from and is recorded as the selected point.
//
// # Errors
//
//   - fault.InvalidMapContext if ctx fails Validate
//   - fault.NoContourFound if poly has fewer than three vertices
func Project(ctx MapContext, poly []orb.Point, seed orb.Point) (*GeoPolygon, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	if len(poly) < 3 {
		return nil, fault.New(fault.NoContourFound, "polygon has %d vertices, need at least 3", len(poly))
	}

	ring := make(orb.Ring, 0, len(poly)+1)
	for _, p := range poly {
		ring = append(ring, ctx.PixelToLngLat(p[0], p[1]))
	}

	selected := ctx.PixelToLngLat(seed[0], seed[1])
	return &GeoPolygon{
		Ring:     closeRing(ring),
		Center:   orb.Point{ctx.CenterLng, ctx.CenterLat},
		Zoom:     ctx.Zoom,
		Bounds:   ctx.Extent(),
		Selected: &selected,
	}, nil
}

// PixelFromLatLng locates a geographic point on the tile described by ctx using
// Web Mercator world coordinates, rounding to the nearest pixel. The result may
// lie outside the tile.
//
// # Errors
//
//   - fault.InvalidMapContext if ctx fails Validate or lat/lng is not a valid point
func PixelFromLatLng(ctx MapContext, lat, lng float64) (image.Point, error) {
	if err := ctx.Validate(); err != nil {
		return image.Point{}, err
	}
	if err := checkLatLng(lat, lng); err != nil {
		return image.Point{}, err
	}

	w, h := ctx.Size()
	px, py := worldFraction(lat, lng)
	cx, cy := worldFraction(ctx.CenterLat, ctx.CenterLng)
	scale := worldTileSize * math.Pow(2, float64(ctx.Zoom))

	return image.Point{
		X: int(math.Round(float64(w)/2 + (px-cx)*scale)),
		Y: int(math.Round(float64(h)/2 + (py-cy)*scale)),
	}, nil
}

// worldFraction returns the Web Mercator position of a point as fractions of the
// world width and height, y clamped to [0,1].
func worldFraction(lat, lng float64) (float64, float64) {
	siny := math.Sin(lat * math.Pi / 180)
	x := (lng + 180) / 360
	y := 0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)
	return x, math.Max(0, math.Min(1, y))
}

func checkLatLng(lat, lng float64) error {
	if !finite(lat) || !finite(lng) || math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return fault.New(fault.InvalidMapContext, "point (%v, %v) is not a valid coordinate", lat, lng)
	}
	return nil
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 0 && !r[0].Equal(r[len(r)-1]) {
		r = append(r, r[0])
	}
	return r
}
