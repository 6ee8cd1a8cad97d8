package geo

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	kml "github.com/twpayne/go-kml"
	"github.com/twpayne/go-polyline"
)

// GeoPolygon is a field outline in geographic coordinates.
type GeoPolygon struct {
	// Ring is closed and holds [lng, lat] points.
	Ring orb.Ring

	// Center is the map center, or the circle center in fallback mode.
	Center orb.Point
	Zoom   int
	Bounds Bounds

	// Selected is the point the user marked, when known.
	Selected *orb.Point

	// RadiusMeters is set only for circle fallbacks.
	RadiusMeters float64
}

// IsCircle reports whether the polygon is a circle fallback.
func (g *GeoPolygon) IsCircle() bool {
	return g.RadiusMeters > 0
}

// Feature returns the polygon as a GeoJSON feature. Properties carry "center"
// and "selected_point" as [lng, lat], "zoom", "bounds" and, for circles,
// "radius_meters".
func (g *GeoPolygon) Feature() *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{g.Ring})
	f.Properties["center"] = []float64{g.Center[0], g.Center[1]}
	f.Properties["zoom"] = g.Zoom
	f.Properties["bounds"] = g.Bounds
	if g.Selected != nil {
		f.Properties["selected_point"] = []float64{g.Selected[0], g.Selected[1]}
	}
	if g.IsCircle() {
		f.Properties["radius_meters"] = g.RadiusMeters
	}
	return f
}

// FeatureCollection wraps Feature in a single-feature collection.
func (g *GeoPolygon) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(g.Feature())
	return fc
}

// WriteKML writes the polygon as a KML document with one named placemark.
func (g *GeoPolygon) WriteKML(w io.Writer, name string) error {
	coords := make([]kml.Coordinate, 0, len(g.Ring))
	for _, p := range g.Ring {
		coords = append(coords, kml.Coordinate{Lon: p[0], Lat: p[1]})
	}

	description := fmt.Sprintf("center %.6f,%.6f zoom %d", g.Center[1], g.Center[0], g.Zoom)
	if g.IsCircle() {
		description += fmt.Sprintf(" radius %.0fm", g.RadiusMeters)
	}

	doc := kml.KML(
		kml.Placemark(
			kml.Name(name),
			kml.Description(description),
			kml.Polygon(
				kml.OuterBoundaryIs(
					kml.LinearRing(
						kml.Coordinates(coords...),
					),
				),
			),
		),
	)
	return doc.WriteIndent(w, "", "  ")
}

// EncodedPolyline returns the ring in Google's encoded polyline format.
func (g *GeoPolygon) EncodedPolyline() string {
	coords := make([][]float64, 0, len(g.Ring))
	for _, p := range g.Ring {
		coords = append(coords, []float64{p[1], p[0]})
	}
	return string(polyline.EncodeCoords(coords))
}
