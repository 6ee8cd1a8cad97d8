// Package geo converts pixel-space outlines on a map tile into geographic
// polygons and exports them as GeoJSON, KML and encoded polylines.
//
// All projections here are local: they assume the tile covers a few hundred meters
// and treat the Earth as flat around the tile center. Longitude comes first in
// every orb.Point ([lng, lat]), as in GeoJSON.
package geo

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
)

// Tile defaults for static map imagery.
const (
	DefaultTileWidth  = 640
	DefaultTileHeight = 640

	// MaxZoom is the deepest zoom level accepted.
	MaxZoom = 30

	// MaxLatitude is the Web Mercator latitude limit.
	MaxLatitude = 85.05112878
)

// Bounds is the geographic extent of a tile.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// MapContext places an image on the map: the geographic point at the image center,
// the zoom level it was rendered at and, optionally, its extent.
type MapContext struct {
	CenterLat float64 `json:"lat"`
	CenterLng float64 `json:"lng"`
	Zoom      int     `json:"zoom"`

	// Bounds is derived from center, zoom and size when nil.
	Bounds *Bounds `json:"bounds,omitempty"`

	// Width and Height are the tile size in pixels. Zero means the default 640.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Size returns the tile dimensions, substituting defaults for unset values.
func (c MapContext) Size() (int, int) {
	w, h := c.Width, c.Height
	if w <= 0 {
		w = DefaultTileWidth
	}
	if h <= 0 {
		h = DefaultTileHeight
	}
	return w, h
}

// Validate checks that the context can drive a projection.
//
// # Errors
//
//   - fault.InvalidMapContext if the center is not finite or is outside the Web
//     Mercator latitude range, the zoom is outside [0, MaxZoom], or the bounds are
//     not finite or have south above north
func (c MapContext) Validate() error {
	if !finite(c.CenterLat) || !finite(c.CenterLng) {
		return fault.New(fault.InvalidMapContext, "center (%v, %v) is not numeric", c.CenterLat, c.CenterLng)
	}
	if math.Abs(c.CenterLat) > MaxLatitude {
		return fault.New(fault.InvalidMapContext, "center latitude %v outside ±%v", c.CenterLat, MaxLatitude)
	}
	if math.Abs(c.CenterLng) > 180 {
		return fault.New(fault.InvalidMapContext, "center longitude %v outside ±180", c.CenterLng)
	}
	if c.Zoom < 0 || c.Zoom > MaxZoom {
		return fault.New(fault.InvalidMapContext, "zoom %d outside [0, %d]", c.Zoom, MaxZoom)
	}
	if b := c.Bounds; b != nil {
		if !finite(b.North) || !finite(b.South) || !finite(b.East) || !finite(b.West) {
			return fault.New(fault.InvalidMapContext, "bounds %+v are not numeric", *b)
		}
		if b.South > b.North {
			return fault.New(fault.InvalidMapContext, "bounds south %v above north %v", b.South, b.North)
		}
	}
	return nil
}

// Extent returns the tile bounds, computing them from the corners of the tile
// when none were supplied.
func (c MapContext) Extent() Bounds {
	if c.Bounds != nil {
		return *c.Bounds
	}
	w, h := c.Size()
	nw := c.PixelToLngLat(0, 0)
	se := c.PixelToLngLat(float64(w), float64(h))
	return Bounds{North: nw[1], South: se[1], East: se[0], West: nw[0]}
}

// mapContextJSON accepts numbers or numeric strings for every field, since map
// widgets report coordinates either way.
type mapContextJSON struct {
	Lat    json.RawMessage `json:"lat"`
	Lng    json.RawMessage `json:"lng"`
	Center *struct {
		Lat json.RawMessage `json:"lat"`
		Lng json.RawMessage `json:"lng"`
	} `json:"center"`
	Zoom   json.RawMessage `json:"zoom"`
	Bounds *struct {
		North json.RawMessage `json:"north"`
		South json.RawMessage `json:"south"`
		East  json.RawMessage `json:"east"`
		West  json.RawMessage `json:"west"`
	} `json:"bounds"`
	Width  json.RawMessage `json:"width"`
	Height json.RawMessage `json:"height"`
}

// UnmarshalJSON decodes either {"lat":..,"lng":..,"zoom":..} or
// {"center":{"lat":..,"lng":..},"zoom":..}, with optional "bounds", "width" and
// "height". Any missing or non-numeric center, zoom or bound fails with
// fault.InvalidMapContext.
func (c *MapContext) UnmarshalJSON(data []byte) error {
	var raw mapContextJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fault.Wrap(fault.InvalidMapContext, err, "malformed map context")
	}

	lat, lng := raw.Lat, raw.Lng
	if raw.Center != nil {
		lat, lng = raw.Center.Lat, raw.Center.Lng
	}

	var out MapContext
	var err error
	if out.CenterLat, err = number("lat", lat); err != nil {
		return err
	}
	if out.CenterLng, err = number("lng", lng); err != nil {
		return err
	}
	zoom, err := number("zoom", raw.Zoom)
	if err != nil {
		return err
	}
	if zoom != math.Trunc(zoom) {
		return fault.New(fault.InvalidMapContext, "zoom %v is not an integer", zoom)
	}
	out.Zoom = int(zoom)

	if b := raw.Bounds; b != nil {
		var bounds Bounds
		for _, f := range []struct {
			name string
			raw  json.RawMessage
			dst  *float64
		}{
			{"bounds.north", b.North, &bounds.North},
			{"bounds.south", b.South, &bounds.South},
			{"bounds.east", b.East, &bounds.East},
			{"bounds.west", b.West, &bounds.West},
		} {
			if *f.dst, err = number(f.name, f.raw); err != nil {
				return err
			}
		}
		out.Bounds = &bounds
	}

	if len(raw.Width) > 0 {
		w, err := number("width", raw.Width)
		if err != nil {
			return err
		}
		out.Width = int(w)
	}
	if len(raw.Height) > 0 {
		h, err := number("height", raw.Height)
		if err != nil {
			return err
		}
		out.Height = int(h)
	}

	*c = out
	return nil
}

func number(name string, raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fault.New(fault.InvalidMapContext, "map context is missing %s", name)
	}

	var v float64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fault.Wrap(fault.InvalidMapContext, err, name+" is not a string")
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fault.New(fault.InvalidMapContext, "%s %q is not numeric", name, s)
		}
		v = parsed
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fault.New(fault.InvalidMapContext, "%s %s is not numeric", name, raw)
	}

	if !finite(v) {
		return 0, fault.New(fault.InvalidMapContext, "%s is not finite", name)
	}
	return v, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
