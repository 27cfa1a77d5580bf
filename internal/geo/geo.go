// Package geo provides the geometry primitives used by the region catalog, the spatial
// sampler and the administrative resolver: point-in-polygon, bounding boxes and
// great-circle distance on (latitude, longitude) pairs.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// edgeEpsilon keeps the ray-casting denominator away from zero on edges of
// constant longitude. Points exactly on an edge have undefined inclusion.
const edgeEpsilon = 1e-12

// Point is a (latitude, longitude) pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lon float64 `json:"lon" msgpack:"lon"`
}

// Orb converts the point to an orb.Point (x = longitude, y = latitude).
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb.Point back to a Point.
func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lon: p.Lon()}
}

// Polygon is a closed ring of vertices, first vertex repeated at the end.
// Callers guarantee at least three distinct vertices and no self-intersection.
type Polygon []Point

// Ring converts the polygon to an orb.Ring for GeoJSON export and bound math.
func (p Polygon) Ring() orb.Ring {
	ring := make(orb.Ring, len(p))
	for i, v := range p {
		ring[i] = v.Orb()
	}
	return ring
}

// BBox is an axis-aligned latitude/longitude box.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the point lies inside the box, edges inclusive.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Bound converts the box to an orb.Bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// BoundingBox returns the extent of the polygon.
func BoundingBox(poly Polygon) BBox {
	if len(poly) == 0 {
		return BBox{}
	}
	b := poly.Ring().Bound()
	return BBox{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLon: b.Min.Lon(),
		MaxLon: b.Max.Lon(),
	}
}

// PointInPolygon reports whether (lat, lon) is inside poly using ray casting.
//
// For every edge whose longitude span straddles the query longitude the latitude of
// the edge at that longitude is computed; each such crossing north of the query
// point toggles the result.
func PointInPolygon(lat, lon float64, poly Polygon) bool {
	inside := false
	n := len(poly)
	for i := 0; i < n; i++ {
		a := poly[i]
		b := poly[(i+1)%n]
		if (a.Lon > lon) != (b.Lon > lon) {
			latAtLon := (b.Lat-a.Lat)*(lon-a.Lon)/(b.Lon-a.Lon+edgeEpsilon) + a.Lat
			if latAtLon > lat {
				inside = !inside
			}
		}
	}
	return inside
}

// Round6 rounds a coordinate to six decimals (about 0.1 m).
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
