package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

// SeparationIndex answers "is any accepted point closer than minKm?" without
// scanning every accepted point. Candidates come from a quadtree window that is
// guaranteed to contain every point within minKm; the final decision is always
// the exact haversine distance, so acceptance matches a full pairwise scan.
type SeparationIndex struct {
	minKm    float64
	tree     *quadtree.Quadtree
	overflow []Point
	points   []Point
	buf      []orb.Pointer
}

// NewSeparationIndex creates an index for points expected inside bounds.
// Points outside bounds are still accepted and checked linearly.
func NewSeparationIndex(bounds BBox, minKm float64) *SeparationIndex {
	return &SeparationIndex{
		minKm: minKm,
		tree:  quadtree.New(bounds.Bound()),
	}
}

// Admits reports whether p is at least minKm away from every inserted point.
func (s *SeparationIndex) Admits(p Point) bool {
	if s.minKm <= 0 || len(s.points) == 0 {
		return true
	}

	s.buf = s.tree.InBound(s.buf[:0], searchWindow(p, s.minKm))
	for _, c := range s.buf {
		if Distance(p, FromOrb(c.Point())) < s.minKm {
			return false
		}
	}
	for _, o := range s.overflow {
		if Distance(p, o) < s.minKm {
			return false
		}
	}
	return true
}

// Insert records an accepted point.
func (s *SeparationIndex) Insert(p Point) {
	s.points = append(s.points, p)
	if err := s.tree.Add(p.Orb()); err != nil {
		s.overflow = append(s.overflow, p)
	}
}

// Len returns the number of accepted points.
func (s *SeparationIndex) Len() int {
	return len(s.points)
}

// Points returns the accepted points in insertion order.
func (s *SeparationIndex) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// searchWindow returns a lat/lon box containing every point whose haversine
// distance to p is below km.
//
// hav(d/R) = hav(dPhi) + cos(phi1)cos(phi2)hav(dLambda), so d < km implies
// |dPhi| < km/R and hav(dLambda) < hav(km/R) / (cos(phi1) * min cos(phi2)).
func searchWindow(p Point, km float64) orb.Bound {
	theta := km / EarthRadiusKm * 1.000001
	dLat := degrees(theta)

	minLat := math.Max(-90, p.Lat-dLat)
	maxLat := math.Min(90, p.Lat+dLat)
	full := orb.Bound{Min: orb.Point{-180, minLat}, Max: orb.Point{180, maxLat}}

	farLat := math.Min(90, math.Abs(p.Lat)+dLat)
	denom := math.Cos(radians(p.Lat)) * math.Cos(radians(farLat))
	if denom <= 0 {
		return full
	}
	ratio := math.Pow(math.Sin(theta/2), 2) / denom
	if ratio >= 1 {
		return full
	}
	dLon := degrees(2 * math.Asin(math.Sqrt(ratio)))
	if p.Lon-dLon < -180 || p.Lon+dLon > 180 {
		return full
	}
	return orb.Bound{
		Min: orb.Point{p.Lon - dLon, minLat},
		Max: orb.Point{p.Lon + dLon, maxLat},
	}
}
