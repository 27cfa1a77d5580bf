package geo

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitSquare = Polygon{
	{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0}, {Lat: 0, Lon: 0},
}

func TestPointInPolygon(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"center", 0.5, 0.5, true},
		{"near corner inside", 0.01, 0.99, true},
		{"west of square", 0.5, -0.5, false},
		{"north of square", 1.5, 0.5, false},
		{"far away", 45, 45, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PointInPolygon(tt.lat, tt.lon, unitSquare))
		})
	}
}

func TestPointInPolygon_Concave(t *testing.T) {
	// U shape opening north: the notch between the arms is outside.
	u := Polygon{
		{Lat: 0, Lon: 0}, {Lat: 0, Lon: 3}, {Lat: 3, Lon: 3}, {Lat: 3, Lon: 2},
		{Lat: 1, Lon: 2}, {Lat: 1, Lon: 1}, {Lat: 3, Lon: 1}, {Lat: 3, Lon: 0}, {Lat: 0, Lon: 0},
	}

	assert.True(t, PointInPolygon(2, 0.5, u), "left arm")
	assert.True(t, PointInPolygon(2, 2.5, u), "right arm")
	assert.True(t, PointInPolygon(0.5, 1.5, u), "base")
	assert.False(t, PointInPolygon(2, 1.5, u), "notch")
}

func TestPointInPolygon_VerticalEdgeDoesNotPanic(t *testing.T) {
	// Edges at constant longitude exercise the epsilon denominator.
	assert.NotPanics(t, func() {
		PointInPolygon(0.5, 1, unitSquare)
		PointInPolygon(0.5, 0, unitSquare)
	})
}

func TestBoundingBox(t *testing.T) {
	poly := Polygon{
		{Lat: 24.9, Lon: 57.55}, {Lat: 22.7, Lon: 55.7}, {Lat: 23.6, Lon: 56.0}, {Lat: 24.9, Lon: 57.55},
	}

	b := BoundingBox(poly)

	assert.Equal(t, BBox{MinLat: 22.7, MaxLat: 24.9, MinLon: 55.7, MaxLon: 57.55}, b)
	assert.True(t, b.Contains(23, 56))
	assert.False(t, b.Contains(21, 56))
	assert.Equal(t, BBox{}, BoundingBox(nil))
}

func TestHaversineKm(t *testing.T) {
	// Muscat to Salalah is roughly 860 km.
	d := HaversineKm(23.588, 58.407, 17.019, 54.099)
	assert.InDelta(t, 860, d, 20)

	assert.Equal(t, 0.0, HaversineKm(23.5, 58.4, 23.5, 58.4))
	assert.InDelta(t, HaversineKm(1, 2, 3, 4), HaversineKm(3, 4, 1, 2), 1e-9, "symmetric")

	// One degree of latitude.
	assert.InDelta(t, 2*math.Pi*EarthRadiusKm/360, HaversineKm(10, 20, 11, 20), 1e-6)
}

func TestHaversineKm_Antipodal(t *testing.T) {
	d := HaversineKm(0, 0, 0, 180)
	require.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 1e-6)
}

func TestSeparationIndex_MatchesPairwiseScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	bounds := BBox{MinLat: 16, MaxLat: 27, MinLon: 52, MaxLon: 60}

	for _, minKm := range []float64{0, 5, 25, 120} {
		idx := NewSeparationIndex(bounds, minKm)
		var naive []Point

		for i := 0; i < 1500; i++ {
			p := Point{
				Lat: bounds.MinLat + rng.Float64()*(bounds.MaxLat-bounds.MinLat),
				Lon: bounds.MinLon + rng.Float64()*(bounds.MaxLon-bounds.MinLon),
			}
			want := true
			for _, q := range naive {
				if Distance(p, q) < minKm {
					want = false
					break
				}
			}
			require.Equal(t, want, idx.Admits(p), "minKm=%v point %d", minKm, i)
			if want {
				naive = append(naive, p)
				idx.Insert(p)
			}
		}
		assert.Equal(t, naive, idx.Points())
	}
}

func TestSeparationIndex_PointsOutsideBounds(t *testing.T) {
	idx := NewSeparationIndex(BBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}, 50)

	outside := Point{Lat: 5, Lon: 5}
	idx.Insert(outside)

	assert.Equal(t, 1, idx.Len())
	assert.False(t, idx.Admits(Point{Lat: 5.1, Lon: 5.1}), "overflow points still constrain")
	assert.True(t, idx.Admits(Point{Lat: 0.5, Lon: 0.5}))
}

func TestSearchWindow_ContainsNeighbours(t *testing.T) {
	p := Point{Lat: 60, Lon: 10}
	w := searchWindow(p, 100)

	// A point 99 km due east must fall inside the window.
	east := Point{Lat: 60, Lon: 10 + 99/(KmPerDegree*math.Cos(radians(60)))}
	require.Less(t, Distance(p, east), 100.0)
	assert.True(t, w.Contains(east.Orb()))

	// Windows touching the antimeridian fall back to the full longitude range.
	edge := searchWindow(Point{Lat: 0, Lon: 179.9}, 50)
	assert.Equal(t, -180.0, edge.Min.Lon())
	assert.Equal(t, 180.0, edge.Max.Lon())
}
