// Package sampling draws random points inside polygons: plain rejection
// sampling, category-weighted region choice, minimum-separation spreads and
// clusters around a seed.
//
// A Sampler owns its random source and is not safe for concurrent use. Run
// independent samplers (see SpreadAcrossRegions) to parallelise.
package sampling

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/geo"
	"github.com/geoeco/tracker/internal/regions"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxTries bounds rejection sampling inside one polygon.
	DefaultMaxTries = 5000
	// ClusterTries bounds perturbation attempts around a seed.
	ClusterTries = 200
)

// ErrSamplingExhausted is returned when rejection sampling hits its try limit.
var ErrSamplingExhausted = errors.New("sampling exhausted")

// Sampler draws points from polygons of a region catalog.
type Sampler struct {
	rng     *rand.Rand
	catalog *regions.Catalog
	log     zerolog.Logger
}

// NewSampler creates a sampler. The catalog provides the country boundary and
// the regions used for category sampling.
func NewSampler(rng *rand.Rand, catalog *regions.Catalog, log zerolog.Logger) *Sampler {
	return &Sampler{
		rng:     rng,
		catalog: catalog,
		log:     log.With().Str("component", "sampler").Logger(),
	}
}

// Rand exposes the sampler's random source for callers that interleave draws.
func (s *Sampler) Rand() *rand.Rand {
	return s.rng
}

func (s *Sampler) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// SamplePointInPolygon draws uniformly inside the polygon's bounding box until a
// draw falls inside the polygon. Coordinates are rounded to six decimals before
// the containment test. maxTries <= 0 uses DefaultMaxTries.
func (s *Sampler) SamplePointInPolygon(poly geo.Polygon, maxTries int) (geo.Point, error) {
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}

	box := geo.BoundingBox(poly)
	for i := 0; i < maxTries; i++ {
		lat := geo.Round6(s.uniform(box.MinLat, box.MaxLat))
		lon := geo.Round6(s.uniform(box.MinLon, box.MaxLon))
		if geo.PointInPolygon(lat, lon, poly) {
			return geo.Point{Lat: lat, Lon: lon}, nil
		}
	}
	return geo.Point{}, fmt.Errorf("no point inside polygon after %d tries: %w", maxTries, ErrSamplingExhausted)
}

// SamplePointForCategory picks a region associated with category by weight,
// falling back to a weighted pick over the whole catalog when none matches,
// and samples a point inside it.
func (s *Sampler) SamplePointForCategory(category domain.Category) (geo.Point, error) {
	candidates := s.catalog.RegionsForCategory(category)
	if len(candidates) == 0 {
		candidates = s.catalog.Regions()
	}
	if len(candidates) == 0 {
		return geo.Point{}, fmt.Errorf("catalog has no regions: %w", ErrSamplingExhausted)
	}

	weights := make([]float64, len(candidates))
	for i, r := range candidates {
		weights[i] = r.Weight
	}
	region := candidates[WeightedIndex(s.rng, weights)]

	p, err := s.SamplePointInPolygon(region.Polygon, DefaultMaxTries)
	if err != nil {
		return geo.Point{}, fmt.Errorf("region %s: %w", region.Name, err)
	}
	return p, nil
}

// SamplePointsSpread samples up to targetCount points inside poly that also lie
// inside the country and are at least minSeparationKm apart. It stops after
// maxTries candidates. A short result is logged, not returned as an error.
func (s *Sampler) SamplePointsSpread(poly geo.Polygon, targetCount int, minSeparationKm float64, maxTries int) []geo.Point {
	if targetCount <= 0 {
		return nil
	}

	index := geo.NewSeparationIndex(geo.BoundingBox(poly), minSeparationKm)
	tries := 0
	for index.Len() < targetCount && tries < maxTries {
		tries++
		p, err := s.SamplePointInPolygon(poly, DefaultMaxTries)
		if err != nil {
			s.log.Warn().Err(err).Int("tries", tries).Msg("Candidate sampling failed, stopping spread")
			break
		}
		if !s.catalog.PointInCountry(p.Lat, p.Lon) {
			continue
		}
		if !index.Admits(p) {
			continue
		}
		index.Insert(p)
	}

	if index.Len() < targetCount {
		s.log.Warn().
			Int("requested", targetCount).
			Int("placed", index.Len()).
			Float64("min_km", minSeparationKm).
			Int("tries", tries).
			Msg("Could not place every requested point")
	}
	return index.Points()
}

// ClusterPointNearSeed returns a point inside poly near seed. Without a seed a
// fresh one is sampled from the polygon first. The seed is perturbed by up to
// spreadKm in each axis (1 degree taken as 111 km); after ClusterTries misses a
// fresh in-polygon sample is returned instead.
func (s *Sampler) ClusterPointNearSeed(poly geo.Polygon, seed *geo.Point, spreadKm float64) (geo.Point, error) {
	var center geo.Point
	if seed == nil {
		p, err := s.SamplePointInPolygon(poly, DefaultMaxTries)
		if err != nil {
			return geo.Point{}, fmt.Errorf("cluster seed: %w", err)
		}
		center = p
	} else {
		center = *seed
	}

	delta := spreadKm / geo.KmPerDegree
	for i := 0; i < ClusterTries; i++ {
		lat := geo.Round6(center.Lat + s.uniform(-delta, delta))
		lon := geo.Round6(center.Lon + s.uniform(-delta, delta))
		if geo.PointInPolygon(lat, lon, poly) {
			return geo.Point{Lat: lat, Lon: lon}, nil
		}
	}
	return s.SamplePointInPolygon(poly, DefaultMaxTries)
}

// WeightedIndex picks an index with probability proportional to its weight.
// Negative weights count as zero; when every weight is zero the pick is uniform.
func WeightedIndex(rng *rand.Rand, weights []float64) int {
	if len(weights) == 0 {
		return -1
	}

	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return rng.IntN(len(weights))
	}

	r := rng.Float64() * total
	acc := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if r < acc {
			return i
		}
	}
	return last
}
