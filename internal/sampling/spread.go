package sampling

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/geoeco/tracker/internal/geo"
	"github.com/geoeco/tracker/internal/regions"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Allocation is the number of points requested from one region.
type Allocation struct {
	Region regions.Region
	Count  int
}

// RegionPoints is the outcome of spreading points over one region.
type RegionPoints struct {
	Region    regions.Region
	Requested int
	Points    []geo.Point
}

// Shortfall is the number of requested points that could not be placed.
func (r RegionPoints) Shortfall() int {
	if len(r.Points) >= r.Requested {
		return 0
	}
	return r.Requested - len(r.Points)
}

// AllocateSites splits total across regions: every region gets perRegionFloor,
// the remainder is shared by weight (rounded half to even), and any rounding
// difference is corrected one unit at a time round-robin in catalog order.
func AllocateSites(rs []Region, total, perRegionFloor int) []Allocation {
	if len(rs) == 0 {
		return nil
	}

	out := make([]Allocation, len(rs))
	weightSum := 0.0
	for i, r := range rs {
		out[i] = Allocation{Region: r, Count: perRegionFloor}
		weightSum += r.Weight
	}
	if weightSum <= 0 {
		weightSum = 1
	}

	remaining := total - perRegionFloor*len(rs)
	if remaining > 0 {
		for i, r := range rs {
			out[i].Count += int(math.RoundToEven(float64(remaining) * r.Weight / weightSum))
		}
	}

	sum := 0
	for _, a := range out {
		sum += a.Count
	}
	diff := total - sum
	step := 1
	if diff < 0 {
		step = -1
		diff = -diff
	}
	for i := 0; i < diff; i++ {
		out[i%len(out)].Count += step
	}

	for i := range out {
		if out[i].Count < 0 {
			out[i].Count = 0
		}
	}
	return out
}

// Region aliases the catalog region for allocation inputs.
type Region = regions.Region

// SpreadOptions configures SpreadAcrossRegions.
type SpreadOptions struct {
	MinSeparationKm float64
	// TriesPerPoint multiplies each region's request into its candidate budget.
	TriesPerPoint int
	Seed          uint64
	// Workers bounds concurrent regions; <= 0 means one goroutine per region.
	Workers int
}

// SpreadAcrossRegions runs SamplePointsSpread for every allocation
// concurrently. Each region gets its own random source derived from the seed
// and the region name, so the result does not depend on scheduling. Results
// come back in allocation order.
func SpreadAcrossRegions(ctx context.Context, catalog *regions.Catalog, allocations []Allocation, opts SpreadOptions, log zerolog.Logger) ([]RegionPoints, error) {
	results := make([]RegionPoints, len(allocations))

	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}

	for i, a := range allocations {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			regionLog := log.With().Str("region", a.Region.Name).Logger()
			sampler := NewSampler(RegionRand(opts.Seed, a.Region.Name), catalog, regionLog)
			need := max(0, a.Count)
			pts := sampler.SamplePointsSpread(a.Region.Polygon, need, opts.MinSeparationKm, need*opts.TriesPerPoint)

			results[i] = RegionPoints{Region: a.Region, Requested: need, Points: pts}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RegionRand derives a deterministic random source for one region of a run.
func RegionRand(seed uint64, region string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(region))
	return rand.New(rand.NewPCG(seed, h.Sum64()))
}
