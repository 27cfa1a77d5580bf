package generation

import (
	"math/rand/v2"

	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/sampling"
	"github.com/geoeco/tracker/pkg/formulas"
)

const (
	allowedBoost   = 1.8
	foreignPenalty = 0.3
)

var statusWeights = []float64{0.64, 0.31, 0.05} // domain.Statuses order

// bandWeights follow domain.Bands order: green, yellow, red.
var bandWeights = map[domain.Group][]float64{
	domain.GroupIndustrial: {0.62, 0.32, 0.06},
	domain.GroupMetallic:   {0.52, 0.36, 0.12},
	domain.GroupPrecious:   {0.50, 0.36, 0.14},
}

type envBase struct {
	aqi, tds float64
}

var groupEnvBase = map[domain.Group]envBase{
	domain.GroupIndustrial: {aqi: 55, tds: 560},
	domain.GroupMetallic:   {aqi: 65, tds: 760},
	domain.GroupPrecious:   {aqi: 60, tds: 700},
}

var bandEnvShift = map[domain.Band]envBase{
	domain.BandGreen:  {aqi: -5, tds: -40},
	domain.BandYellow: {aqi: 5, tds: 60},
	domain.BandRed:    {aqi: 15, tds: 160},
}

// Reading noise and clamps
const (
	aqiSD   = 8.0
	aqiMin  = 20.0
	aqiMax  = 135.0
	tdsSD   = 100.0
	tdsMin  = 300.0
	tdsMax  = 1700.0
	rehabSD = 16.0

	rehabActive   = 68.0
	rehabInactive = 35.0

	readingSpacingDays = 30
	readingJitterDays  = 5
	alertMaxAgeDays    = 360

	licenceMaxAgeYears = 4
	licenceMinYears    = 4
	licenceMaxYears    = 8
)

var alertWeights = []float64{0.66, 0.25, 0.09}

var alertLevels = []domain.AlertLevel{domain.AlertInfo, domain.AlertWarn, domain.AlertCritical}

var alertMessages = []string{
	"Dust levels within limits.",
	"Dust filter maintenance required.",
	"Air quality index improved.",
	"Temporary TDS rise in groundwater.",
	"Minor leak contained.",
	"TDS limit exceeded, pumps paused.",
}

// localMineralWeights favours the minerals a region is known for.
func localMineralWeights(global map[domain.Category]float64, allowed domain.CategorySet) []float64 {
	w := make([]float64, len(domain.Categories))
	for i, c := range domain.Categories {
		g, ok := global[c]
		if !ok {
			g = 1
		}
		if allowed.Has(c) {
			w[i] = g * allowedBoost
		} else {
			w[i] = g * foreignPenalty
		}
	}
	return w
}

func drawStatus(rng *rand.Rand) domain.Status {
	return domain.Statuses[sampling.WeightedIndex(rng, statusWeights)]
}

func drawBand(rng *rand.Rand, c domain.Category) domain.Band {
	return domain.Bands[sampling.WeightedIndex(rng, bandWeights[c.Group()])]
}

// drawReading produces one monthly reading for a site profile.
func drawReading(rng *rand.Rand, c domain.Category, b domain.Band, s domain.Status) (aqi, tds, rehab float64) {
	base := groupEnvBase[c.Group()]
	shift := bandEnvShift[b]
	rehabBase := rehabInactive
	if s == domain.StatusActive {
		rehabBase = rehabActive
	}

	aqi = formulas.Round(formulas.Clamp(gauss(rng, base.aqi+shift.aqi, aqiSD), aqiMin, aqiMax), 1)
	tds = formulas.Round(formulas.Clamp(gauss(rng, base.tds+shift.tds, tdsSD), tdsMin, tdsMax), 1)
	rehab = formulas.Round(formulas.Clamp(gauss(rng, rehabBase, rehabSD), 0, 100), 1)
	return aqi, tds, rehab
}

func gauss(rng *rand.Rand, mean, sd float64) float64 {
	return mean + rng.NormFloat64()*sd
}

// randInt returns a uniform integer in [lo, hi].
func randInt(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}
