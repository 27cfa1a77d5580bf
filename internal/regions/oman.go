package regions

import (
	"sync"

	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/geo"
)

// Hotspot names in catalog order.
const (
	SemailOphiolite = "SEMAIL_OPHIOLITE"
	IbraChromite    = "IBRA_CHROMITE"
	YanqulGold      = "YANQUL_GOLD"
	DhofarGypsum    = "DHOFAR_GYPSUM"
	DuqmCarbonates  = "DUQM_CARBONATES"
	SurLimestone    = "SUR_LIMESTONE"
	MusandamSmall   = "MUSANDAM_SMALL"
)

// OmanBounds is the coarse box every stored site must fall in.
var OmanBounds = geo.BBox{MinLat: 16.5, MaxLat: 26.6, MinLon: 51.8, MaxLon: 60.5}

var (
	omanOnce    sync.Once
	omanCatalog *Catalog
)

// Oman returns the process-wide Oman catalog. The coordinates are simplified
// approximations of the mainland, the Musandam exclave and seven mineral hotspots.
func Oman() *Catalog {
	omanOnce.Do(func() {
		c, err := NewCatalog(
			[]geo.Polygon{omanMainland, omanMusandam},
			[]Region{
				{Name: SemailOphiolite, Polygon: semailOphiolite, Weight: 4.0,
					Categories: domain.CategorySet{domain.Copper, domain.Chromite, domain.Gold}},
				{Name: IbraChromite, Polygon: ibraChromite, Weight: 3.0,
					Categories: domain.CategorySet{domain.Chromite}},
				{Name: YanqulGold, Polygon: yanqulGold, Weight: 2.5,
					Categories: domain.CategorySet{domain.Gold, domain.Copper}},
				{Name: DhofarGypsum, Polygon: dhofarGypsum, Weight: 4.0,
					Categories: domain.CategorySet{domain.Gypsum}},
				{Name: DuqmCarbonates, Polygon: duqmCarbonates, Weight: 3.5,
					Categories: domain.CategorySet{domain.Limestone, domain.Silica, domain.Dolomite}},
				{Name: SurLimestone, Polygon: surLimestone, Weight: 2.0,
					Categories: domain.CategorySet{domain.Limestone, domain.Silica}},
				{Name: MusandamSmall, Polygon: musandamSmall, Weight: 0.2,
					Categories: domain.CategorySet{domain.Limestone}},
			},
		)
		if err != nil {
			panic("regions: invalid built-in catalog: " + err.Error())
		}
		omanCatalog = c
	})
	return omanCatalog
}

// poly builds a polygon from alternating lat, lon values.
func poly(coords ...float64) geo.Polygon {
	p := make(geo.Polygon, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		p = append(p, geo.Point{Lat: coords[i], Lon: coords[i+1]})
	}
	return p
}

// Mainland outline: Batinah coast south-east to Ras al Hadd, down the Arabian Sea
// coast to the Yemen border, then north along the Saudi and UAE borders.
var omanMainland = poly(
	24.98, 56.37, 24.77, 56.49, 24.56, 56.60, 24.38, 56.74, 24.20, 56.90,
	24.02, 57.10, 23.88, 57.44, 23.74, 57.89, 23.72, 58.20, 23.66, 58.58,
	23.28, 58.96, 22.95, 59.20, 22.60, 59.56, 22.55, 59.84, 22.20, 59.82,
	21.85, 59.65, 21.30, 59.40, 20.85, 58.95, 20.55, 58.45, 20.40, 58.05,
	19.95, 57.78, 19.62, 57.78, 19.00, 57.88, 18.60, 57.20, 18.15, 56.60,
	17.90, 55.65, 17.45, 55.28, 17.05, 55.08, 16.96, 54.70, 17.01, 54.40,
	16.98, 54.10, 16.92, 53.95, 16.85, 53.75, 16.72, 53.40, 16.65, 53.10,
	17.40, 52.80, 18.20, 52.40, 19.00, 52.00, 20.00, 52.90, 21.00, 53.80,
	22.00, 54.80, 22.70, 55.20, 23.20, 55.45, 23.70, 55.55, 24.00, 55.75,
	24.25, 55.75, 24.40, 55.90, 24.70, 56.05, 24.95, 56.20, 24.98, 56.37,
)

var omanMusandam = poly(
	26.4, 56.15, 26.35, 56.3, 26.25, 56.45, 26.15, 56.4,
	26.05, 56.25, 26.1, 56.1, 26.2, 56.05, 26.3, 56.05,
	26.4, 56.15,
)

// Ophiolite belt from North Al Batinah into Al Dhahirah.
var semailOphiolite = poly(
	24.90, 57.55, 24.50, 57.30, 24.10, 57.00, 23.70, 56.70,
	23.30, 56.40, 22.90, 56.10, 22.70, 55.90, 22.70, 55.70,
	23.10, 55.70, 23.60, 56.00, 24.00, 56.30, 24.40, 56.60,
	24.80, 57.20, 24.95, 57.45, 24.90, 57.55,
)

var ibraChromite = poly(
	23.10, 58.10, 22.90, 58.10, 22.60, 58.30, 22.45, 58.70,
	22.60, 59.05, 22.85, 59.20, 23.05, 59.05, 23.15, 58.70,
	23.15, 58.40, 23.10, 58.10,
)

var yanqulGold = poly(
	23.95, 56.55, 23.80, 56.40, 23.55, 56.35, 23.45, 56.45,
	23.45, 56.65, 23.65, 56.80, 23.85, 56.80, 23.95, 56.65,
	23.95, 56.55,
)

// Salalah and Thumrait.
var dhofarGypsum = poly(
	18.10, 54.45, 17.90, 54.25, 17.65, 54.10, 17.40, 54.05,
	17.20, 54.20, 17.15, 54.45, 17.25, 54.65, 17.55, 54.75,
	17.85, 54.70, 18.05, 54.55, 18.10, 54.45,
)

var duqmCarbonates = poly(
	21.30, 58.10, 21.00, 57.80, 20.50, 57.50, 20.10, 57.40,
	19.70, 57.60, 19.60, 57.90, 19.80, 58.30, 20.20, 58.55,
	20.70, 58.60, 21.10, 58.45, 21.30, 58.10,
)

var surLimestone = poly(
	22.95, 59.80, 22.75, 59.70, 22.55, 59.65, 22.40, 59.70,
	22.30, 59.85, 22.35, 60.00, 22.55, 60.10, 22.80, 60.05,
	22.95, 59.90, 22.95, 59.80,
)

// Little extractive area; low weight.
var musandamSmall = poly(
	26.30, 56.25, 26.22, 56.28, 26.16, 56.35, 26.14, 56.45,
	26.20, 56.50, 26.28, 56.45, 26.35, 56.35, 26.34, 56.28,
	26.30, 56.25,
)
