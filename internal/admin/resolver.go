// Package admin assigns coordinates to Omani administrative units
// (governorate and wilaya) by nearest reference centroid.
package admin

import (
	"math"

	"github.com/geoeco/tracker/internal/geo"
)

// Centroid is the reference point of one wilaya.
type Centroid struct {
	Governorate string  `json:"governorate"`
	Wilaya      string  `json:"wilaya"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Resolver maps points to the nearest centroid of a fixed table.
type Resolver struct {
	centroids []Centroid
}

// NewResolver creates a resolver over centroids. Table order is the tie-break.
func NewResolver(centroids []Centroid) *Resolver {
	table := make([]Centroid, len(centroids))
	copy(table, centroids)
	return &Resolver{centroids: table}
}

// Resolve returns the governorate and wilaya of the centroid closest to
// (lat, lon). On equal distances the first centroid in table order wins.
// An empty table resolves to empty strings.
func (r *Resolver) Resolve(lat, lon float64) (governorate, wilaya string) {
	c, _, ok := r.Nearest(lat, lon)
	if !ok {
		return "", ""
	}
	return c.Governorate, c.Wilaya
}

// Nearest returns the closest centroid and its distance in kilometres.
func (r *Resolver) Nearest(lat, lon float64) (Centroid, float64, bool) {
	best := -1
	bestKm := math.Inf(1)
	for i, c := range r.centroids {
		d := geo.HaversineKm(lat, lon, c.Lat, c.Lon)
		if d < bestKm {
			bestKm = d
			best = i
		}
	}
	if best < 0 {
		return Centroid{}, 0, false
	}
	return r.centroids[best], bestKm, true
}

// Centroids returns the resolver's table.
func (r *Resolver) Centroids() []Centroid {
	out := make([]Centroid, len(r.centroids))
	copy(out, r.centroids)
	return out
}

// Governorates lists governorate names in first-appearance order.
func (r *Resolver) Governorates() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range r.centroids {
		if !seen[c.Governorate] {
			seen[c.Governorate] = true
			out = append(out, c.Governorate)
		}
	}
	return out
}

var omanResolver = NewResolver(OmanCentroids)

// Resolve resolves against the built-in Omani table.
func Resolve(lat, lon float64) (governorate, wilaya string) {
	return omanResolver.Resolve(lat, lon)
}

// Oman returns the resolver over the built-in Omani table.
func Oman() *Resolver {
	return omanResolver
}

// OmanCentroids are approximate centres of the main wilayat, grouped by governorate.
var OmanCentroids = []Centroid{
	{Governorate: "Muscat", Wilaya: "Muscat", Lat: 23.588, Lon: 58.407},
	{Governorate: "Muscat", Wilaya: "Seeb", Lat: 23.669, Lon: 58.190},
	{Governorate: "Muscat", Wilaya: "Bawshar", Lat: 23.555, Lon: 58.405},
	{Governorate: "Muscat", Wilaya: "Muttrah", Lat: 23.617, Lon: 58.567},
	{Governorate: "Muscat", Wilaya: "Al Amerat", Lat: 23.473, Lon: 58.520},
	{Governorate: "Muscat", Wilaya: "Qurayyat", Lat: 23.264, Lon: 58.919},

	{Governorate: "Dhofar", Wilaya: "Salalah", Lat: 17.019, Lon: 54.099},
	{Governorate: "Dhofar", Wilaya: "Thumrait", Lat: 17.666, Lon: 54.028},
	{Governorate: "Dhofar", Wilaya: "Taqah", Lat: 17.043, Lon: 54.371},
	{Governorate: "Dhofar", Wilaya: "Mirbat", Lat: 16.992, Lon: 54.689},

	{Governorate: "Al Wusta", Wilaya: "Duqm", Lat: 19.647, Lon: 57.735},
	{Governorate: "Al Wusta", Wilaya: "Hayma", Lat: 19.957, Lon: 56.275},
	{Governorate: "Al Wusta", Wilaya: "Mahout", Lat: 20.744, Lon: 58.871},

	{Governorate: "Al Dhahirah", Wilaya: "Ibri", Lat: 23.225, Lon: 56.515},
	{Governorate: "Al Dhahirah", Wilaya: "Yanqul", Lat: 23.587, Lon: 56.541},
	{Governorate: "Al Dhahirah", Wilaya: "Dhank", Lat: 23.462, Lon: 56.249},

	{Governorate: "North Al Batinah", Wilaya: "Sohar", Lat: 24.347, Lon: 56.707},
	{Governorate: "North Al Batinah", Wilaya: "Shinas", Lat: 24.743, Lon: 56.466},
	{Governorate: "North Al Batinah", Wilaya: "Liwa", Lat: 24.530, Lon: 56.562},
	{Governorate: "North Al Batinah", Wilaya: "Saham", Lat: 24.172, Lon: 56.888},
	{Governorate: "North Al Batinah", Wilaya: "Al Khaburah", Lat: 23.981, Lon: 57.100},
	{Governorate: "North Al Batinah", Wilaya: "Suwaiq", Lat: 23.849, Lon: 57.438},

	{Governorate: "South Al Batinah", Wilaya: "Barka", Lat: 23.707, Lon: 57.889},
	{Governorate: "South Al Batinah", Wilaya: "Rustaq", Lat: 23.389, Lon: 57.424},
	{Governorate: "South Al Batinah", Wilaya: "Al Awabi", Lat: 23.394, Lon: 57.396},
	{Governorate: "South Al Batinah", Wilaya: "Nakhal", Lat: 23.397, Lon: 57.829},
	{Governorate: "South Al Batinah", Wilaya: "Wadi Al Maawil", Lat: 23.460, Lon: 57.787},
	{Governorate: "South Al Batinah", Wilaya: "Al Musannah", Lat: 23.659, Lon: 57.890},

	{Governorate: "North Al Sharqiyah", Wilaya: "Ibra", Lat: 22.713, Lon: 58.533},
	{Governorate: "North Al Sharqiyah", Wilaya: "Al Mudhaibi", Lat: 22.575, Lon: 58.160},
	{Governorate: "North Al Sharqiyah", Wilaya: "Bidiyah", Lat: 22.453, Lon: 58.800},

	{Governorate: "South Al Sharqiyah", Wilaya: "Sur", Lat: 22.566, Lon: 59.528},
	{Governorate: "South Al Sharqiyah", Wilaya: "Jalan Bani Bu Ali", Lat: 22.000, Lon: 59.450},
	{Governorate: "South Al Sharqiyah", Wilaya: "Jalan Bani Bu Hassan", Lat: 22.105, Lon: 59.317},
	{Governorate: "South Al Sharqiyah", Wilaya: "Masirah", Lat: 20.485, Lon: 58.799},

	{Governorate: "Al Dakhiliyah", Wilaya: "Nizwa", Lat: 22.933, Lon: 57.533},
	{Governorate: "Al Dakhiliyah", Wilaya: "Bahla", Lat: 22.967, Lon: 57.300},
	{Governorate: "Al Dakhiliyah", Wilaya: "Adam", Lat: 22.390, Lon: 57.533},
	{Governorate: "Al Dakhiliyah", Wilaya: "Izki", Lat: 22.938, Lon: 57.766},
	{Governorate: "Al Dakhiliyah", Wilaya: "Manah", Lat: 22.793, Lon: 57.587},
	{Governorate: "Al Dakhiliyah", Wilaya: "Samail", Lat: 23.304, Lon: 58.016},
	{Governorate: "Al Dakhiliyah", Wilaya: "Al Hamra", Lat: 23.116, Lon: 57.285},

	{Governorate: "Musandam", Wilaya: "Khasab", Lat: 26.179, Lon: 56.247},
	{Governorate: "Musandam", Wilaya: "Bukha", Lat: 26.197, Lon: 56.355},
	{Governorate: "Musandam", Wilaya: "Dibba", Lat: 25.615, Lon: 56.265},

	{Governorate: "Al Buraimi", Wilaya: "Al Buraimi", Lat: 24.253, Lon: 55.793},
	{Governorate: "Al Buraimi", Wilaya: "Mahdah", Lat: 24.200, Lon: 55.970},
}
