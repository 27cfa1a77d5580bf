package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for all great-circle distances.
const EarthRadiusKm = 6371.0088

// KmPerDegree is the flat-earth approximation used to turn a spread in
// kilometres into a degree offset.
const KmPerDegree = 111.0

// HaversineKm returns the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := radians(lat1)
	p2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lon2 - lon1)

	a := math.Pow(math.Sin(dPhi/2), 2) + math.Cos(p1)*math.Cos(p2)*math.Pow(math.Sin(dLambda/2), 2)
	// clamp: rounding can push a marginally outside [0, 1] for antipodal points
	a = math.Min(1, math.Max(0, a))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// Distance returns the great-circle distance between two points in kilometres.
func Distance(a, b Point) float64 {
	return HaversineKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
