package geo

import "math"

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = earthRadiusKm * math.Pi / 180.0
)

// Haversine calculates the great-circle distance in kilometres between two
// coordinates. The result is rounded to two decimal places.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return math.Round(earthRadiusKm*c*100) / 100
}

// Offset moves a point north by dNorthKm and east by dEastKm using a flat
// approximation, good enough for the tens of kilometres used here.
func Offset(lat, lon, dNorthKm, dEastKm float64) (float64, float64) {
	newLat := lat + dNorthKm/kmPerDegree
	newLon := lon + dEastKm/(kmPerDegree*math.Cos(lat*math.Pi/180.0))
	return newLat, newLon
}

// BoundingBox returns the min/max latitude and longitude enclosing a circle of
// radiusKm around the point. Used to prefilter rows before exact distances.
func BoundingBox(lat, lon, radiusKm float64) (minLat, minLon, maxLat, maxLon float64) {
	dLat := radiusKm / kmPerDegree
	dLon := radiusKm / (kmPerDegree * math.Max(math.Cos(lat*math.Pi/180.0), 0.01))
	return lat - dLat, lon - dLon, lat + dLat, lon + dLon
}
