package geo

import (
	pkggeo "github.com/courtmate/tennis-platform/pkg/geo"
)

// Coordinates is a resolved latitude/longitude pair. Absent coordinates are
// represented by a nil *Coordinates throughout.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// FromNullable builds Coordinates from two nullable columns. Either side
// missing yields nil.
func FromNullable(lat, lng *float64) *Coordinates {
	if lat == nil || lng == nil {
		return nil
	}
	return &Coordinates{Latitude: *lat, Longitude: *lng}
}

// DistanceKm returns the great-circle distance rounded to two decimals, or
// nil when either side is unknown.
func DistanceKm(a, b *Coordinates) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := pkggeo.Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	return &d
}

// DistanceToScore maps a distance onto [10,100]. Unknown distance is neutral.
func DistanceToScore(d *float64) int {
	if d == nil {
		return 50
	}
	switch km := *d; {
	case km <= 2:
		return 100
	case km <= 5:
		return 90
	case km <= 10:
		return 75
	case km <= 20:
		return 50
	case km <= 35:
		return 25
	default:
		return 10
	}
}

// ProximityPoints is the distance step function scaled to a 25 point budget,
// shared by player and court scoring.
func ProximityPoints(km float64) int {
	switch {
	case km <= 2:
		return 25
	case km <= 5:
		return 23
	case km <= 10:
		return 20
	case km <= 15:
		return 16
	case km <= 25:
		return 12
	case km <= 35:
		return 8
	case km <= 50:
		return 4
	default:
		return 0
	}
}
