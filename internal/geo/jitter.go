package geo

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	pkggeo "github.com/courtmate/tennis-platform/pkg/geo"
)

const defaultCityRadiusKm = 3.0

// cityRadii is matched in order by substring, so longer names that contain a
// shorter one must come first.
var cityRadii = []struct {
	name     string
	radiusKm float64
}{
	{"tel aviv", 5},
	{"haifa", 8},
	{"jerusalem", 10},
	{"eilat", 3},
	{"netanya", 4},
	{"beer sheva", 6},
	{"rishon lezion", 4},
	{"petah tikva", 3},
	{"ashdod", 4},
	{"herzliya", 2},
}

// CityRadiusKm returns the spread radius used for a free-text location.
func CityRadiusKm(text string) float64 {
	lower := strings.ToLower(text)
	for _, c := range cityRadii {
		if strings.Contains(lower, c.name) {
			return c.radiusKm
		}
	}
	return defaultCityRadiusKm
}

// Jitter spreads a city-level geocode across the city. The offset depends only
// on the text, so the same string always lands on the same point, and it
// never leaves the city radius.
func Jitter(raw Coordinates, text string) Coordinates {
	text = strings.TrimSpace(text)
	sum := md5.Sum([]byte(text))
	h, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)

	fraction := float64(h%1000) / 1000 * 0.95
	angle := float64((h>>10)%1000) / 1000 * 2 * math.Pi
	distance := CityRadiusKm(text) * fraction

	lat, lng := pkggeo.Offset(raw.Latitude, raw.Longitude,
		distance*math.Cos(angle),
		distance*math.Sin(angle),
	)
	return Coordinates{Latitude: lat, Longitude: lng}
}
