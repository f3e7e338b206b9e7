package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		delta                  float64
	}{
		{"same point", 32.0853, 34.7818, 32.0853, 34.7818, 0, 0},
		{"tel aviv to jerusalem", 32.0853, 34.7818, 31.7683, 35.2137, 54, 2},
		{"tel aviv to haifa", 32.0853, 34.7818, 32.7940, 34.9896, 81, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.delta)
			assert.Equal(t, got, Haversine(tt.lat2, tt.lon2, tt.lat1, tt.lon1))
		})
	}
}

func TestOffset_RoundTripsDistance(t *testing.T) {
	lat, lon := Offset(32.0853, 34.7818, 3, 4)
	assert.InDelta(t, 5.0, Haversine(32.0853, 34.7818, lat, lon), 0.05)
}

func TestBoundingBox_ContainsCircle(t *testing.T) {
	minLat, minLon, maxLat, maxLon := BoundingBox(32.0853, 34.7818, 10)

	assert.InDelta(t, 10, Haversine(32.0853, 34.7818, maxLat, 34.7818), 0.05)
	assert.InDelta(t, 10, Haversine(32.0853, 34.7818, 32.0853, maxLon), 0.05)
	assert.Less(t, minLat, 32.0853)
	assert.Less(t, minLon, 34.7818)
}
