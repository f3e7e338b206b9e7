package courts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterClause(t *testing.T) {
	tests := []struct {
		name      string
		filters   Filters
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "no filters",
			wantWhere: "c.is_active = TRUE",
		},
		{
			name:      "location wildcards are literal",
			filters:   Filters{Location: "court_1%"},
			wantWhere: "c.is_active = TRUE AND c.location ILIKE $1",
			wantArgs:  []interface{}{`%court\_1\%%`},
		},
		{
			name:      "type price and area",
			filters:   Filters{CourtType: "Indoor", MaxPrice: 150, Area: &Area{MinLat: 32, MaxLat: 33, MinLng: 34, MaxLng: 35}},
			wantWhere: "c.is_active = TRUE AND c.court_type = $1 AND c.hourly_rate <= $2 AND c.latitude BETWEEN $3 AND $4 AND c.longitude BETWEEN $5 AND $6",
			wantArgs:  []interface{}{"indoor", 150.0, 32.0, 33.0, 34.0, 35.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := filterClause(tt.filters)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
