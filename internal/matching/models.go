package matching

import (
	"github.com/courtmate/tennis-platform/internal/players"
)

const (
	defaultMatchLimit   = 10
	maxMatchDistanceKm  = 50.0
	partnerScoreMinimum = 70
	nearbyRadiusKm      = 25.0
)

// MatchFilters narrows the candidate pool. Empty fields are ignored.
type MatchFilters struct {
	SkillLevel   players.SkillLevel   `form:"skill_level" validate:"omitempty,skill_level"`
	Location     string               `form:"location" validate:"omitempty,max=100"`
	Availability players.Availability `form:"availability" validate:"omitempty,availability"`
	Limit        int                  `form:"limit" validate:"omitempty,min=1,max=50"`
}

// Match is a scored potential partner.
type Match struct {
	Player        *players.Player      `json:"player"`
	Score         int                  `json:"compatibility_score"`
	DistanceKm    *float64             `json:"distance_km"`
	Explanation   []string             `json:"explanation"`
	Breakdown     Breakdown            `json:"breakdown"`
	ActivityLevel players.ActivityLevel `json:"activity_level"`
}

// PartnerSuggestion is a highly compatible match with a suggested next step.
type PartnerSuggestion struct {
	Player          *players.Player `json:"player"`
	Score           int             `json:"compatibility_score"`
	DistanceKm      *float64        `json:"distance_km"`
	Reason          string          `json:"reason"`
	SuggestedAction string          `json:"suggested_action"`
}

// ActivitySummary describes a player's recent bookings.
type ActivitySummary struct {
	BookingsLast30Days int                   `json:"bookings_last_30_days"`
	ActivityLevel      players.ActivityLevel `json:"activity_level"`
}

// Recommendations flags profile changes likely to surface more matches.
type Recommendations struct {
	ImproveProfile bool `json:"improve_profile"`
	BeMoreFlexible bool `json:"be_more_flexible"`
	ExpandLocation bool `json:"expand_location"`
}

// Statistics summarises a player's matching prospects.
type Statistics struct {
	TotalPossibleMatches int             `json:"total_possible_matches"`
	CompatibleMatches    int             `json:"compatible_matches"`
	CompatibilityRate    float64         `json:"compatibility_rate"`
	NearbyPlayers        int             `json:"nearby_players"`
	RecentActivity       ActivitySummary `json:"recent_activity"`
	Recommendations      Recommendations `json:"recommendations"`
}
