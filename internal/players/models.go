package players

import (
	"strings"
	"time"

	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/google/uuid"
)

// SkillLevel is an ordered self-reported level.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillProfessional SkillLevel = "professional"
)

var skillOrder = []SkillLevel{SkillBeginner, SkillIntermediate, SkillAdvanced, SkillProfessional}

// Ordinal returns the position of the level in the ladder. ok is false for
// empty or unknown values.
func (s SkillLevel) Ordinal() (int, bool) {
	normalized := SkillLevel(strings.ToLower(strings.TrimSpace(string(s))))
	for i, level := range skillOrder {
		if level == normalized {
			return i, true
		}
	}
	return 0, false
}

// Adjacent returns the level itself and its immediate neighbours.
func (s SkillLevel) Adjacent() []SkillLevel {
	idx, ok := s.Ordinal()
	if !ok {
		return nil
	}
	out := make([]SkillLevel, 0, 3)
	for i := idx - 1; i <= idx+1; i++ {
		if i >= 0 && i < len(skillOrder) {
			out = append(out, skillOrder[i])
		}
	}
	return out
}

// Availability is when a player usually plays.
type Availability string

const (
	AvailabilityWeekdays Availability = "weekdays"
	AvailabilityWeekends Availability = "weekends"
	AvailabilityEvenings Availability = "evenings"
	AvailabilityMornings Availability = "mornings"
	AvailabilityFlexible Availability = "flexible"
)

// Playing styles used by court recommendations.
const (
	StyleAggressive = "aggressive"
	StyleDefensive  = "defensive"
	StyleAllRound   = "all-round"
)

// ActivityLevel buckets recent booking counts.
type ActivityLevel string

const (
	ActivityHigh   ActivityLevel = "High"
	ActivityMedium ActivityLevel = "Medium"
	ActivityLow    ActivityLevel = "Low"
)

// ActivityLevelFor classifies a 30-day booking count.
func ActivityLevelFor(recentBookings int) ActivityLevel {
	switch {
	case recentBookings > 4:
		return ActivityHigh
	case recentBookings > 1:
		return ActivityMedium
	default:
		return ActivityLow
	}
}

// Player is a registered player profile.
type Player struct {
	ID                 uuid.UUID    `json:"id"`
	Name               string       `json:"name"`
	Email              string       `json:"email"`
	Phone              string       `json:"phone,omitempty"`
	SkillLevel         SkillLevel   `json:"skill_level"`
	PreferredLocation  string       `json:"preferred_location"`
	Latitude           *float64     `json:"latitude,omitempty"`
	Longitude          *float64     `json:"longitude,omitempty"`
	Availability       Availability `json:"availability"`
	Bio                string       `json:"bio,omitempty"`
	PreferredCourtType string       `json:"preferred_court_type,omitempty"`
	PlayingStyle       string       `json:"playing_style,omitempty"`
	IsActive           bool         `json:"is_active"`
	RecentBookings     int          `json:"recent_bookings"`
	CreatedAt          time.Time    `json:"created_at"`
}

// Coordinates returns the stored position, or nil unless both halves are set.
func (p *Player) Coordinates() *geo.Coordinates {
	return geo.FromNullable(p.Latitude, p.Longitude)
}

// SetCoordinates stores c on the profile.
func (p *Player) SetCoordinates(c geo.Coordinates) {
	lat, lng := c.Latitude, c.Longitude
	p.Latitude = &lat
	p.Longitude = &lng
}

// ActivityLevel classifies the player's recent bookings.
func (p *Player) ActivityLevel() ActivityLevel {
	return ActivityLevelFor(p.RecentBookings)
}

// CandidateQuery narrows the pool of potential partners.
type CandidateQuery struct {
	ExcludeID    uuid.UUID
	SkillLevels  []SkillLevel
	Location     string
	Availability Availability
}
