package courts

import (
	"fmt"
	"strings"

	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/internal/players"
)

const (
	recommendedMinimum = 30
	farPenaltyFactor   = 0.3
)

// ScoreContext carries inputs shared across one recommendation run.
type ScoreContext struct {
	AverageRate    float64
	AverageRateErr error
	// AvailableSlots is set only when the caller asked about a specific date.
	AvailableSlots *int
}

// Scorer rates courts for a player on a 0-100 scale. Distance is bounded and
// penalised so a cheap far-away court never outranks a nearby one.
type Scorer struct{}

// NewScorer creates a court scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score rates court for player. playerCoords may be nil.
func (s *Scorer) Score(player *players.Player, court *Court, playerCoords *geo.Coordinates, sc ScoreContext) ScoreBreakdown {
	bd := ScoreBreakdown{
		Preference:   preferenceScore(player, court),
		Availability: availabilityScore(sc.AvailableSlots),
		Value:        valueScore(court.HourlyRate, sc.AverageRate, sc.AverageRateErr),
		Amenities:    amenityScore(player, court),
	}

	far := false
	bd.DistanceKm = geo.DistanceKm(playerCoords, court.Coordinates())
	if bd.DistanceKm != nil {
		d := *bd.DistanceKm
		bd.Distance = geo.ProximityPoints(d)
		switch {
		case d > 100:
			bd.Distance -= 50
			far = true
		case d > 50:
			bd.Distance -= 20
		}
	} else {
		bd.Distance = textDistanceScore(player.PreferredLocation, court.Location)
	}

	total := bd.Preference + bd.Distance + bd.Availability + bd.Value + bd.Amenities
	if far {
		total = int(float64(total) * farPenaltyFactor)
	}
	bd.Total = min(max(total, 0), 100)
	return bd
}

func preferenceScore(player *players.Player, court *Court) int {
	score := 10
	if pref := strings.ToLower(strings.TrimSpace(player.PreferredCourtType)); pref != "" {
		surface := strings.ToLower(court.Surface)
		kind := strings.ToLower(court.CourtType)
		switch {
		case pref == surface || pref == kind:
			score = 20
		case overlaps(surface, pref) || overlaps(kind, pref):
			score = 10
		default:
			score = 0
		}
	}

	switch style := strings.ToLower(player.PlayingStyle); {
	case style == "":
	case style == players.StyleAggressive && court.CourtType == TypeOutdoor,
		style == players.StyleDefensive && court.CourtType == TypeIndoor:
		score += 5
	default:
		score += 3
	}
	return score
}

func textDistanceScore(playerLocation, courtLocation string) int {
	p := strings.ToLower(strings.TrimSpace(playerLocation))
	c := strings.ToLower(strings.TrimSpace(courtLocation))
	if overlaps(p, c) {
		return 20
	}
	return 10
}

// overlaps reports whether either non-empty string contains the other.
func overlaps(a, b string) bool {
	return a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a))
}

func availabilityScore(openSlots *int) int {
	score := 10
	if openSlots == nil {
		return score
	}
	switch n := *openSlots; {
	case n >= 8:
		score += 10
	case n >= 4:
		score += 5
	case n >= 1:
		score += 2
	}
	return score
}

func valueScore(rate, average float64, averageErr error) int {
	if averageErr != nil {
		return 8
	}
	if average <= 0 {
		average = 100
	}

	switch ratio := rate / average; {
	case ratio <= 0.8:
		return 15
	case ratio <= 1.0:
		return 10
	case ratio <= 1.2:
		return 5
	default:
		return 0
	}
}

func amenityScore(player *players.Player, court *Court) int {
	score := 0
	for _, has := range []bool{court.HasParking, court.HasChangingRooms, court.HasLighting, court.HasEquipmentRental} {
		if has {
			score += 2
		}
	}
	if court.HasEquipmentRental && player.SkillLevel == players.SkillBeginner {
		score += 2
	}
	return min(score, 10)
}

// explain lists the strongest reasons to pick the court.
func explain(bd ScoreBreakdown) []string {
	var out []string
	if bd.Preference >= 15 {
		out = append(out, "Matches your court preferences")
	}
	if bd.DistanceKm != nil && *bd.DistanceKm <= 10 {
		out = append(out, fmt.Sprintf("Only %.1fkm away", *bd.DistanceKm))
	}
	if bd.Availability >= 15 {
		out = append(out, "Great availability")
	}
	if bd.Value >= 10 {
		out = append(out, "Good value for money")
	}
	if bd.Amenities >= 8 {
		out = append(out, "Excellent amenities")
	}
	if len(out) == 0 {
		out = append(out, "Available court option")
	}
	return out
}
