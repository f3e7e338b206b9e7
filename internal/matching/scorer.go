package matching

import (
	"fmt"
	"strings"

	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/internal/players"
)

const (
	minScore = 25
	maxScore = 85
)

// Breakdown is the per-component compatibility between two players.
type Breakdown struct {
	Skill        int      `json:"skill"`
	Geography    int      `json:"geography"`
	Availability int      `json:"availability"`
	Activity     int      `json:"activity"`
	Personality  int      `json:"personality"`
	Raw          int      `json:"raw"`
	Total        int      `json:"total"`
	Explanation  []string `json:"explanation"`
}

// metroAreas groups satellite cities with their metro centre. Lookup walks
// the list in order, so text naming two metros resolves to the earlier one.
var metroAreas = []struct {
	metro  string
	cities []string
}{
	{"tel aviv", []string{"tel aviv", "ramat gan", "givatayim", "bnei brak", "herzliya", "holon", "bat yam", "petah tikva", "rishon lezion"}},
	{"jerusalem", []string{"jerusalem", "mevaseret zion", "beit shemesh", "maale adumim"}},
	{"haifa", []string{"haifa", "kiryat ata", "kiryat bialik", "kiryat motzkin", "nesher", "tirat carmel"}},
}

type interest string

const (
	interestCompetitive interest = "competitive"
	interestSocial      interest = "social"
	interestLearning    interest = "learning"
)

var interestOrder = []interest{interestCompetitive, interestSocial, interestLearning}

var interestKeywords = map[interest][]string{
	interestCompetitive: {"competitive", "compete", "tournament", "match play", "ranking", "serious", "league"},
	interestSocial:      {"social", "fun", "friendly", "casual", "relax", "meet new", "doubles"},
	interestLearning:    {"learn", "improve", "practice", "coach", "lesson", "develop", "drill"},
}

// pairKey orders two availability tags so lookups are symmetric.
func pairKey(a, b players.Availability) [2]players.Availability {
	if a > b {
		a, b = b, a
	}
	return [2]players.Availability{a, b}
}

var availabilityPairs = map[[2]players.Availability]int{
	pairKey(players.AvailabilityWeekdays, players.AvailabilityEvenings): 15,
	pairKey(players.AvailabilityWeekends, players.AvailabilityEvenings): 12,
	pairKey(players.AvailabilityWeekdays, players.AvailabilityWeekends): 8,
	pairKey(players.AvailabilityMornings, players.AvailabilityWeekends): 12,
	pairKey(players.AvailabilityMornings, players.AvailabilityWeekdays): 10,
}

// Scorer computes player-to-player compatibility. It never fails: missing
// profile data scores neutral.
type Scorer struct{}

// NewScorer creates a compatibility scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score rates how well b suits a as a partner. distanceKm is nil when either
// position is unknown.
func (s *Scorer) Score(a, b *players.Player, distanceKm *float64) Breakdown {
	bd := Breakdown{
		Skill:        skillScore(a.SkillLevel, b.SkillLevel),
		Geography:    geographyScore(a.PreferredLocation, b.PreferredLocation, distanceKm),
		Availability: availabilityScore(a.Availability, b.Availability),
		Activity:     activityScore(a.RecentBookings, b.RecentBookings),
	}

	shared, personality := personalityScore(a.Bio, b.Bio)
	bd.Personality = personality

	bd.Raw = bd.Skill + bd.Geography + bd.Availability + bd.Activity + bd.Personality
	bd.Total = min(max(bd.Raw, minScore), maxScore)
	bd.Explanation = explain(a, b, distanceKm, shared)
	return bd
}

func skillScore(a, b players.SkillLevel) int {
	ia, okA := a.Ordinal()
	ib, okB := b.Ordinal()
	if !okA || !okB {
		return 15
	}

	switch diff := abs(ia - ib); diff {
	case 0:
		return 35
	case 1:
		return 28
	case 2:
		return 15
	default:
		return 5
	}
}

func geographyScore(locA, locB string, distanceKm *float64) int {
	if distanceKm != nil {
		return geo.ProximityPoints(*distanceKm)
	}

	a := strings.ToLower(strings.TrimSpace(locA))
	b := strings.ToLower(strings.TrimSpace(locB))
	switch {
	case a == "" || b == "":
		return 12
	case a == b:
		return 25
	case sameMetro(a, b):
		return 20
	default:
		return 8
	}
}

func metroOf(location string) string {
	for _, area := range metroAreas {
		for _, city := range area.cities {
			if strings.Contains(location, city) {
				return area.metro
			}
		}
	}
	return ""
}

func sameMetro(a, b string) bool {
	ma := metroOf(a)
	return ma != "" && ma == metroOf(b)
}

func availabilityScore(a, b players.Availability) int {
	switch {
	case a == "" || b == "":
		return 10
	case a == b:
		return 20
	case a == players.AvailabilityFlexible || b == players.AvailabilityFlexible:
		return 18
	}
	if score, ok := availabilityPairs[pairKey(a, b)]; ok {
		return score
	}
	return 6
}

var activityRank = map[players.ActivityLevel]int{
	players.ActivityLow:    0,
	players.ActivityMedium: 1,
	players.ActivityHigh:   2,
}

func activityScore(bookingsA, bookingsB int) int {
	switch {
	case bookingsA == 0 && bookingsB == 0:
		return 7
	case bookingsA == 0 || bookingsB == 0:
		return 5
	}

	la := activityRank[players.ActivityLevelFor(bookingsA)]
	lb := activityRank[players.ActivityLevelFor(bookingsB)]
	switch abs(la - lb) {
	case 0:
		return 10
	case 1:
		return 8
	default:
		return 6
	}
}

func interestsIn(bio string) map[interest]bool {
	lower := strings.ToLower(bio)
	found := make(map[interest]bool)
	for bucket, words := range interestKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				found[bucket] = true
				break
			}
		}
	}
	return found
}

// personalityScore returns the shared interest buckets in a stable order and
// the score they earn.
func personalityScore(bioA, bioB string) ([]interest, int) {
	if strings.TrimSpace(bioA) == "" || strings.TrimSpace(bioB) == "" {
		return nil, 6
	}

	ia, ib := interestsIn(bioA), interestsIn(bioB)
	var shared []interest
	for _, bucket := range interestOrder {
		if ia[bucket] && ib[bucket] {
			shared = append(shared, bucket)
		}
	}

	switch {
	case len(shared) >= 2:
		return shared, 10
	case len(shared) == 1:
		return shared, 8
	case len(ia) > 0 && len(ib) > 0:
		return nil, 4
	default:
		return nil, 5
	}
}

func explain(a, b *players.Player, distanceKm *float64, shared []interest) []string {
	var out []string

	ia, okA := a.SkillLevel.Ordinal()
	ib, okB := b.SkillLevel.Ordinal()
	if okA && okB {
		switch abs(ia - ib) {
		case 0:
			out = append(out, "Same skill level")
		case 1:
			out = append(out, "Similar skill level")
		}
	}

	if distanceKm != nil {
		if *distanceKm <= 10 {
			out = append(out, fmt.Sprintf("Only %.1fkm apart", *distanceKm))
		}
	} else if geographyScore(a.PreferredLocation, b.PreferredLocation, nil) >= 20 {
		out = append(out, "Same area")
	}

	if availabilityScore(a.Availability, b.Availability) >= 18 {
		out = append(out, "Compatible schedules")
	}

	if len(shared) > 0 {
		out = append(out, fmt.Sprintf("Both enjoy %s tennis", shared[0]))
	}

	if len(out) == 0 {
		return []string{"Similar playing style"}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
