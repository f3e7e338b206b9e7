package matching

import (
	"testing"

	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func km(v float64) *float64 { return &v }

func player(skill players.SkillLevel, location string, availability players.Availability, bookings int, bio string) *players.Player {
	return &players.Player{
		SkillLevel:        skill,
		PreferredLocation: location,
		Availability:      availability,
		RecentBookings:    bookings,
		Bio:               bio,
	}
}

// ========================================
// TESTS: components
// ========================================

func TestSkillScore(t *testing.T) {
	tests := []struct {
		a, b players.SkillLevel
		want int
	}{
		{players.SkillIntermediate, players.SkillIntermediate, 35},
		{players.SkillBeginner, players.SkillIntermediate, 28},
		{players.SkillBeginner, players.SkillAdvanced, 15},
		{players.SkillBeginner, players.SkillProfessional, 5},
		{players.SkillAdvanced, "", 15},
		{"wizard", players.SkillAdvanced, 15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, skillScore(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func TestGeographyScore(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		distance *float64
		want     int
	}{
		{"distance wins over text", "Tel Aviv", "Haifa", km(1.5), 25},
		{"far distance", "Tel Aviv", "Tel Aviv", km(60), 0},
		{"missing text", "", "Haifa", nil, 12},
		{"exact text ignoring case", "Tel Aviv", " tel aviv", nil, 25},
		{"same metro", "Ramat Gan", "Holon", nil, 20},
		{"different metro", "Haifa", "Jerusalem", nil, 8},
		{"unknown towns", "Eilat", "Arad", nil, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, geographyScore(tt.a, tt.b, tt.distance))
		})
	}
}

func TestMetroOf_TwoMetrosResolveStably(t *testing.T) {
	const both = "haifa office, lives in holon"
	for i := 0; i < 50; i++ {
		require.Equal(t, "tel aviv", metroOf(both))
		require.Equal(t, 20, geographyScore(both, "Bat Yam", nil))
		require.Equal(t, 8, geographyScore(both, "Nesher", nil))
	}
	assert.Equal(t, "", metroOf("arad"))
}

func TestAvailabilityScore(t *testing.T) {
	tests := []struct {
		a, b players.Availability
		want int
	}{
		{"", players.AvailabilityWeekends, 10},
		{players.AvailabilityWeekends, players.AvailabilityWeekends, 20},
		{players.AvailabilityFlexible, players.AvailabilityMornings, 18},
		{players.AvailabilityEvenings, players.AvailabilityWeekdays, 15},
		{players.AvailabilityWeekends, players.AvailabilityEvenings, 12},
		{players.AvailabilityWeekends, players.AvailabilityWeekdays, 8},
		{players.AvailabilityWeekends, players.AvailabilityMornings, 12},
		{players.AvailabilityMornings, players.AvailabilityWeekdays, 10},
		{players.AvailabilityMornings, players.AvailabilityEvenings, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, availabilityScore(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
		assert.Equal(t, tt.want, availabilityScore(tt.b, tt.a), "%s vs %s", tt.b, tt.a)
	}
}

func TestActivityScore(t *testing.T) {
	assert.Equal(t, 7, activityScore(0, 0))
	assert.Equal(t, 5, activityScore(0, 6))
	assert.Equal(t, 10, activityScore(6, 9))
	assert.Equal(t, 8, activityScore(3, 6))
	assert.Equal(t, 6, activityScore(1, 6))
}

func TestPersonalityScore(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"missing bio", "", "I love tournaments", 6},
		{"two shared buckets", "Competitive player who wants to improve", "Tournament regular, always trying to learn", 10},
		{"one shared bucket", "Casual and friendly games", "Looking for fun weekend hits", 8},
		{"no overlap", "Competitive league player", "Here to learn the basics", 4},
		{"no keywords", "Software engineer", "Here to learn", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := personalityScore(tt.a, tt.b)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ========================================
// TESTS: Score
// ========================================

func TestScore_ClampedForAllCombinations(t *testing.T) {
	skills := []players.SkillLevel{"", players.SkillBeginner, players.SkillIntermediate, players.SkillProfessional}
	locations := []string{"", "Tel Aviv", "Holon", "Haifa"}
	availabilities := []players.Availability{"", players.AvailabilityWeekdays, players.AvailabilityFlexible, players.AvailabilityMornings, players.AvailabilityEvenings}
	bookings := []int{0, 1, 3, 7}
	bios := []string{"", "competitive tournament player", "social and fun", "nothing relevant"}
	distances := []*float64{nil, km(0), km(12), km(49), km(80)}

	scorer := NewScorer()
	for _, sa := range skills {
		for _, sb := range skills {
			for _, la := range locations {
				for _, av := range availabilities {
					for _, bk := range bookings {
						for _, bio := range bios {
							for _, d := range distances {
								a := player(sa, la, av, bk, bio)
								b := player(sb, "Tel Aviv", players.AvailabilityEvenings, 2, "learning to compete")
								bd := scorer.Score(a, b, d)
								if bd.Total < 25 || bd.Total > 85 {
									t.Fatalf("score %d out of range for %+v vs %+v", bd.Total, a, b)
								}
								assert.LessOrEqual(t, len(bd.Explanation), 3)
							}
						}
					}
				}
			}
		}
	}
}

func TestScore_Extremes(t *testing.T) {
	scorer := NewScorer()

	best := scorer.Score(
		player(players.SkillAdvanced, "Tel Aviv", players.AvailabilityWeekends, 6, "competitive and social"),
		player(players.SkillAdvanced, "Tel Aviv", players.AvailabilityWeekends, 8, "social tournament fan"),
		km(1),
	)
	assert.Equal(t, 100, best.Raw)
	assert.Equal(t, 85, best.Total)

	worst := scorer.Score(
		player(players.SkillBeginner, "Eilat", players.AvailabilityMornings, 1, "competitive"),
		player(players.SkillProfessional, "Haifa", players.AvailabilityEvenings, 9, "here to learn"),
		km(70),
	)
	assert.Equal(t, 5+0+6+6+4, worst.Raw)
	assert.Equal(t, 25, worst.Total)
}

func TestScore_Explanation(t *testing.T) {
	scorer := NewScorer()

	bd := scorer.Score(
		player(players.SkillIntermediate, "Tel Aviv", players.AvailabilityWeekends, 0, "competitive"),
		player(players.SkillIntermediate, "Tel Aviv", players.AvailabilityWeekends, 0, "tournament player"),
		km(3.2),
	)
	assert.Equal(t, []string{"Same skill level", "Only 3.2km apart", "Compatible schedules"}, bd.Explanation)

	textOnly := scorer.Score(
		player(players.SkillBeginner, "Holon", players.AvailabilityMornings, 0, ""),
		player(players.SkillAdvanced, "Bat Yam", players.AvailabilityEvenings, 0, ""),
		nil,
	)
	assert.Equal(t, []string{"Same area"}, textOnly.Explanation)

	fallback := scorer.Score(
		player(players.SkillBeginner, "Eilat", players.AvailabilityMornings, 0, ""),
		player(players.SkillProfessional, "Haifa", players.AvailabilityEvenings, 0, ""),
		km(40),
	)
	assert.Equal(t, []string{"Similar playing style"}, fallback.Explanation)
}
