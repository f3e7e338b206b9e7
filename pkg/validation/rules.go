package validation

// Vocabularies accepted by the custom tags. Values are lowercase; input is
// compared case-insensitively.
var (
	SkillLevels    = []string{"beginner", "intermediate", "advanced", "professional"}
	Availabilities = []string{"weekdays", "weekends", "evenings", "mornings", "flexible"}
	CourtTypes     = []string{"indoor", "outdoor"}
	Surfaces       = []string{"hard", "clay", "grass", "artificial"}
	CourtSortModes = []string{"recommended", "price_low", "price_high", "distance", "name", "location"}
)
