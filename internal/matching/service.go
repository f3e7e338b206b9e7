package matching

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/courtmate/tennis-platform/pkg/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Service finds compatible playing partners
type Service struct {
	players  PlayerRepository
	resolver LocationResolver
	nearby   NearbyIndex
	scorer   *Scorer
}

// NewService creates a new matching service. nearby may be nil.
func NewService(players PlayerRepository, resolver LocationResolver, nearby NearbyIndex) *Service {
	return &Service{
		players:  players,
		resolver: resolver,
		nearby:   nearby,
		scorer:   NewScorer(),
	}
}

// FindMatches returns up to limit candidates ordered by compatibility.
func (s *Service) FindMatches(ctx context.Context, playerID uuid.UUID, filters MatchFilters, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = defaultMatchLimit
	}

	var matches []Match
	err := tracing.TraceBusinessLogic(ctx, "matching", "FindMatches",
		[]attribute.KeyValue{tracing.PlayerIDKey.String(playerID.String())},
		func(ctx context.Context) error {
			found, err := s.scoreCandidates(ctx, playerID, filters)
			if err != nil {
				return err
			}
			if len(found) > limit {
				found = found[:limit]
			}
			matches = found
			return nil
		})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// scoreCandidates returns every surviving candidate, best first.
func (s *Service) scoreCandidates(ctx context.Context, playerID uuid.UUID, filters MatchFilters) ([]Match, error) {
	me, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	query := players.CandidateQuery{
		ExcludeID:    playerID,
		Location:     strings.TrimSpace(filters.Location),
		Availability: filters.Availability,
	}
	if filters.SkillLevel != "" {
		query.SkillLevels = filters.SkillLevel.Adjacent()
		if query.SkillLevels == nil {
			return nil, common.NewValidationError(fmt.Sprintf("unknown skill level %q", filters.SkillLevel))
		}
	}

	candidates, err := s.players.ListCandidates(ctx, query)
	if err != nil {
		return nil, err
	}
	candidatesEvaluated.Observe(float64(len(candidates)))

	myCoords := s.ensureCoordinates(ctx, me)
	if myCoords != nil {
		s.track(ctx, me.ID, *myCoords)
	}

	matches := make([]Match, 0, len(candidates))
	for _, candidate := range candidates {
		theirCoords := s.ensureCoordinates(ctx, candidate)
		distance := geo.DistanceKm(myCoords, theirCoords)
		if distance != nil && *distance > maxMatchDistanceKm {
			candidatesSkipped.WithLabelValues("distance").Inc()
			continue
		}

		bd := s.scorer.Score(me, candidate, distance)
		if bd.Total < minScore {
			candidatesSkipped.WithLabelValues("score").Inc()
			continue
		}

		matches = append(matches, Match{
			Player:        candidate,
			Score:         bd.Total,
			DistanceKm:    distance,
			Explanation:   bd.Explanation,
			Breakdown:     bd,
			ActivityLevel: candidate.ActivityLevel(),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

// ensureCoordinates geocodes a player without a stored position and persists
// the result. Persistence failures only cost a repeat lookup later.
func (s *Service) ensureCoordinates(ctx context.Context, p *players.Player) *geo.Coordinates {
	if c := p.Coordinates(); c != nil {
		return c
	}
	if s.resolver == nil {
		return nil
	}

	c := s.resolver.Resolve(ctx, p.PreferredLocation)
	if c == nil {
		return nil
	}

	p.SetCoordinates(*c)
	if err := s.players.UpdateCoordinates(ctx, p.ID, *c); err != nil {
		logger.WarnContext(ctx, "failed to persist geocoded player location",
			zap.String("player_id", p.ID.String()),
			zap.Error(err),
		)
	}
	s.track(ctx, p.ID, *c)
	return c
}

func (s *Service) track(ctx context.Context, playerID uuid.UUID, c geo.Coordinates) {
	if s.nearby == nil {
		return
	}
	if err := s.nearby.Track(ctx, playerID, c); err != nil {
		logger.WarnContext(ctx, "failed to index player position", zap.Error(err))
	}
}

// SuggestPartners returns highly compatible players with a reason and a
// suggested next step.
func (s *Service) SuggestPartners(ctx context.Context, playerID uuid.UUID, limit int) ([]PartnerSuggestion, error) {
	if limit <= 0 {
		limit = 5
	}

	matches, err := s.FindMatches(ctx, playerID, MatchFilters{}, limit*2)
	if err != nil {
		return nil, err
	}

	suggestions := make([]PartnerSuggestion, 0, limit)
	for _, m := range matches {
		if m.Score < partnerScoreMinimum {
			continue
		}
		suggestions = append(suggestions, PartnerSuggestion{
			Player:          m.Player,
			Score:           m.Score,
			DistanceKm:      m.DistanceKm,
			Reason:          matchReason(m),
			SuggestedAction: nextAction(m),
		})
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions, nil
}

func matchReason(m Match) string {
	var reasons []string
	switch {
	case m.Score >= 80:
		reasons = append(reasons, "Very good match")
	default:
		reasons = append(reasons, "Good potential match")
	}
	if m.DistanceKm != nil && *m.DistanceKm <= 10 {
		reasons = append(reasons, "nearby location")
	}
	if m.ActivityLevel == players.ActivityHigh {
		reasons = append(reasons, "active player")
	}
	if len(reasons) < 3 && len(m.Explanation) > 0 && m.Explanation[0] != "Similar playing style" {
		reasons = append(reasons, strings.ToLower(m.Explanation[0]))
	}
	return strings.Join(reasons, ", ")
}

func nextAction(m Match) string {
	switch {
	case m.ActivityLevel == players.ActivityHigh:
		return "Send a message to arrange a game"
	case m.Score >= 80:
		return "View their profile and send an introduction"
	default:
		return "Check out their playing schedule"
	}
}

// MatchStatistics reports how many compatible partners a player has and what
// would widen the pool.
func (s *Service) MatchStatistics(ctx context.Context, playerID uuid.UUID) (*Statistics, error) {
	me, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	pool, err := s.players.ListCandidates(ctx, players.CandidateQuery{ExcludeID: playerID})
	if err != nil {
		return nil, err
	}
	total := len(pool)

	compatible, err := s.scoreCandidates(ctx, playerID, MatchFilters{})
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalPossibleMatches: total,
		CompatibleMatches:    len(compatible),
		CompatibilityRate:    math.Round(float64(len(compatible))/float64(max(1, total))*1000) / 10,
		RecentActivity: ActivitySummary{
			BookingsLast30Days: me.RecentBookings,
			ActivityLevel:      me.ActivityLevel(),
		},
		Recommendations: Recommendations{
			ImproveProfile: float64(len(compatible)) < float64(total)*0.3,
			BeMoreFlexible: len(compatible) < 5,
			ExpandLocation: me.PreferredLocation != "" && len(compatible) < 10,
		},
	}

	if c := s.ensureCoordinates(ctx, me); c != nil && s.nearby != nil {
		stats.NearbyPlayers = s.countNearby(ctx, *c, playerID, pool)
	}

	return stats, nil
}

// countNearby counts indexed players near c that are still in the active
// pool. Index entries for anyone else are dropped.
func (s *Service) countNearby(ctx context.Context, c geo.Coordinates, playerID uuid.UUID, pool []*players.Player) int {
	ids, err := s.nearby.NearbyPlayers(ctx, c, nearbyRadiusKm, playerID)
	if err != nil {
		logger.WarnContext(ctx, "failed to count nearby players", zap.Error(err))
		return 0
	}

	active := make(map[uuid.UUID]struct{}, len(pool))
	for _, p := range pool {
		active[p.ID] = struct{}{}
	}

	count := 0
	for _, id := range ids {
		if _, ok := active[id]; ok {
			count++
			continue
		}
		if err := s.nearby.Forget(ctx, id); err != nil {
			logger.WarnContext(ctx, "failed to drop inactive player from index",
				zap.String("player_id", id.String()), zap.Error(err))
		}
	}
	return count
}
