package geo

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxPlayerDistanceKm = 100.0
	maxCourtDistanceKm  = 30.0
)

// Venue is a court with known coordinates, as seen by meeting point search.
type Venue struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Location    string      `json:"location"`
	HourlyRate  float64     `json:"hourly_rate"`
	Coordinates Coordinates `json:"coordinates"`
}

// CourtSource lists active courts that have coordinates.
type CourtSource interface {
	ListVenues(ctx context.Context) ([]Venue, error)
}

// MeetingPoint is a court both players can reasonably reach.
type MeetingPoint struct {
	Court              Venue   `json:"court"`
	DistanceToA        float64 `json:"distance_to_player1_km"`
	DistanceToB        float64 `json:"distance_to_player2_km"`
	AverageDistance    float64 `json:"average_distance_km"`
	MaxDistance        float64 `json:"max_distance_km"`
	DistanceDifference float64 `json:"distance_difference_km"`
	PlayerDistance     float64 `json:"player_distance_km"`
	FairnessScore      float64 `json:"fairness_score"`
	ConvenienceScore   float64 `json:"convenience_score"`
	TotalScore         float64 `json:"total_score"`
}

// Service resolves locations and picks fair meeting points.
type Service struct {
	cache    LocationCache
	provider Provider
	throttle Throttle
	courts   CourtSource
}

// NewService wires the geocoding pipeline. provider may be nil, in which case
// only cached locations resolve.
func NewService(cache LocationCache, provider Provider, throttle Throttle, courts CourtSource) *Service {
	return &Service{
		cache:    cache,
		provider: provider,
		throttle: throttle,
		courts:   courts,
	}
}

// Resolve turns free text into jittered coordinates. Every failure mode of
// the provider yields nil; callers fall back to text heuristics.
func (s *Service) Resolve(ctx context.Context, text string) *Coordinates {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if c, ok := s.cache.Get(ctx, text); ok {
		return c
	}
	if s.provider == nil {
		return nil
	}

	if s.throttle != nil {
		if err := s.throttle.Wait(ctx); err != nil {
			geocodeLookups.WithLabelValues("throttled").Inc()
			logger.WarnContext(ctx, "geocoding throttle wait aborted", zap.String("location", text), zap.Error(err))
			return nil
		}
	}

	raw, err := s.provider.Geocode(ctx, text)
	if err != nil {
		if errors.Is(err, ErrNoResult) {
			geocodeLookups.WithLabelValues("no_result").Inc()
			logger.WarnContext(ctx, "location not found by geocoder", zap.String("location", text))
		} else {
			geocodeLookups.WithLabelValues("error").Inc()
			logger.WarnContext(ctx, "geocoding failed, continuing without coordinates",
				zap.String("location", text),
				zap.Error(err),
			)
		}
		return nil
	}

	jittered := Jitter(*raw, text)
	s.cache.Set(ctx, text, jittered)
	geocodeLookups.WithLabelValues("resolved").Inc()
	return &jittered
}

// SuggestMeetingPoints ranks courts by a blend of travel convenience and how
// evenly the trip is shared. Players more than 100 km apart get no
// suggestions.
func (s *Service) SuggestMeetingPoints(ctx context.Context, a, b Coordinates, maxResults int) ([]MeetingPoint, error) {
	playerDistance := *DistanceKm(&a, &b)
	if playerDistance > maxPlayerDistanceKm {
		return []MeetingPoint{}, nil
	}
	if s.courts == nil {
		return []MeetingPoint{}, nil
	}

	venues, err := s.courts.ListVenues(ctx)
	if err != nil {
		return nil, err
	}

	maxDetour := 15.0
	if playerDistance > 20 {
		maxDetour = 0.4 * playerDistance
	}
	unfairnessAllowance := 20.0
	if playerDistance > 10 {
		unfairnessAllowance = 0.6 * playerDistance
	}

	points := make([]MeetingPoint, 0)
	for _, v := range venues {
		toA := *DistanceKm(&a, &v.Coordinates)
		toB := *DistanceKm(&b, &v.Coordinates)

		if toA > maxCourtDistanceKm || toB > maxCourtDistanceKm {
			continue
		}
		farthest := math.Max(toA, toB)
		if farthest > playerDistance+maxDetour {
			continue
		}
		diff := math.Abs(toA - toB)
		if diff > unfairnessAllowance {
			continue
		}

		avg := (toA + toB) / 2
		fairness := math.Max(0, 100-3*diff)
		convenience := math.Max(0, 100-4*avg)

		points = append(points, MeetingPoint{
			Court:              v,
			DistanceToA:        toA,
			DistanceToB:        toB,
			AverageDistance:    round2(avg),
			MaxDistance:        farthest,
			DistanceDifference: round2(diff),
			PlayerDistance:     playerDistance,
			FairnessScore:      round2(fairness),
			ConvenienceScore:   round2(convenience),
			TotalScore:         round2(0.6*convenience + 0.4*fairness),
		})
	}
	meetingPointCandidates.Observe(float64(len(points)))

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].TotalScore > points[j].TotalScore
	})
	if maxResults > 0 && len(points) > maxResults {
		points = points[:maxResults]
	}
	return points, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
