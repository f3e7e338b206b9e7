package courts

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/pkg/cache"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/courtmate/tennis-platform/pkg/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultLimit        = 10
	trendingWindow      = 7 * 24 * time.Hour
	trendingResultLimit = 10
)

var sortOptions = []SortOption{
	{Value: SortRecommended, Label: "Recommended for you"},
	{Value: SortPriceLow, Label: "Price: low to high"},
	{Value: SortPriceHigh, Label: "Price: high to low"},
	{Value: SortDistance, Label: "Distance: nearest first"},
	{Value: SortName, Label: "Name: A to Z"},
	{Value: SortLocation, Label: "Location: A to Z"},
}

// Service recommends and lists courts
type Service struct {
	repo     RepositoryInterface
	players  PlayerLookup
	resolver LocationResolver
	cache    *cache.Manager
	scorer   *Scorer
	now      func() time.Time
}

// NewService creates a new courts service. resolver and cache may be nil.
func NewService(repo RepositoryInterface, players PlayerLookup, resolver LocationResolver, cacheManager *cache.Manager) *Service {
	return &Service{
		repo:     repo,
		players:  players,
		resolver: resolver,
		cache:    cacheManager,
		scorer:   NewScorer(),
		now:      time.Now,
	}
}

// SortOptions lists the supported sort modes.
func (s *Service) SortOptions() []SortOption {
	return sortOptions
}

// GetCourt retrieves a court by ID.
func (s *Service) GetCourt(ctx context.Context, id uuid.UUID) (*Court, error) {
	return s.repo.GetByID(ctx, id)
}

// IsSlotAvailable reports whether a slot is free of pending or confirmed
// bookings.
func (s *Service) IsSlotAvailable(ctx context.Context, courtID uuid.UUID, date time.Time, start, end TimeOfDay) (bool, error) {
	return s.repo.IsSlotFree(ctx, courtID, date, start, end)
}

// Recommend scores every active court matching filters for the player and
// returns them in sortBy order.
func (s *Service) Recommend(ctx context.Context, playerID uuid.UUID, filters Filters, sortBy SortMode, limit int) ([]Recommendation, error) {
	if sortBy == "" {
		sortBy = SortRecommended
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	var recs []Recommendation
	err := tracing.TraceBusinessLogic(ctx, "courts", "Recommend",
		[]attribute.KeyValue{
			tracing.PlayerIDKey.String(playerID.String()),
			attribute.String("sort_by", string(sortBy)),
		},
		func(ctx context.Context) error {
			var err error
			recs, err = s.recommend(ctx, playerID, filters, sortBy)
			return err
		})
	if err != nil {
		return nil, err
	}

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *Service) recommend(ctx context.Context, playerID uuid.UUID, filters Filters, sortBy SortMode) ([]Recommendation, error) {
	player, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	playerCoords := player.Coordinates()
	if playerCoords == nil && s.resolver != nil {
		playerCoords = s.resolver.Resolve(ctx, player.PreferredLocation)
	}
	// Without a position the distance cap cannot be checked and is ignored.
	radius := 0.0
	if filters.MaxDistanceKm > 0 && playerCoords != nil {
		radius = filters.MaxDistanceKm
		filters.Area = areaAround(*playerCoords, radius)
	}

	courts, err := s.repo.ListActive(ctx, filters)
	if err != nil {
		return nil, err
	}
	if len(courts) == 0 {
		return []Recommendation{}, nil
	}

	sc := ScoreContext{}
	sc.AverageRate, sc.AverageRateErr = s.averageRate(ctx)

	var bookings map[uuid.UUID][]Booking
	if filters.Date != nil {
		bookings, err = s.repo.ActiveBookingsOn(ctx, *filters.Date, nil)
		if err != nil {
			return nil, err
		}
	}

	recs := make([]Recommendation, 0, len(courts))
	for _, court := range courts {
		courtCtx := sc
		if filters.Date != nil {
			open := len(openSlots(bookings[court.ID]))
			courtCtx.AvailableSlots = &open
		}

		bd := s.scorer.Score(player, court, playerCoords, courtCtx)
		if sortBy == SortRecommended && bd.Total < recommendedMinimum {
			continue
		}
		if radius > 0 && (bd.DistanceKm == nil || *bd.DistanceKm > radius) {
			continue
		}
		recs = append(recs, Recommendation{
			Court:          court,
			Score:          bd.Total,
			DistanceKm:     bd.DistanceKm,
			AvailableSlots: courtCtx.AvailableSlots,
			Breakdown:      bd,
			Explanation:    explain(bd),
		})
	}

	sortRecommendations(recs, sortBy)
	return recs, nil
}

// averageRate is cached briefly; every recommendation run needs it.
func (s *Service) averageRate(ctx context.Context) (float64, error) {
	var avg float64
	err := s.cache.GetOrSet(ctx, cache.Keys.AverageCourtRate(), cache.TTL.Short(), &avg, func() (interface{}, error) {
		return s.repo.AverageActiveRate(ctx)
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to get average court rate", zap.Error(err))
		return 0, err
	}
	return avg, nil
}

func sortRecommendations(recs []Recommendation, sortBy SortMode) {
	var less func(a, b Recommendation) bool
	switch sortBy {
	case SortPriceLow:
		less = func(a, b Recommendation) bool { return a.Court.HourlyRate < b.Court.HourlyRate }
	case SortPriceHigh:
		less = func(a, b Recommendation) bool { return a.Court.HourlyRate > b.Court.HourlyRate }
	case SortDistance:
		less = func(a, b Recommendation) bool {
			switch {
			case a.DistanceKm == nil:
				return false
			case b.DistanceKm == nil:
				return true
			default:
				return *a.DistanceKm < *b.DistanceKm
			}
		}
	case SortName:
		less = func(a, b Recommendation) bool {
			return strings.ToLower(a.Court.Name) < strings.ToLower(b.Court.Name)
		}
	case SortLocation:
		less = func(a, b Recommendation) bool {
			return strings.ToLower(a.Court.Location) < strings.ToLower(b.Court.Location)
		}
	default:
		less = func(a, b Recommendation) bool { return a.Score > b.Score }
	}

	sort.SliceStable(recs, func(i, j int) bool { return less(recs[i], recs[j]) })
}

// ListAll browses active courts without scoring; ordering happens in SQL.
func (s *Service) ListAll(ctx context.Context, filters Filters, sortBy SortMode, limit int) ([]*Court, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return s.repo.ListSorted(ctx, filters, sortBy, limit)
}

// openSlots returns the free one-hour slots of a business day given the
// occupying bookings.
func openSlots(bookings []Booking) []Slot {
	var slots []Slot
	for hour := openingHour; hour < closingHour; hour++ {
		start, end := At(hour, 0), At(hour+1, 0)
		free := true
		for _, b := range bookings {
			if b.Status.Occupies() && Overlaps(start, end, b.StartTime, b.EndTime) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, Slot{StartTime: start, EndTime: end})
		}
	}
	return slots
}

// AvailableSlots lists the free hourly slots of a court on date.
func (s *Service) AvailableSlots(ctx context.Context, courtID uuid.UUID, date time.Time) ([]Slot, error) {
	if _, err := s.repo.GetByID(ctx, courtID); err != nil {
		return nil, err
	}

	bookings, err := s.repo.ActiveBookingsOn(ctx, date, &courtID)
	if err != nil {
		return nil, err
	}

	slots := openSlots(bookings[courtID])
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// TrendingLocations ranks neighbourhoods by the last week's bookings.
// Courts are grouped by H3 cell, or by location text when unplaced.
func (s *Service) TrendingLocations(ctx context.Context) ([]TrendingLocation, error) {
	var trending []TrendingLocation
	err := s.cache.GetOrSet(ctx, cache.Keys.TrendingLocations(), cache.TTL.Medium(), &trending, func() (interface{}, error) {
		return s.computeTrending(ctx)
	})
	if err != nil {
		return nil, err
	}
	return trending, nil
}

func (s *Service) computeTrending(ctx context.Context) ([]TrendingLocation, error) {
	activity, err := s.repo.RecentActivity(ctx, s.now().Add(-trendingWindow))
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*TrendingLocation)
	var order []string
	for _, a := range activity {
		key, cell := "", ""
		if c := a.Court.Coordinates(); c != nil {
			cell = geo.AreaCell(*c)
			key = "cell:" + cell
		}
		if cell == "" {
			key = "text:" + strings.ToLower(strings.TrimSpace(a.Court.Location))
		}

		g, ok := groups[key]
		if !ok {
			g = &TrendingLocation{Location: a.Court.Location, AreaCell: cell}
			if cell != "" {
				g.Center = geo.AreaCenter(cell)
			}
			groups[key] = g
			order = append(order, key)
		}
		g.Bookings += a.Bookings
		g.Courts++
	}

	trending := make([]TrendingLocation, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		g.TrendScore = g.Bookings*10 + g.Courts*5
		trending = append(trending, *g)
	}

	sort.SliceStable(trending, func(i, j int) bool {
		return trending[i].TrendScore > trending[j].TrendScore
	})
	if len(trending) > trendingResultLimit {
		trending = trending[:trendingResultLimit]
	}
	return trending, nil
}
