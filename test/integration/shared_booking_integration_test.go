//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/courtmate/tennis-platform/internal/courts"
	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/internal/matching"
	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/courtmate/tennis-platform/internal/sharedbooking"
	"github.com/courtmate/tennis-platform/pkg/cache"
	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/courtmate/tennis-platform/pkg/middleware"
	"github.com/courtmate/tennis-platform/test/helpers"
)

const jwtSecret = "integration-secret"

type apiResponse[T any] struct {
	Success bool              `json:"success"`
	Data    T                 `json:"data"`
	Error   *common.ErrorInfo `json:"error"`
	Meta    *common.Meta      `json:"meta,omitempty"`
}

func TestMain(m *testing.M) {
	if err := logger.Init("test", "error"); err != nil {
		panic(err)
	}
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	code := m.Run()
	_ = logger.Sync()
	os.Exit(code)
}

// SharedBookingSuite drives the negotiation API against PostgreSQL.
type SharedBookingSuite struct {
	suite.Suite
	pool    *pgxpool.Pool
	server  *httptest.Server
	service *sharedbooking.Service

	alice, bob, carol, dave uuid.UUID
	center, harbour         uuid.UUID
	date                    string
}

func TestSharedBookingSuite(t *testing.T) {
	suite.Run(t, new(SharedBookingSuite))
}

func (s *SharedBookingSuite) SetupSuite() {
	s.pool = helpers.SetupTestDatabase(s.T())

	bookingCfg := config.BookingConfig{
		ProposalTTLHours:   48,
		ExpirySweepSeconds: 60,
		Timezone:           "UTC",
		DefaultAdvanceDays: 30,
	}

	playerRepo := players.NewRepository(s.pool)
	courtRepo := courts.NewRepository(s.pool)
	cacheManager := cache.NewManager(nil)
	geoService := geo.NewService(
		geo.NewTieredCache(geo.NewMemoryCache(), cacheManager, time.Hour),
		nil,
		geo.NewLocalThrottle(1),
		courtRepo,
	)
	courtService := courts.NewService(courtRepo, playerRepo, geoService, cacheManager)
	s.service = sharedbooking.NewService(
		sharedbooking.NewRepository(s.pool), playerRepo, courtService, geoService, bookingCfg)

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.ErrorHandler())
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	courts.NewHandler(courtService).RegisterRoutes(api)
	matching.NewHandler(matching.NewService(playerRepo, geoService, nil)).RegisterRoutes(api)
	sharedbooking.NewHandler(s.service).RegisterRoutes(api)

	s.server = httptest.NewServer(router)
}

func (s *SharedBookingSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
}

func (s *SharedBookingSuite) SetupTest() {
	helpers.ResetTables(s.T(), s.pool, "notifications", "shared_bookings", "bookings", "courts", "players")

	lat, lng := 51.5072, -0.1276
	s.alice = helpers.InsertPlayer(s.T(), s.pool, helpers.PlayerSeed{
		Name: "Alice", SkillLevel: "intermediate", Location: "London", Latitude: &lat, Longitude: &lng, Availability: "evenings",
	})
	s.bob = helpers.InsertPlayer(s.T(), s.pool, helpers.PlayerSeed{
		Name: "Bob", SkillLevel: "intermediate", Location: "London", Availability: "flexible",
	})
	s.carol = helpers.InsertPlayer(s.T(), s.pool, helpers.PlayerSeed{
		Name: "Carol", SkillLevel: "advanced", Location: "London", Availability: "evenings",
	})
	s.dave = helpers.InsertPlayer(s.T(), s.pool, helpers.PlayerSeed{
		Name: "Dave", SkillLevel: "beginner", Location: "Bristol", Availability: "weekends",
	})

	s.center = helpers.InsertCourt(s.T(), s.pool, helpers.CourtSeed{
		Name: "Central Tennis Center", Location: "London", Latitude: 51.51, Longitude: -0.13, HourlyRate: 120,
	})
	s.harbour = helpers.InsertCourt(s.T(), s.pool, helpers.CourtSeed{
		Name: "Harbour Courts", Location: "London", Latitude: 51.50, Longitude: -0.02, Surface: "clay", HourlyRate: 90,
	})

	s.date = time.Now().UTC().AddDate(0, 0, 5).Format("2006-01-02")
}

func (s *SharedBookingSuite) propose(from, to, court uuid.UUID, start, end string) apiResponse[sharedbooking.SharedBooking] {
	return call[sharedbooking.SharedBooking](s.T(), s.server, from, http.MethodPost, "/api/v1/shared-bookings", map[string]interface{}{
		"partner_id": to,
		"court_id":   court,
		"date":       s.date,
		"start_time": start,
		"end_time":   end,
		"notes":      "evening hit",
	})
}

// ============================================
// NEGOTIATION FLOWS
// ============================================

func (s *SharedBookingSuite) TestProposeAcceptConfirm() {
	t := s.T()

	created := s.propose(s.alice, s.bob, s.center, "18:00", "20:00")
	require.True(t, created.Success, "%+v", created.Error)
	require.Equal(t, sharedbooking.StatusProposed, created.Data.Status)
	require.InDelta(t, 240.0, created.Data.TotalCost, 0.001)
	id := created.Data.ID

	pending := call[[]sharedbooking.PlayerBooking](t, s.server, s.bob, http.MethodGet, "/api/v1/shared-bookings/pending", nil)
	require.True(t, pending.Success)
	require.Len(t, pending.Data, 1)

	accepted := call[sharedbooking.SharedBooking](t, s.server, s.bob, http.MethodPost,
		"/api/v1/shared-bookings/"+id.String()+"/accept", map[string]string{"notes": "see you there"})
	require.True(t, accepted.Success)
	require.Equal(t, sharedbooking.StatusAccepted, accepted.Data.Status)

	confirmed := call[sharedbooking.SharedBooking](t, s.server, s.alice, http.MethodPost,
		"/api/v1/shared-bookings/"+id.String()+"/confirm", nil)
	require.True(t, confirmed.Success, "%+v", confirmed.Error)
	require.Equal(t, sharedbooking.StatusConfirmed, confirmed.Data.Status)
	require.NotNil(t, confirmed.Data.FinalBookingID)
	require.Equal(t, 3, confirmed.Data.Version)

	var (
		playerID uuid.UUID
		status   string
	)
	err := s.pool.QueryRow(context.Background(),
		`SELECT player_id, status FROM bookings WHERE id = $1`, *confirmed.Data.FinalBookingID,
	).Scan(&playerID, &status)
	require.NoError(t, err)
	require.Equal(t, s.alice, playerID)
	require.Equal(t, "pending", status)

	slots := call[[]courts.Slot](t, s.server, s.alice, http.MethodGet,
		"/api/v1/courts/"+s.center.String()+"/slots?date="+s.date, nil)
	require.True(t, slots.Success)
	require.NotEmpty(t, slots.Data)
	for _, slot := range slots.Data {
		require.NotContains(t, []string{"18:00", "19:00"}, slot.StartTime.String())
	}
}

func (s *SharedBookingSuite) TestCounterProposalMovesTheSlot() {
	t := s.T()

	created := s.propose(s.alice, s.bob, s.center, "18:00", "20:00")
	require.True(t, created.Success)
	id := created.Data.ID.String()

	countered := call[sharedbooking.SharedBooking](t, s.server, s.bob, http.MethodPost,
		"/api/v1/shared-bookings/"+id+"/counter", map[string]interface{}{
			"court_id":   s.harbour,
			"start_time": "07:00",
			"end_time":   "08:30",
			"notes":      "before work?",
		})
	require.True(t, countered.Success, "%+v", countered.Error)
	require.Equal(t, sharedbooking.StatusCounterProposed, countered.Data.Status)
	require.NotNil(t, countered.Data.Alternative)

	pending := call[[]sharedbooking.PlayerBooking](t, s.server, s.alice, http.MethodGet, "/api/v1/shared-bookings/pending", nil)
	require.Len(t, pending.Data, 1)

	accepted := call[sharedbooking.SharedBooking](t, s.server, s.alice, http.MethodPost,
		"/api/v1/shared-bookings/"+id+"/accept-counter", nil)
	require.True(t, accepted.Success, "%+v", accepted.Error)
	require.Equal(t, s.harbour, accepted.Data.CourtID)
	require.InDelta(t, 135.0, accepted.Data.TotalCost, 0.001)
	require.Nil(t, accepted.Data.Alternative)

	confirmed := call[sharedbooking.SharedBooking](t, s.server, s.bob, http.MethodPost,
		"/api/v1/shared-bookings/"+id+"/confirm", nil)
	require.True(t, confirmed.Success)
	require.Equal(t, sharedbooking.StatusConfirmed, confirmed.Data.Status)
}

func (s *SharedBookingSuite) TestDuplicateProposalRejected() {
	t := s.T()

	require.True(t, s.propose(s.alice, s.bob, s.center, "18:00", "20:00").Success)

	// The reverse direction counts as the same pair.
	dup := s.propose(s.bob, s.alice, s.harbour, "10:00", "11:00")
	require.False(t, dup.Success)
	require.Equal(t, http.StatusUnprocessableEntity, dup.Error.Code)
}

func (s *SharedBookingSuite) TestSecondConfirmationLosesTheSlot() {
	t := s.T()

	first := s.propose(s.alice, s.bob, s.center, "18:00", "20:00")
	second := s.propose(s.carol, s.dave, s.center, "19:00", "21:00")
	require.True(t, first.Success)
	require.True(t, second.Success)

	for _, pair := range []struct {
		id      uuid.UUID
		partner uuid.UUID
	}{{first.Data.ID, s.bob}, {second.Data.ID, s.dave}} {
		resp := call[sharedbooking.SharedBooking](t, s.server, pair.partner, http.MethodPost,
			"/api/v1/shared-bookings/"+pair.id.String()+"/accept", nil)
		require.True(t, resp.Success)
	}

	ok := call[sharedbooking.SharedBooking](t, s.server, s.alice, http.MethodPost,
		"/api/v1/shared-bookings/"+first.Data.ID.String()+"/confirm", nil)
	require.True(t, ok.Success)

	lost := call[sharedbooking.SharedBooking](t, s.server, s.carol, http.MethodPost,
		"/api/v1/shared-bookings/"+second.Data.ID.String()+"/confirm", nil)
	require.False(t, lost.Success)
	require.Equal(t, http.StatusUnprocessableEntity, lost.Error.Code)

	var status string
	err := s.pool.QueryRow(context.Background(),
		`SELECT status FROM shared_bookings WHERE id = $1`, second.Data.ID).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, "accepted", status)
}

func (s *SharedBookingSuite) TestStaleVersionIsRejected() {
	t := s.T()
	ctx := context.Background()

	created := s.propose(s.alice, s.bob, s.center, "18:00", "20:00")
	require.True(t, created.Success)

	repo := sharedbooking.NewRepository(s.pool)
	stale, err := repo.GetByID(ctx, created.Data.ID)
	require.NoError(t, err)

	_, err = s.service.Accept(ctx, created.Data.ID, s.bob, "")
	require.NoError(t, err)

	stale.Status = sharedbooking.StatusCancelled
	require.ErrorIs(t, repo.Update(ctx, stale), sharedbooking.ErrVersionConflict)
}

func (s *SharedBookingSuite) TestExpireDueSweepsOverdueProposals() {
	t := s.T()
	ctx := context.Background()

	require.True(t, s.propose(s.alice, s.bob, s.center, "18:00", "20:00").Success)
	require.True(t, s.propose(s.carol, s.dave, s.harbour, "09:00", "10:00").Success)

	s.service.SetClock(func() time.Time { return time.Now().Add(49 * time.Hour) })
	defer s.service.SetClock(time.Now)

	n, err := s.service.ExpireDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = s.service.ExpireDue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	stats := call[sharedbooking.Statistics](t, s.server, s.alice, http.MethodGet, "/api/v1/shared-bookings/stats", nil)
	require.True(t, stats.Success)
	require.Equal(t, 2, stats.Data.TotalProposals)
	require.Zero(t, stats.Data.PendingProposals)
}

func (s *SharedBookingSuite) TestOutsiderCannotSeeProposal() {
	t := s.T()

	created := s.propose(s.alice, s.bob, s.center, "18:00", "20:00")
	require.True(t, created.Success)

	resp := call[sharedbooking.PlayerBooking](t, s.server, s.carol, http.MethodGet,
		"/api/v1/shared-bookings/"+created.Data.ID.String(), nil)
	require.False(t, resp.Success)
	require.Equal(t, http.StatusNotFound, resp.Error.Code)
}

// ============================================
// RECOMMENDATIONS
// ============================================

func (s *SharedBookingSuite) TestMatchesAndRecommendations() {
	t := s.T()

	matches := call[[]matching.Match](t, s.server, s.alice, http.MethodGet, "/api/v1/matches?limit=5", nil)
	require.True(t, matches.Success, "%+v", matches.Error)
	require.NotEmpty(t, matches.Data)
	for i := 1; i < len(matches.Data); i++ {
		require.GreaterOrEqual(t, matches.Data[i-1].Score, matches.Data[i].Score)
	}

	recs := call[[]courts.Recommendation](t, s.server, s.alice, http.MethodGet, "/api/v1/courts/recommended?limit=5", nil)
	require.True(t, recs.Success, "%+v", recs.Error)
	require.NotEmpty(t, recs.Data)
}

func call[T any](t *testing.T, server *httptest.Server, as uuid.UUID, method, path string, body interface{}) apiResponse[T] {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+helpers.AuthToken(t, jwtSecret, as))

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Less(t, resp.StatusCode, 500, "unexpected server error: %d", resp.StatusCode)

	var result apiResponse[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}
