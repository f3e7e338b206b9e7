package sharedbooking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/courtmate/tennis-platform/internal/courts"
	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/courtmate/tennis-platform/pkg/eventbus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ========================================
// INTERNAL FAKES
// ========================================

// memRepo keeps rows in memory with the same version semantics as the
// Postgres repository.
type memRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*SharedBooking
	bookings  []courts.Booking
	slotTaken bool
	// pairRace makes Create fail as if a concurrent proposal won the
	// unique index on the player pair.
	pairRace bool
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]*SharedBooking)}
}

func clone(sb *SharedBooking) *SharedBooking {
	c := *sb
	if sb.Alternative != nil {
		alt := *sb.Alternative
		c.Alternative = &alt
	}
	return &c
}

func (r *memRepo) Create(ctx context.Context, sb *SharedBooking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pairRace {
		return ErrOpenNegotiation
	}
	r.rows[sb.ID] = clone(sb)
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*SharedBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sb, ok := r.rows[id]
	if !ok {
		return nil, common.NewNotFoundError("shared booking not found", nil)
	}
	return clone(sb), nil
}

func (r *memRepo) Update(ctx context.Context, sb *SharedBooking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[sb.ID]
	if !ok || stored.Version != sb.Version {
		return ErrVersionConflict
	}
	sb.Version++
	r.rows[sb.ID] = clone(sb)
	return nil
}

func (r *memRepo) HasPendingBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sb := range r.rows {
		pair := (sb.Player1ID == a && sb.Player2ID == b) || (sb.Player1ID == b && sb.Player2ID == a)
		if pair && sb.Status.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) Confirm(ctx context.Context, sb *SharedBooking, at time.Time) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.rows[sb.ID]
	if stored.Version != sb.Version || stored.Status != StatusAccepted {
		return uuid.Nil, ErrVersionConflict
	}
	if r.slotTaken {
		return uuid.Nil, ErrSlotTaken
	}

	id := uuid.New()
	r.bookings = append(r.bookings, courts.Booking{
		ID:          id,
		CourtID:     sb.CourtID,
		PlayerID:    sb.Player1ID,
		BookingDate: sb.BookingDate,
		StartTime:   sb.StartTime,
		EndTime:     sb.EndTime,
		Status:      courts.BookingPending,
		TotalCost:   sb.TotalCost,
	})
	stored.Status = StatusConfirmed
	stored.FinalBookingID = &id
	stored.ConfirmedAt = &at
	stored.Version++
	sb.Version++
	return id, nil
}

func (r *memRepo) ExpireDue(ctx context.Context, now time.Time) ([]*SharedBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*SharedBooking
	for _, sb := range r.rows {
		if sb.Status.IsPending() && !sb.ExpiresAt.After(now) {
			sb.Status = StatusExpired
			sb.Version++
			out = append(out, clone(sb))
		}
	}
	return out, nil
}

func (r *memRepo) ListForPlayer(ctx context.Context, playerID uuid.UUID, includeExpired bool) ([]*SharedBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*SharedBooking
	for _, sb := range r.rows {
		if sb.IsParticipant(playerID) && (includeExpired || sb.Status != StatusExpired) {
			out = append(out, clone(sb))
		}
	}
	return out, nil
}

func (r *memRepo) PendingForPlayer(ctx context.Context, playerID uuid.UUID, now time.Time) ([]*SharedBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*SharedBooking
	for _, sb := range r.rows {
		waiting := (sb.Player2ID == playerID && sb.Status == StatusProposed) ||
			(sb.Player1ID == playerID && sb.Status == StatusCounterProposed)
		if waiting && sb.ExpiresAt.After(now) {
			out = append(out, clone(sb))
		}
	}
	return out, nil
}

func (r *memRepo) CountByStatus(ctx context.Context) (map[Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[Status]int)
	for _, sb := range r.rows {
		counts[sb.Status]++
	}
	return counts, nil
}

func (r *memRepo) seed(sb *SharedBooking) *SharedBooking {
	r.rows[sb.ID] = clone(sb)
	return sb
}

func (r *memRepo) row(id uuid.UUID) *SharedBooking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.rows[id])
}

type playerStore map[uuid.UUID]*players.Player

func (s playerStore) GetByID(ctx context.Context, id uuid.UUID) (*players.Player, error) {
	p, ok := s[id]
	if !ok {
		return nil, common.NewNotFoundError("player not found", nil)
	}
	return p, nil
}

type courtStore struct {
	courts map[uuid.UUID]*courts.Court
	busy   map[uuid.UUID]bool
}

func (s *courtStore) GetCourt(ctx context.Context, id uuid.UUID) (*courts.Court, error) {
	c, ok := s.courts[id]
	if !ok {
		return nil, common.NewNotFoundError("court not found", nil)
	}
	return c, nil
}

func (s *courtStore) IsSlotAvailable(ctx context.Context, courtID uuid.UUID, date time.Time, start, end courts.TimeOfDay) (bool, error) {
	return !s.busy[courtID], nil
}

type recordingBus struct {
	mu       sync.Mutex
	subjects []string
	events   []*eventbus.Event
}

func (b *recordingBus) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subject)
	b.events = append(b.events, event)
	return nil
}

type mockGeo struct {
	mock.Mock
}

func (m *mockGeo) Resolve(ctx context.Context, text string) *geo.Coordinates {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*geo.Coordinates)
}

func (m *mockGeo) SuggestMeetingPoints(ctx context.Context, a, b geo.Coordinates, maxResults int) ([]geo.MeetingPoint, error) {
	args := m.Called(ctx, a, b, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]geo.MeetingPoint), args.Error(1)
}

// ========================================
// TEST FIXTURE
// ========================================

var testNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	repo    *memRepo
	courts  *courtStore
	players playerStore
	bus     *recordingBus
	alice   *players.Player
	bob     *players.Player
	center  *courts.Court
	harbour *courts.Court
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	newPlayer := func(name string) *players.Player {
		return &players.Player{
			ID:                uuid.New(),
			Name:              name,
			SkillLevel:        players.SkillIntermediate,
			PreferredLocation: "Tel Aviv",
			IsActive:          true,
		}
	}
	newCourt := func(name string, rate float64) *courts.Court {
		return &courts.Court{ID: uuid.New(), Name: name, HourlyRate: rate, IsActive: true}
	}

	f := &fixture{
		repo:    newMemRepo(),
		bus:     &recordingBus{},
		alice:   newPlayer("Alice"),
		bob:     newPlayer("Bob"),
		center:  newCourt("Center Court", 120),
		harbour: newCourt("Harbour Court", 90),
	}
	f.players = playerStore{f.alice.ID: f.alice, f.bob.ID: f.bob}
	f.courts = &courtStore{
		courts: map[uuid.UUID]*courts.Court{f.center.ID: f.center, f.harbour.ID: f.harbour},
		busy:   map[uuid.UUID]bool{},
	}

	f.svc = NewService(f.repo, f.players, f.courts, nil, config.BookingConfig{ProposalTTLHours: 48, Timezone: "UTC"})
	f.svc.SetClock(func() time.Time { return testNow })
	f.svc.SetEventBus(f.bus)
	return f
}

func (f *fixture) proposal() ProposeRequest {
	return ProposeRequest{
		PartnerID: f.bob.ID,
		CourtID:   f.center.ID,
		Date:      "2026-10-20",
		StartTime: "18:00",
		EndTime:   "20:00",
		Notes:     "Friendly hit",
	}
}

func (f *fixture) seed(status Status) *SharedBooking {
	return f.repo.seed(&SharedBooking{
		ID:          uuid.New(),
		Player1ID:   f.alice.ID,
		Player2ID:   f.bob.ID,
		CourtID:     f.center.ID,
		BookingDate: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
		StartTime:   courts.At(18, 0),
		EndTime:     courts.At(20, 0),
		Status:      status,
		TotalCost:   240,
		ProposedAt:  testNow.Add(-time.Hour),
		ExpiresAt:   testNow.Add(47 * time.Hour),
		Version:     1,
	})
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.ErrorCode, appErr.Message)
}

// ========================================
// TESTS: Propose
// ========================================

func TestPropose_Success(t *testing.T) {
	f := newFixture(t)

	sb, err := f.svc.Propose(context.Background(), f.alice.ID, f.proposal())

	require.NoError(t, err)
	assert.Equal(t, StatusProposed, sb.Status)
	assert.Equal(t, 240.0, sb.TotalCost)
	assert.Equal(t, 120.0, sb.Player1Share)
	assert.Equal(t, 120.0, sb.Player2Share)
	assert.Equal(t, testNow, sb.ProposedAt)
	assert.Equal(t, testNow.Add(48*time.Hour), sb.ExpiresAt)
	assert.Equal(t, "Friendly hit", sb.InitiatorNotes)
	assert.Equal(t, StatusProposed, f.repo.row(sb.ID).Status)
	assert.Equal(t, []string{eventbus.SubjectSharedBookingProposed}, f.bus.subjects)

	var data eventbus.SharedBookingEventData
	require.NoError(t, f.bus.events[0].Decode(&data))
	assert.Equal(t, []uuid.UUID{f.bob.ID}, data.Recipients())
	assert.Equal(t, "18:00", data.StartTime)
}

func TestPropose_LosesPairRace(t *testing.T) {
	f := newFixture(t)
	f.repo.pairRace = true

	_, err := f.svc.Propose(context.Background(), f.alice.ID, f.proposal())

	assertAppError(t, err, common.CodeBusinessRule)
	assert.Empty(t, f.bus.subjects)
}

func TestPropose_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *fixture, req *ProposeRequest) uuid.UUID
		wantCode string
	}{
		{
			name: "proposing to yourself",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				req.PartnerID = f.alice.ID
				return f.alice.ID
			},
			wantCode: common.CodeInvalidInput,
		},
		{
			name: "unknown partner",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				req.PartnerID = uuid.New()
				return f.alice.ID
			},
			wantCode: common.CodeNotFound,
		},
		{
			name: "inactive partner",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				f.bob.IsActive = false
				return f.alice.ID
			},
			wantCode: common.CodeBusinessRule,
		},
		{
			name: "unknown court",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				req.CourtID = uuid.New()
				return f.alice.ID
			},
			wantCode: common.CodeNotFound,
		},
		{
			name: "inactive court",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				f.center.IsActive = false
				return f.alice.ID
			},
			wantCode: common.CodeBusinessRule,
		},
		{
			name: "date is today",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				req.Date = "2026-10-15"
				return f.alice.ID
			},
			wantCode: common.CodeBusinessRule,
		},
		{
			name: "beyond advance window",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				req.Date = "2026-11-15"
				return f.alice.ID
			},
			wantCode: common.CodeBusinessRule,
		},
		{
			name: "end before start",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				req.StartTime, req.EndTime = "20:00", "18:00"
				return f.alice.ID
			},
			wantCode: common.CodeInvalidInput,
		},
		{
			name: "shorter than an hour",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				req.EndTime = "18:30"
				return f.alice.ID
			},
			wantCode: common.CodeInvalidInput,
		},
		{
			name: "longer than four hours",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				req.StartTime, req.EndTime = "12:00", "17:00"
				return f.alice.ID
			},
			wantCode: common.CodeInvalidInput,
		},
		{
			name: "before opening",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				req.StartTime, req.EndTime = "05:00", "07:00"
				return f.alice.ID
			},
			wantCode: common.CodeInvalidInput,
		},
		{
			name: "after closing",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				req.StartTime, req.EndTime = "21:00", "23:00"
				return f.alice.ID
			},
			wantCode: common.CodeInvalidInput,
		},
		{
			name: "slot already booked",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				f.courts.busy[f.center.ID] = true
				return f.alice.ID
			},
			wantCode: common.CodeBusinessRule,
		},
		{
			name: "pending proposal in the other direction",
			mutate: func(f *fixture, req *ProposeRequest) uuid.UUID {
				sb := f.seed(StatusCounterProposed)
				sb.Player1ID, sb.Player2ID = f.bob.ID, f.alice.ID
				f.repo.seed(sb)
				return f.alice.ID
			},
			wantCode: common.CodeBusinessRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.proposal()
			actor := tt.mutate(f, &req)
			before := len(f.repo.rows)

			_, err := f.svc.Propose(context.Background(), actor, req)

			assertAppError(t, err, tt.wantCode)
			assert.Len(t, f.repo.rows, before)
			assert.Empty(t, f.bus.subjects)
		})
	}
}

func TestPropose_LastDayOfWindowIsAllowed(t *testing.T) {
	f := newFixture(t)
	req := f.proposal()
	req.Date = "2026-11-14"

	_, err := f.svc.Propose(context.Background(), f.alice.ID, req)
	assert.NoError(t, err)
}

func TestPropose_TodayFollowsBookingTimezone(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.repo, f.players, f.courts, nil, config.BookingConfig{ProposalTTLHours: 48, Timezone: "Asia/Jerusalem"})
	// 22:30 UTC is already the next day in Israel.
	f.svc.SetClock(func() time.Time { return time.Date(2026, 10, 15, 22, 30, 0, 0, time.UTC) })

	req := f.proposal()
	req.Date = "2026-10-16"

	_, err := f.svc.Propose(context.Background(), f.alice.ID, req)
	assertAppError(t, err, common.CodeBusinessRule)
}

// ========================================
// TESTS: Responses
// ========================================

func TestAccept(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusProposed)

	got, err := f.svc.Accept(context.Background(), sb.ID, f.bob.ID, " See you there ")

	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	assert.Equal(t, "See you there", got.PartnerNotes)
	require.NotNil(t, got.RespondedAt)
	assert.Equal(t, 2, f.repo.row(sb.ID).Version)
	assert.Equal(t, []string{eventbus.SubjectSharedBookingAccepted}, f.bus.subjects)
}

func TestAccept_FromCounterProposedWithdrawsAlternative(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusCounterProposed)
	sb.Alternative = &Alternative{CourtID: f.harbour.ID, Date: sb.BookingDate, StartTime: courts.At(19, 0), EndTime: courts.At(21, 0), Notes: "later?"}
	f.repo.seed(sb)

	got, err := f.svc.Accept(context.Background(), sb.ID, f.bob.ID, "original slot is fine")

	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	assert.Nil(t, got.Alternative)
	assert.Equal(t, f.center.ID, got.CourtID)
	assert.Equal(t, courts.At(18, 0), got.StartTime)
	assert.Equal(t, courts.At(20, 0), got.EndTime)
	assert.Equal(t, float64(240), got.TotalCost)
	assert.Equal(t, "original slot is fine", got.PartnerNotes)
	require.NotNil(t, got.RespondedAt)

	stored := f.repo.row(sb.ID)
	assert.Equal(t, StatusAccepted, stored.Status)
	assert.Nil(t, stored.Alternative)
	assert.Equal(t, f.center.ID, stored.CurrentProposal().CourtID)
}

func TestAccept_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		actor    func(f *fixture) uuid.UUID
		wantCode string
	}{
		{"initiator cannot accept own proposal", StatusProposed, func(f *fixture) uuid.UUID { return f.alice.ID }, common.CodeBusinessRule},
		{"outsider sees nothing", StatusProposed, func(f *fixture) uuid.UUID { return uuid.New() }, common.CodeNotFound},
		{"initiator cannot accept from counter-proposal", StatusCounterProposed, func(f *fixture) uuid.UUID { return f.alice.ID }, common.CodeBusinessRule},
		{"already accepted", StatusAccepted, func(f *fixture) uuid.UUID { return f.bob.ID }, common.CodeBusinessRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sb := f.seed(tt.status)

			_, err := f.svc.Accept(context.Background(), sb.ID, tt.actor(f), "")

			assertAppError(t, err, tt.wantCode)
			assert.Equal(t, tt.status, f.repo.row(sb.ID).Status)
		})
	}
}

func TestCounterPropose_KeepsOriginalSlot(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusProposed)
	harbour := f.harbour.ID

	got, err := f.svc.CounterPropose(context.Background(), sb.ID, f.bob.ID, CounterRequest{
		CourtID:   &harbour,
		StartTime: "19:00",
		EndTime:   "21:00",
		Notes:     "Harbour is closer for me",
	})

	require.NoError(t, err)
	assert.Equal(t, StatusCounterProposed, got.Status)
	assert.Equal(t, f.center.ID, got.CourtID)
	assert.Equal(t, courts.At(18, 0), got.StartTime)
	require.NotNil(t, got.Alternative)
	assert.Equal(t, harbour, got.Alternative.CourtID)
	assert.Equal(t, sb.BookingDate, got.Alternative.Date)
	assert.Equal(t, courts.At(19, 0), got.Alternative.StartTime)
	assert.Equal(t, "Harbour is closer for me", got.Alternative.Notes)
	assert.Equal(t, harbour, got.CurrentProposal().CourtID)
}

func TestCounterPropose_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		actor    func(f *fixture) uuid.UUID
		req      CounterRequest
		setup    func(f *fixture)
		wantCode string
	}{
		{
			name:     "only from proposed",
			status:   StatusCounterProposed,
			actor:    func(f *fixture) uuid.UUID { return f.bob.ID },
			req:      CounterRequest{StartTime: "19:00", EndTime: "21:00"},
			wantCode: common.CodeBusinessRule,
		},
		{
			name:     "initiator cannot counter",
			status:   StatusProposed,
			actor:    func(f *fixture) uuid.UUID { return f.alice.ID },
			req:      CounterRequest{StartTime: "19:00", EndTime: "21:00"},
			wantCode: common.CodeBusinessRule,
		},
		{
			name:     "alternative slot is taken",
			status:   StatusProposed,
			actor:    func(f *fixture) uuid.UUID { return f.bob.ID },
			req:      CounterRequest{StartTime: "19:00", EndTime: "21:00"},
			setup:    func(f *fixture) { f.courts.busy[f.center.ID] = true },
			wantCode: common.CodeBusinessRule,
		},
		{
			name:     "alternative in the past",
			status:   StatusProposed,
			actor:    func(f *fixture) uuid.UUID { return f.bob.ID },
			req:      CounterRequest{Date: "2026-10-01"},
			wantCode: common.CodeBusinessRule,
		},
		{
			name:     "alternative too long",
			status:   StatusProposed,
			actor:    func(f *fixture) uuid.UUID { return f.bob.ID },
			req:      CounterRequest{EndTime: "22:30"},
			wantCode: common.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sb := f.seed(tt.status)
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.svc.CounterPropose(context.Background(), sb.ID, tt.actor(f), tt.req)

			assertAppError(t, err, tt.wantCode)
			assert.Equal(t, 1, f.repo.row(sb.ID).Version)
		})
	}
}

func TestAcceptCounterProposal_Rejections(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusProposed)

	_, err := f.svc.AcceptCounterProposal(context.Background(), sb.ID, f.alice.ID)
	assertAppError(t, err, common.CodeBusinessRule)

	countered := f.seed(StatusCounterProposed)
	countered.Alternative = &Alternative{CourtID: f.center.ID, Date: countered.BookingDate, StartTime: courts.At(19, 0), EndTime: courts.At(21, 0)}
	f.repo.seed(countered)

	_, err = f.svc.AcceptCounterProposal(context.Background(), countered.ID, f.bob.ID)
	assertAppError(t, err, common.CodeBusinessRule)
}

func TestAcceptCounterProposal_RevalidatesAvailability(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusCounterProposed)
	sb.Alternative = &Alternative{CourtID: f.harbour.ID, Date: sb.BookingDate, StartTime: courts.At(19, 0), EndTime: courts.At(21, 0)}
	f.repo.seed(sb)
	f.courts.busy[f.harbour.ID] = true

	_, err := f.svc.AcceptCounterProposal(context.Background(), sb.ID, f.alice.ID)

	assertAppError(t, err, common.CodeBusinessRule)
	assert.Equal(t, StatusCounterProposed, f.repo.row(sb.ID).Status)
}

func TestCancel_FromEveryOpenState(t *testing.T) {
	for _, status := range []Status{StatusProposed, StatusCounterProposed, StatusAccepted} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			sb := f.seed(status)

			got, err := f.svc.Cancel(context.Background(), sb.ID, f.alice.ID, "rain forecast")

			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, got.Status)
			assert.Equal(t, "Cancelled by player "+f.alice.ID.String()+": rain forecast", got.PartnerNotes)
			assert.Equal(t, []string{eventbus.SubjectSharedBookingCancelled}, f.bus.subjects)

			var data eventbus.SharedBookingEventData
			require.NoError(t, f.bus.events[0].Decode(&data))
			assert.Equal(t, "rain forecast", data.Reason)
		})
	}
}

func TestDecline_AppendsToExistingNotes(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusProposed)
	sb.PartnerNotes = "Maybe"
	f.repo.seed(sb)

	got, err := f.svc.Decline(context.Background(), sb.ID, f.bob.ID, "")

	require.NoError(t, err)
	assert.Equal(t, "Maybe\nCancelled by player "+f.bob.ID.String(), got.PartnerNotes)
}

// ========================================
// TESTS: Terminal states
// ========================================

func TestTerminalStatesRejectEveryTransition(t *testing.T) {
	for _, status := range []Status{StatusConfirmed, StatusCancelled, StatusExpired} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			sb := f.seed(status)
			ctx := context.Background()

			ops := map[string]func() error{
				"accept": func() error { _, err := f.svc.Accept(ctx, sb.ID, f.bob.ID, ""); return err },
				"counter": func() error {
					_, err := f.svc.CounterPropose(ctx, sb.ID, f.bob.ID, CounterRequest{StartTime: "19:00", EndTime: "21:00"})
					return err
				},
				"accept counter": func() error { _, err := f.svc.AcceptCounterProposal(ctx, sb.ID, f.alice.ID); return err },
				"decline":        func() error { _, err := f.svc.Decline(ctx, sb.ID, f.bob.ID, ""); return err },
				"cancel":         func() error { _, err := f.svc.Cancel(ctx, sb.ID, f.alice.ID, ""); return err },
				"confirm":        func() error { _, err := f.svc.Confirm(ctx, sb.ID, f.alice.ID); return err },
			}

			for name, op := range ops {
				err := op()
				assert.True(t, common.IsBusinessRule(err), "%s: %v", name, err)
			}
			assert.Equal(t, sb, f.repo.row(sb.ID))
			assert.Empty(t, f.bus.subjects)
		})
	}
}

// ========================================
// TESTS: Confirm
// ========================================

func TestConfirm_SlotTakenLeavesBookingAccepted(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusAccepted)
	f.repo.slotTaken = true

	_, err := f.svc.Confirm(context.Background(), sb.ID, f.bob.ID)

	assertAppError(t, err, common.CodeBusinessRule)
	row := f.repo.row(sb.ID)
	assert.Equal(t, StatusAccepted, row.Status)
	assert.Nil(t, row.FinalBookingID)
	assert.Empty(t, f.repo.bookings)
}

func TestConfirm_RequiresAccepted(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusProposed)

	_, err := f.svc.Confirm(context.Background(), sb.ID, f.alice.ID)
	assertAppError(t, err, common.CodeBusinessRule)
}

// conflictRepo simulates another request winning every write race.
type conflictRepo struct {
	*memRepo
}

func (r conflictRepo) Update(ctx context.Context, sb *SharedBooking) error {
	return ErrVersionConflict
}

func (r conflictRepo) Confirm(ctx context.Context, sb *SharedBooking, at time.Time) (uuid.UUID, error) {
	return uuid.Nil, ErrVersionConflict
}

func TestConcurrentChangesAreReportedAsConflicts(t *testing.T) {
	f := newFixture(t)
	f.svc.repo = conflictRepo{f.repo}

	proposed := f.seed(StatusProposed)
	_, err := f.svc.Accept(context.Background(), proposed.ID, f.bob.ID, "")
	assertAppError(t, err, common.CodeConcurrencyConflict)

	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.Retryable())

	accepted := f.seed(StatusAccepted)
	_, err = f.svc.Confirm(context.Background(), accepted.ID, f.alice.ID)
	assert.True(t, common.IsConcurrencyConflict(err))
	assert.Empty(t, f.bus.subjects)
}

func TestStaleVersionLosesRace(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusProposed)
	ctx := context.Background()

	stale, err := f.repo.GetByID(ctx, sb.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, sb.ID, f.bob.ID, "")
	require.NoError(t, err)

	stale.Status = StatusCounterProposed
	assert.ErrorIs(t, f.repo.Update(ctx, stale), ErrVersionConflict)
	assert.Equal(t, StatusAccepted, f.repo.row(sb.ID).Status)
}

// ========================================
// TESTS: Expiry
// ========================================

func TestExpireDue_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	overdue := f.seed(StatusProposed)
	overdue.ExpiresAt = testNow.Add(-time.Minute)
	f.repo.seed(overdue)
	overdueCounter := f.seed(StatusCounterProposed)
	overdueCounter.ExpiresAt = testNow
	f.repo.seed(overdueCounter)
	fresh := f.seed(StatusProposed)
	accepted := f.seed(StatusAccepted)
	accepted.ExpiresAt = testNow.Add(-time.Hour)
	f.repo.seed(accepted)

	n, err := f.svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snapshot := map[uuid.UUID]*SharedBooking{}
	for id := range f.repo.rows {
		snapshot[id] = f.repo.row(id)
	}

	n, err = f.svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	for id, row := range snapshot {
		assert.Equal(t, row, f.repo.row(id))
	}

	assert.Equal(t, StatusExpired, f.repo.row(overdue.ID).Status)
	assert.Equal(t, StatusExpired, f.repo.row(overdueCounter.ID).Status)
	assert.Equal(t, StatusProposed, f.repo.row(fresh.ID).Status)
	assert.Equal(t, StatusAccepted, f.repo.row(accepted.ID).Status)
	assert.Equal(t, []string{eventbus.SubjectSharedBookingExpired, eventbus.SubjectSharedBookingExpired}, f.bus.subjects)

	var data eventbus.SharedBookingEventData
	require.NoError(t, f.bus.events[0].Decode(&data))
	assert.Nil(t, data.ActorID)
	assert.Len(t, data.Recipients(), 2)
}

func TestRespondingToOverdueProposalExpiresIt(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusProposed)
	sb.ExpiresAt = testNow.Add(-time.Second)
	f.repo.seed(sb)

	_, err := f.svc.Accept(context.Background(), sb.ID, f.bob.ID, "")

	require.Error(t, err)
	assert.True(t, common.IsBusinessRule(err))
	assert.Contains(t, err.Error(), "proposal has expired")
	assert.Equal(t, StatusExpired, f.repo.row(sb.ID).Status)
	assert.Equal(t, []string{eventbus.SubjectSharedBookingExpired}, f.bus.subjects)
}

// ========================================
// TESTS: Scenarios
// ========================================

func TestScenario_ProposeAcceptConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sb, err := f.svc.Propose(ctx, f.alice.ID, f.proposal())
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, sb.ID, f.bob.ID, "Great")
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm(ctx, sb.ID, f.alice.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.FinalBookingID)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, confirmed.TotalCost/2, confirmed.Player1Share)
	assert.Equal(t, confirmed.TotalCost/2, confirmed.Player2Share)

	row := f.repo.row(sb.ID)
	assert.Equal(t, StatusConfirmed, row.Status)
	assert.Equal(t, confirmed.FinalBookingID, row.FinalBookingID)
	assert.Equal(t, 3, row.Version)

	require.Len(t, f.repo.bookings, 1)
	booking := f.repo.bookings[0]
	assert.Equal(t, *confirmed.FinalBookingID, booking.ID)
	assert.Equal(t, f.alice.ID, booking.PlayerID)
	assert.Equal(t, courts.BookingPending, booking.Status)
	assert.Equal(t, 240.0, booking.TotalCost)

	assert.Equal(t, []string{
		eventbus.SubjectSharedBookingProposed,
		eventbus.SubjectSharedBookingAccepted,
		eventbus.SubjectSharedBookingConfirmed,
	}, f.bus.subjects)
}

func TestScenario_CounterProposeThenConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	harbour := f.harbour.ID

	sb, err := f.svc.Propose(ctx, f.alice.ID, f.proposal())
	require.NoError(t, err)

	_, err = f.svc.CounterPropose(ctx, sb.ID, f.bob.ID, CounterRequest{
		CourtID:   &harbour,
		Date:      "2026-10-21",
		StartTime: "07:00",
		EndTime:   "08:30",
	})
	require.NoError(t, err)

	accepted, err := f.svc.AcceptCounterProposal(ctx, sb.ID, f.alice.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusAccepted, accepted.Status)
	assert.Equal(t, harbour, accepted.CourtID)
	assert.Equal(t, time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), accepted.BookingDate)
	assert.Equal(t, courts.At(7, 0), accepted.StartTime)
	assert.Equal(t, courts.At(8, 30), accepted.EndTime)
	assert.Nil(t, accepted.Alternative)
	assert.Equal(t, 135.0, accepted.TotalCost)
	assert.InDelta(t, accepted.TotalCost, accepted.Player1Share+accepted.Player2Share, 1e-9)
	assert.Nil(t, f.repo.row(sb.ID).Alternative)

	confirmed, err := f.svc.Confirm(ctx, sb.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Equal(t, harbour, f.repo.bookings[0].CourtID)
	assert.Equal(t, courts.At(7, 0), f.repo.bookings[0].StartTime)
}

// ========================================
// TESTS: Queries
// ========================================

func TestListAndPendingForPlayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	proposed := f.seed(StatusProposed)
	countered := f.seed(StatusCounterProposed)
	expired := f.seed(StatusExpired)

	all, err := f.svc.ListForPlayer(ctx, f.bob.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, v := range all {
		assert.Equal(t, RolePartner, v.Role)
		assert.Equal(t, f.alice.ID, v.OtherPlayerID)
		assert.NotEqual(t, expired.ID, v.ID)
	}

	withExpired, err := f.svc.ListForPlayer(ctx, f.bob.ID, true)
	require.NoError(t, err)
	assert.Len(t, withExpired, 3)

	bobPending, err := f.svc.PendingForPlayer(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, bobPending, 1)
	assert.Equal(t, proposed.ID, bobPending[0].ID)

	alicePending, err := f.svc.PendingForPlayer(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, alicePending, 1)
	assert.Equal(t, countered.ID, alicePending[0].ID)
	assert.Equal(t, RoleInitiator, alicePending[0].Role)
}

func TestGet_HidesFromOutsiders(t *testing.T) {
	f := newFixture(t)
	sb := f.seed(StatusProposed)

	view, err := f.svc.Get(context.Background(), sb.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleInitiator, view.Role)

	_, err = f.svc.Get(context.Background(), sb.ID, uuid.New())
	assert.True(t, common.IsNotFound(err))
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	for _, s := range []Status{StatusProposed, StatusCounterProposed, StatusConfirmed, StatusCancelled, StatusExpired, StatusAccepted} {
		f.seed(s)
	}

	stats, err := f.svc.Statistics(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalProposals)
	assert.Equal(t, 1, stats.ConfirmedBookings)
	assert.Equal(t, 2, stats.PendingProposals)
	assert.Equal(t, 16.7, stats.SuccessRate)
}

func TestStatistics_Empty(t *testing.T) {
	stats, err := newFixture(t).svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.SuccessRate)
}

func TestSuggestCourts(t *testing.T) {
	f := newFixture(t)
	alicePos := geo.Coordinates{Latitude: 32.08, Longitude: 34.78}
	bobPos := geo.Coordinates{Latitude: 32.10, Longitude: 34.80}
	f.alice.SetCoordinates(alicePos)

	g := new(mockGeo)
	g.On("Resolve", mock.Anything, "Tel Aviv").Return(&bobPos)
	points := []geo.MeetingPoint{{Court: geo.Venue{ID: f.center.ID, Name: "Center Court"}, TotalScore: 91}}
	g.On("SuggestMeetingPoints", mock.Anything, alicePos, bobPos, defaultSuggest).Return(points, nil)
	f.svc.geo = g

	got, err := f.svc.SuggestCourts(context.Background(), f.alice.ID, f.bob.ID, 0)

	require.NoError(t, err)
	assert.Equal(t, points, got)
	g.AssertExpectations(t)
}

func TestSuggestCourts_UnlocatablePlayer(t *testing.T) {
	f := newFixture(t)
	g := new(mockGeo)
	g.On("Resolve", mock.Anything, "Tel Aviv").Return(nil)
	f.svc.geo = g

	got, err := f.svc.SuggestCourts(context.Background(), f.alice.ID, f.bob.ID, 3)

	require.NoError(t, err)
	assert.Empty(t, got)
	g.AssertNotCalled(t, "SuggestMeetingPoints", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
