package sharedbooking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/courtmate/tennis-platform/internal/courts"
	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/courtmate/tennis-platform/pkg/eventbus"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/courtmate/tennis-platform/pkg/tracing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tracerName         = "sharedbooking"
	eventSource        = "sharedbooking"
	defaultProposalTTL = 48 * time.Hour
)

// Service runs the shared booking negotiation between two players
type Service struct {
	repo    RepositoryInterface
	players PlayerLookup
	courts  CourtLookup
	geo     GeoService
	events  eventbus.Publisher
	ttl     time.Duration
	loc     *time.Location
	now     func() time.Time
}

// NewService creates a new shared booking service. geoSvc may be nil, in
// which case no courts are suggested.
func NewService(repo RepositoryInterface, playerLookup PlayerLookup, courtLookup CourtLookup, geoSvc GeoService, cfg config.BookingConfig) *Service {
	ttl := cfg.ProposalTTL()
	if ttl <= 0 {
		ttl = defaultProposalTTL
	}
	return &Service{
		repo:    repo,
		players: playerLookup,
		courts:  courtLookup,
		geo:     geoSvc,
		ttl:     ttl,
		loc:     cfg.Location(),
		now:     time.Now,
	}
}

// SetEventBus sets the publisher for lifecycle events
func (s *Service) SetEventBus(bus eventbus.Publisher) {
	s.events = bus
}

// SetClock replaces the wall clock, for tests and replays.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ========================================
// Queries
// ========================================

// SuggestCourts returns courts that are fair meeting points for the pair.
func (s *Service) SuggestCourts(ctx context.Context, player1, player2 uuid.UUID, maxResults int) ([]geo.MeetingPoint, error) {
	if maxResults <= 0 {
		maxResults = defaultSuggest
	}
	if s.geo == nil {
		return []geo.MeetingPoint{}, nil
	}

	a, err := s.players.GetByID(ctx, player1)
	if err != nil {
		return nil, err
	}
	b, err := s.players.GetByID(ctx, player2)
	if err != nil {
		return nil, err
	}

	ca, cb := s.locate(ctx, a), s.locate(ctx, b)
	if ca == nil || cb == nil {
		return []geo.MeetingPoint{}, nil
	}
	return s.geo.SuggestMeetingPoints(ctx, *ca, *cb, maxResults)
}

func (s *Service) locate(ctx context.Context, p *players.Player) *geo.Coordinates {
	if c := p.Coordinates(); c != nil {
		return c
	}
	return s.geo.Resolve(ctx, p.PreferredLocation)
}

// Get returns one shared booking as seen by a participant.
func (s *Service) Get(ctx context.Context, id, playerID uuid.UUID) (*PlayerBooking, error) {
	sb, err := s.load(ctx, id, playerID)
	if err != nil {
		return nil, err
	}
	view := viewFor(sb, playerID)
	return &view, nil
}

// ListForPlayer returns the player's negotiations, newest first.
func (s *Service) ListForPlayer(ctx context.Context, playerID uuid.UUID, includeExpired bool) ([]PlayerBooking, error) {
	rows, err := s.repo.ListForPlayer(ctx, playerID, includeExpired)
	if err != nil {
		return nil, err
	}
	return viewsFor(rows, playerID), nil
}

// PendingForPlayer returns live proposals waiting on the player's response.
func (s *Service) PendingForPlayer(ctx context.Context, playerID uuid.UUID) ([]PlayerBooking, error) {
	rows, err := s.repo.PendingForPlayer(ctx, playerID, s.now())
	if err != nil {
		return nil, err
	}
	return viewsFor(rows, playerID), nil
}

// Statistics summarises negotiation outcomes across all players.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		ConfirmedBookings: counts[StatusConfirmed],
		PendingProposals:  counts[StatusProposed] + counts[StatusCounterProposed],
	}
	for _, n := range counts {
		stats.TotalProposals += n
	}
	if stats.TotalProposals > 0 {
		stats.SuccessRate = math.Round(float64(stats.ConfirmedBookings)/float64(stats.TotalProposals)*1000) / 10
	}
	return stats, nil
}

func viewFor(sb *SharedBooking, playerID uuid.UUID) PlayerBooking {
	return PlayerBooking{
		SharedBooking: sb,
		Role:          sb.RoleOf(playerID),
		OtherPlayerID: sb.OtherPlayer(playerID),
		Current:       sb.CurrentProposal(),
	}
}

func viewsFor(rows []*SharedBooking, playerID uuid.UUID) []PlayerBooking {
	views := make([]PlayerBooking, 0, len(rows))
	for _, sb := range rows {
		views = append(views, viewFor(sb, playerID))
	}
	return views
}

// ========================================
// Transitions
// ========================================

// Propose opens a negotiation from player1 to the partner in req.
func (s *Service) Propose(ctx context.Context, player1 uuid.UUID, req ProposeRequest) (*SharedBooking, error) {
	var sb *SharedBooking
	err := s.trace(ctx, "Propose", uuid.Nil, StatusProposed, player1, func(ctx context.Context) error {
		var err error
		sb, err = s.propose(ctx, player1, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sb, nil
}

func (s *Service) propose(ctx context.Context, player1 uuid.UUID, req ProposeRequest) (*SharedBooking, error) {
	if req.PartnerID == player1 {
		return nil, common.NewValidationError("cannot propose a booking to yourself")
	}
	sl, err := req.slot()
	if err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	for _, id := range []uuid.UUID{player1, req.PartnerID} {
		p, err := s.players.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			return nil, common.NewBusinessRuleError("player account is not active")
		}
	}

	court, err := s.validateSlot(ctx, sl)
	if err != nil {
		return nil, err
	}

	pending, err := s.repo.HasPendingBetween(ctx, player1, req.PartnerID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, common.NewBusinessRuleError("there is already a pending proposal between these players")
	}

	now := s.now()
	sb := &SharedBooking{
		ID:             uuid.New(),
		Player1ID:      player1,
		Player2ID:      req.PartnerID,
		CourtID:        sl.CourtID,
		BookingDate:    sl.Date,
		StartTime:      sl.Start,
		EndTime:        sl.End,
		Status:         StatusProposed,
		InitiatorNotes: strings.TrimSpace(req.Notes),
		ProposedAt:     now,
		ExpiresAt:      now.Add(s.ttl),
		Version:        1,
	}
	sb.applyCost(court.HourlyRate)

	if err := s.repo.Create(ctx, sb); err != nil {
		if errors.Is(err, ErrOpenNegotiation) {
			return nil, common.NewBusinessRuleError("there is already a pending proposal between these players")
		}
		return nil, err
	}

	s.committed(ctx, sb, "", &player1, "")
	return sb, nil
}

// Accept is the partner agreeing to the original proposal. From
// counter_proposed it withdraws the partner's own alternative; the original
// slot and cost stand.
func (s *Service) Accept(ctx context.Context, id, player2 uuid.UUID, notes string) (*SharedBooking, error) {
	return s.respond(ctx, "Accept", id, player2, StatusAccepted, "", func(sb *SharedBooking) error {
		if player2 != sb.Player2ID {
			return common.NewBusinessRuleError("only the invited player can accept this proposal")
		}
		if err := checkTransition(sb.Status, StatusAccepted); err != nil {
			return err
		}

		now := s.now()
		sb.Alternative = nil
		sb.Status = StatusAccepted
		sb.PartnerNotes = strings.TrimSpace(notes)
		sb.RespondedAt = &now
		return nil
	})
}

// CounterPropose is the partner suggesting a different court, date or time.
func (s *Service) CounterPropose(ctx context.Context, id, player2 uuid.UUID, req CounterRequest) (*SharedBooking, error) {
	return s.respond(ctx, "CounterPropose", id, player2, StatusCounterProposed, "", func(sb *SharedBooking) error {
		if player2 != sb.Player2ID {
			return common.NewBusinessRuleError("only the invited player can counter-propose")
		}
		if err := checkTransition(sb.Status, StatusCounterProposed); err != nil {
			return err
		}

		sl, err := req.slot(sb)
		if err != nil {
			return common.NewValidationError(err.Error())
		}
		if _, err := s.validateSlot(ctx, sl); err != nil {
			return err
		}

		now := s.now()
		sb.Alternative = &Alternative{
			CourtID:   sl.CourtID,
			Date:      sl.Date,
			StartTime: sl.Start,
			EndTime:   sl.End,
			Notes:     strings.TrimSpace(req.Notes),
		}
		sb.Status = StatusCounterProposed
		sb.RespondedAt = &now
		return nil
	})
}

// AcceptCounterProposal is the initiator taking the partner's alternative.
// The alternative becomes the agreed slot and is repriced.
func (s *Service) AcceptCounterProposal(ctx context.Context, id, player1 uuid.UUID) (*SharedBooking, error) {
	return s.respond(ctx, "AcceptCounterProposal", id, player1, StatusAccepted, "", func(sb *SharedBooking) error {
		if player1 != sb.Player1ID {
			return common.NewBusinessRuleError("only the initiator can accept a counter-proposal")
		}
		if sb.Status != StatusCounterProposed || sb.Alternative == nil {
			return common.NewBusinessRuleError("there is no counter-proposal to accept")
		}

		alt := sb.Alternative
		court, err := s.validateSlot(ctx, slot{CourtID: alt.CourtID, Date: alt.Date, Start: alt.StartTime, End: alt.EndTime})
		if err != nil {
			return err
		}

		sb.CourtID = alt.CourtID
		sb.BookingDate = alt.Date
		sb.StartTime = alt.StartTime
		sb.EndTime = alt.EndTime
		sb.Alternative = nil
		sb.applyCost(court.HourlyRate)
		sb.Status = StatusAccepted
		return nil
	})
}

// Decline is the partner turning the proposal down.
func (s *Service) Decline(ctx context.Context, id, playerID uuid.UUID, reason string) (*SharedBooking, error) {
	return s.cancel(ctx, "Decline", id, playerID, reason)
}

// Cancel withdraws either side from a negotiation that has not finished.
func (s *Service) Cancel(ctx context.Context, id, playerID uuid.UUID, reason string) (*SharedBooking, error) {
	return s.cancel(ctx, "Cancel", id, playerID, reason)
}

func (s *Service) cancel(ctx context.Context, op string, id, playerID uuid.UUID, reason string) (*SharedBooking, error) {
	reason = strings.TrimSpace(reason)
	return s.respond(ctx, op, id, playerID, StatusCancelled, reason, func(sb *SharedBooking) error {
		if err := checkTransition(sb.Status, StatusCancelled); err != nil {
			return err
		}

		note := fmt.Sprintf("Cancelled by player %s", playerID)
		if reason != "" {
			note += ": " + reason
		}
		if sb.PartnerNotes != "" {
			note = sb.PartnerNotes + "\n" + note
		}

		now := s.now()
		sb.PartnerNotes = note
		sb.Status = StatusCancelled
		sb.RespondedAt = &now
		return nil
	})
}

// Confirm books the agreed slot. The court is re-checked inside the same
// transaction that creates the booking; a taken slot leaves the negotiation
// accepted so the players can renegotiate.
func (s *Service) Confirm(ctx context.Context, id, playerID uuid.UUID) (*SharedBooking, error) {
	var sb *SharedBooking
	err := s.trace(ctx, "Confirm", id, StatusConfirmed, playerID, func(ctx context.Context) error {
		var err error
		sb, err = s.load(ctx, id, playerID)
		if err != nil {
			return err
		}
		if err := checkTransition(sb.Status, StatusConfirmed); err != nil {
			return err
		}

		now := s.now()
		bookingID, err := s.repo.Confirm(ctx, sb, now)
		switch {
		case errors.Is(err, ErrSlotTaken):
			conflictsTotal.WithLabelValues("slot_taken").Inc()
			return common.NewBusinessRuleError("court is no longer available for this time slot")
		case errors.Is(err, ErrVersionConflict):
			conflictsTotal.WithLabelValues("version").Inc()
			return common.NewConcurrencyConflictError("shared booking was changed by another request")
		case err != nil:
			return err
		}

		sb.Status = StatusConfirmed
		sb.FinalBookingID = &bookingID
		sb.ConfirmedAt = &now
		s.committed(ctx, sb, StatusAccepted, &playerID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sb, nil
}

// ExpireDue moves every overdue proposal to expired. Running it again with
// nothing due changes nothing.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}

	for _, sb := range expired {
		s.committed(ctx, sb, "", nil, "no response before deadline")
	}
	if len(expired) > 0 {
		logger.InfoContext(ctx, "expired shared booking proposals", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

// ========================================
// Helpers
// ========================================

// respond loads the booking, expires it if overdue, applies mutate and
// saves under the version read.
func (s *Service) respond(ctx context.Context, op string, id, actor uuid.UUID, to Status, reason string, mutate func(sb *SharedBooking) error) (*SharedBooking, error) {
	var sb *SharedBooking
	err := s.trace(ctx, op, id, to, actor, func(ctx context.Context) error {
		var err error
		sb, err = s.load(ctx, id, actor)
		if err != nil {
			return err
		}
		if err := s.expireIfOverdue(ctx, sb); err != nil {
			return err
		}

		from := sb.Status
		if err := mutate(sb); err != nil {
			return err
		}
		if err := s.save(ctx, sb); err != nil {
			return err
		}

		s.committed(ctx, sb, from, &actor, reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sb, nil
}

// load returns the booking if playerID takes part in it. Outsiders get
// NotFound so they cannot probe for IDs.
func (s *Service) load(ctx context.Context, id, playerID uuid.UUID) (*SharedBooking, error) {
	sb, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sb.IsParticipant(playerID) {
		return nil, common.NewNotFoundError("shared booking not found", nil)
	}
	return sb, nil
}

func (s *Service) expireIfOverdue(ctx context.Context, sb *SharedBooking) error {
	if !sb.IsExpired(s.now()) {
		return nil
	}

	from := sb.Status
	sb.Status = StatusExpired
	if err := s.repo.Update(ctx, sb); err != nil && !errors.Is(err, ErrVersionConflict) {
		logger.WarnContext(ctx, "failed to mark shared booking expired",
			zap.String("shared_booking_id", sb.ID.String()), zap.Error(err))
	} else if err == nil {
		s.committed(ctx, sb, from, nil, "no response before deadline")
	}
	return common.NewBusinessRuleError("proposal has expired")
}

func (s *Service) save(ctx context.Context, sb *SharedBooking) error {
	err := s.repo.Update(ctx, sb)
	if errors.Is(err, ErrVersionConflict) {
		conflictsTotal.WithLabelValues("version").Inc()
		return common.NewConcurrencyConflictError("shared booking was changed by another request")
	}
	return err
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return common.NewBusinessRuleError(fmt.Sprintf("cannot move shared booking from %s to %s", from, to))
	}
	return nil
}

// validateSlot checks a requested slot against the court, the calendar and
// existing bookings.
func (s *Service) validateSlot(ctx context.Context, sl slot) (*courts.Court, error) {
	if sl.Start >= sl.End {
		return nil, common.NewValidationError("end time must be after start time")
	}
	if d := int(sl.End - sl.Start); d < minDuration || d > maxDuration {
		return nil, common.NewValidationError("booking must last between 1 and 4 hours")
	}
	if sl.Start < earliestStart || sl.End > latestEnd {
		return nil, common.NewValidationError("booking must be between 06:00 and 22:00")
	}

	court, err := s.courts.GetCourt(ctx, sl.CourtID)
	if err != nil {
		return nil, err
	}
	if !court.IsActive {
		return nil, common.NewBusinessRuleError("court is not available for booking")
	}

	y, m, d := s.now().In(s.loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	date := time.Date(sl.Date.Year(), sl.Date.Month(), sl.Date.Day(), 0, 0, 0, 0, time.UTC)
	if !date.After(today) {
		return nil, common.NewBusinessRuleError("booking date must be in the future")
	}
	if window := court.BookingWindowDays(); date.After(today.AddDate(0, 0, window)) {
		return nil, common.NewBusinessRuleError(fmt.Sprintf("court accepts bookings at most %d days ahead", window))
	}

	free, err := s.courts.IsSlotAvailable(ctx, sl.CourtID, date, sl.Start, sl.End)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, common.NewBusinessRuleError("court is not available for this time slot")
	}
	return court, nil
}

func (s *Service) trace(ctx context.Context, op string, id uuid.UUID, to Status, actor uuid.UUID, fn func(context.Context) error) error {
	sbID := ""
	if id != uuid.Nil {
		sbID = id.String()
	}
	return tracing.TraceBusinessLogic(ctx, tracerName, op,
		tracing.SharedBookingAttributes(sbID, string(to), actor.String()), fn)
}

// committed records a persisted transition and announces it.
func (s *Service) committed(ctx context.Context, sb *SharedBooking, from Status, actor *uuid.UUID, reason string) {
	transitionsTotal.WithLabelValues(string(sb.Status)).Inc()

	fields := []zap.Field{
		zap.String("shared_booking_id", sb.ID.String()),
		zap.String("to", string(sb.Status)),
		zap.Int("version", sb.Version),
	}
	if from != "" {
		fields = append(fields, zap.String("from", string(from)))
	}
	if actor != nil {
		fields = append(fields, zap.String("actor_id", actor.String()))
	}
	logger.InfoContext(ctx, "shared booking transitioned", fields...)

	s.publish(ctx, sb, actor, reason)
}

func (s *Service) publish(ctx context.Context, sb *SharedBooking, actor *uuid.UUID, reason string) {
	if s.events == nil {
		return
	}

	subject := eventbus.SharedBookingSubject(string(sb.Status))
	event, err := eventbus.NewEvent(subject, eventSource, eventbus.SharedBookingEventData{
		SharedBookingID: sb.ID,
		Status:          string(sb.Status),
		Player1ID:       sb.Player1ID,
		Player2ID:       sb.Player2ID,
		ActorID:         actor,
		CourtID:         sb.CourtID,
		BookingDate:     sb.BookingDate.Format(dateLayout),
		StartTime:       sb.StartTime.String(),
		EndTime:         sb.EndTime.String(),
		TotalCost:       sb.TotalCost,
		FinalBookingID:  sb.FinalBookingID,
		Reason:          reason,
		OccurredAt:      s.now().UTC(),
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to build shared booking event", zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, subject, event); err != nil {
		logger.WarnContext(ctx, "failed to publish shared booking event",
			zap.String("subject", subject), zap.Error(err))
	}
}
