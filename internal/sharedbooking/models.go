package sharedbooking

import (
	"fmt"
	"math"
	"time"

	"github.com/courtmate/tennis-platform/internal/courts"
	"github.com/google/uuid"
)

const (
	dateLayout     = "2006-01-02"
	minDuration    = 60
	maxDuration    = 4 * 60
	earliestStart  = 6 * 60
	latestEnd      = 22 * 60
	defaultSuggest = 5
)

// Role is a player's side of a shared booking.
type Role string

const (
	RoleInitiator Role = "initiator"
	RolePartner   Role = "partner"
)

// Alternative is a counter-proposed slot. It is set only while the booking
// is counter_proposed.
type Alternative struct {
	CourtID   uuid.UUID        `json:"court_id"`
	Date      time.Time        `json:"date"`
	StartTime courts.TimeOfDay `json:"start_time"`
	EndTime   courts.TimeOfDay `json:"end_time"`
	Notes     string           `json:"notes,omitempty"`
}

// SharedBooking is a two-player negotiation over one court slot.
type SharedBooking struct {
	ID             uuid.UUID        `json:"id"`
	Player1ID      uuid.UUID        `json:"player1_id"`
	Player2ID      uuid.UUID        `json:"player2_id"`
	CourtID        uuid.UUID        `json:"court_id"`
	BookingDate    time.Time        `json:"booking_date"`
	StartTime      courts.TimeOfDay `json:"start_time"`
	EndTime        courts.TimeOfDay `json:"end_time"`
	Status         Status           `json:"status"`
	Alternative    *Alternative     `json:"alternative,omitempty"`
	TotalCost      float64          `json:"total_cost"`
	Player1Share   float64          `json:"player1_share"`
	Player2Share   float64          `json:"player2_share"`
	InitiatorNotes string           `json:"initiator_notes,omitempty"`
	PartnerNotes   string           `json:"partner_notes,omitempty"`
	ProposedAt     time.Time        `json:"proposed_at"`
	RespondedAt    *time.Time       `json:"responded_at,omitempty"`
	ConfirmedAt    *time.Time       `json:"confirmed_at,omitempty"`
	ExpiresAt      time.Time        `json:"expires_at"`
	FinalBookingID *uuid.UUID       `json:"final_booking_id,omitempty"`
	Version        int              `json:"version"`
}

// Proposal is the slot currently on the table.
type Proposal struct {
	CourtID   uuid.UUID        `json:"court_id"`
	Date      time.Time        `json:"date"`
	StartTime courts.TimeOfDay `json:"start_time"`
	EndTime   courts.TimeOfDay `json:"end_time"`
	Notes     string           `json:"notes,omitempty"`
}

// CurrentProposal returns the counter-proposal while one is pending,
// otherwise the primary slot.
func (sb *SharedBooking) CurrentProposal() Proposal {
	if sb.Status == StatusCounterProposed && sb.Alternative != nil {
		a := sb.Alternative
		return Proposal{CourtID: a.CourtID, Date: a.Date, StartTime: a.StartTime, EndTime: a.EndTime, Notes: a.Notes}
	}
	return Proposal{
		CourtID:   sb.CourtID,
		Date:      sb.BookingDate,
		StartTime: sb.StartTime,
		EndTime:   sb.EndTime,
		Notes:     sb.InitiatorNotes,
	}
}

// IsParticipant reports whether the player is one of the two sides.
func (sb *SharedBooking) IsParticipant(playerID uuid.UUID) bool {
	return playerID == sb.Player1ID || playerID == sb.Player2ID
}

// RoleOf returns the player's role. The player must be a participant.
func (sb *SharedBooking) RoleOf(playerID uuid.UUID) Role {
	if playerID == sb.Player1ID {
		return RoleInitiator
	}
	return RolePartner
}

// OtherPlayer returns the counterpart of playerID.
func (sb *SharedBooking) OtherPlayer(playerID uuid.UUID) uuid.UUID {
	if playerID == sb.Player1ID {
		return sb.Player2ID
	}
	return sb.Player1ID
}

// IsExpired reports whether a pending proposal has passed its deadline.
func (sb *SharedBooking) IsExpired(now time.Time) bool {
	return sb.Status.IsPending() && !now.Before(sb.ExpiresAt)
}

// applyCost prices the primary slot at rate per hour.
func (sb *SharedBooking) applyCost(rate float64) {
	sb.TotalCost, sb.Player1Share, sb.Player2Share = splitCost(rate, sb.StartTime.Hours(sb.EndTime))
}

// splitCost prices a slot and splits it evenly in whole cents. The odd cent
// goes to player1 so the shares always sum to the total.
func splitCost(rate, hours float64) (total, p1, p2 float64) {
	cents := math.Round(rate * hours * 100)
	p2Cents := math.Floor(cents / 2)
	return cents / 100, (cents - p2Cents) / 100, p2Cents / 100
}

// slot is a validated court/date/time request.
type slot struct {
	CourtID uuid.UUID
	Date    time.Time
	Start   courts.TimeOfDay
	End     courts.TimeOfDay
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ProposeRequest is player1's opening proposal.
type ProposeRequest struct {
	PartnerID uuid.UUID `json:"partner_id" validate:"required"`
	CourtID   uuid.UUID `json:"court_id" validate:"required"`
	Date      string    `json:"date" validate:"required,isodate"`
	StartTime string    `json:"start_time" validate:"required,hhmm"`
	EndTime   string    `json:"end_time" validate:"required,hhmm"`
	Notes     string    `json:"notes" validate:"max=500"`
}

func (r ProposeRequest) slot() (slot, error) {
	s := slot{CourtID: r.CourtID}
	var err error
	if s.Date, err = parseDate(r.Date); err != nil {
		return s, err
	}
	if s.Start, err = courts.ParseTimeOfDay(r.StartTime); err != nil {
		return s, err
	}
	if s.End, err = courts.ParseTimeOfDay(r.EndTime); err != nil {
		return s, err
	}
	return s, nil
}

// CounterRequest is player2's alternative. Omitted fields keep the current
// values.
type CounterRequest struct {
	CourtID   *uuid.UUID `json:"court_id"`
	Date      string     `json:"date" validate:"omitempty,isodate"`
	StartTime string     `json:"start_time" validate:"omitempty,hhmm"`
	EndTime   string     `json:"end_time" validate:"omitempty,hhmm"`
	Notes     string     `json:"notes" validate:"max=500"`
}

func (r CounterRequest) slot(current *SharedBooking) (slot, error) {
	s := slot{CourtID: current.CourtID, Date: current.BookingDate, Start: current.StartTime, End: current.EndTime}
	var err error
	if r.CourtID != nil {
		s.CourtID = *r.CourtID
	}
	if r.Date != "" {
		if s.Date, err = parseDate(r.Date); err != nil {
			return s, err
		}
	}
	if r.StartTime != "" {
		if s.Start, err = courts.ParseTimeOfDay(r.StartTime); err != nil {
			return s, err
		}
	}
	if r.EndTime != "" {
		if s.End, err = courts.ParseTimeOfDay(r.EndTime); err != nil {
			return s, err
		}
	}
	return s, nil
}

// RespondRequest carries the partner's reply to an accepted proposal.
type RespondRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

// CancelRequest carries the reason for declining or cancelling.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// PlayerBooking is a shared booking seen from one player's side.
type PlayerBooking struct {
	*SharedBooking
	Role          Role      `json:"role"`
	OtherPlayerID uuid.UUID `json:"other_player_id"`
	Current       Proposal  `json:"current_proposal"`
}

// Statistics summarises negotiation outcomes.
type Statistics struct {
	TotalProposals    int     `json:"total_proposals"`
	ConfirmedBookings int     `json:"confirmed_bookings"`
	PendingProposals  int     `json:"pending_proposals"`
	SuccessRate       float64 `json:"success_rate"`
}
