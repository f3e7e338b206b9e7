package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Subjects for shared booking lifecycle events. Each committed transition
// publishes to bookings.shared.<status>.
const (
	SubjectSharedBookingProposed        = "bookings.shared.proposed"
	SubjectSharedBookingAccepted        = "bookings.shared.accepted"
	SubjectSharedBookingCounterProposed = "bookings.shared.counter_proposed"
	SubjectSharedBookingConfirmed       = "bookings.shared.confirmed"
	SubjectSharedBookingCancelled       = "bookings.shared.cancelled"
	SubjectSharedBookingExpired         = "bookings.shared.expired"

	// SubjectSharedBookingAll matches every shared booking event.
	SubjectSharedBookingAll = "bookings.shared.>"
)

// StreamSubjects are captured by the JetStream stream.
var StreamSubjects = []string{"bookings.>"}

// SharedBookingSubject returns the subject for a shared booking status.
func SharedBookingSubject(status string) string {
	return "bookings.shared." + status
}

// SharedBookingEventData is the payload of every shared booking event.
// ActorID is the player whose action caused the transition; it is nil for
// transitions made by the expiry sweep.
type SharedBookingEventData struct {
	SharedBookingID uuid.UUID  `json:"shared_booking_id"`
	Status          string     `json:"status"`
	Player1ID       uuid.UUID  `json:"player1_id"`
	Player2ID       uuid.UUID  `json:"player2_id"`
	ActorID         *uuid.UUID `json:"actor_id,omitempty"`
	CourtID         uuid.UUID  `json:"court_id"`
	BookingDate     string     `json:"booking_date"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	TotalCost       float64    `json:"total_cost"`
	FinalBookingID  *uuid.UUID `json:"final_booking_id,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
}

// Recipients returns the players who should be told about the event: the
// counterpart of the actor, or both players when there is no actor.
func (d SharedBookingEventData) Recipients() []uuid.UUID {
	if d.ActorID == nil {
		return []uuid.UUID{d.Player1ID, d.Player2ID}
	}
	if *d.ActorID == d.Player1ID {
		return []uuid.UUID{d.Player2ID}
	}
	return []uuid.UUID{d.Player1ID}
}
