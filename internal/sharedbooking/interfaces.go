package sharedbooking

import (
	"context"
	"time"

	"github.com/courtmate/tennis-platform/internal/courts"
	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/google/uuid"
)

// RepositoryInterface defines persistence for shared bookings
type RepositoryInterface interface {
	Create(ctx context.Context, sb *SharedBooking) error
	GetByID(ctx context.Context, id uuid.UUID) (*SharedBooking, error)
	// Update persists sb if its version is unchanged and bumps the version.
	Update(ctx context.Context, sb *SharedBooking) error
	HasPendingBetween(ctx context.Context, a, b uuid.UUID) (bool, error)
	// Confirm books the slot and marks sb confirmed in one transaction.
	Confirm(ctx context.Context, sb *SharedBooking, at time.Time) (uuid.UUID, error)
	ExpireDue(ctx context.Context, now time.Time) ([]*SharedBooking, error)
	ListForPlayer(ctx context.Context, playerID uuid.UUID, includeExpired bool) ([]*SharedBooking, error)
	PendingForPlayer(ctx context.Context, playerID uuid.UUID, now time.Time) ([]*SharedBooking, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// PlayerLookup loads negotiating players
type PlayerLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*players.Player, error)
}

// CourtLookup loads courts and checks slot availability
type CourtLookup interface {
	GetCourt(ctx context.Context, id uuid.UUID) (*courts.Court, error)
	IsSlotAvailable(ctx context.Context, courtID uuid.UUID, date time.Time, start, end courts.TimeOfDay) (bool, error)
}

// GeoService locates players and suggests courts fair to both
type GeoService interface {
	Resolve(ctx context.Context, text string) *geo.Coordinates
	SuggestMeetingPoints(ctx context.Context, a, b geo.Coordinates, maxResults int) ([]geo.MeetingPoint, error)
}
