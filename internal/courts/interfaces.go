package courts

import (
	"context"
	"time"

	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/google/uuid"
)

// RepositoryInterface defines the court queries used by the service
type RepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Court, error)
	ListActive(ctx context.Context, f Filters) ([]*Court, error)
	ListSorted(ctx context.Context, f Filters, sortBy SortMode, limit int) ([]*Court, error)
	AverageActiveRate(ctx context.Context) (float64, error)
	ActiveBookingsOn(ctx context.Context, date time.Time, courtID *uuid.UUID) (map[uuid.UUID][]Booking, error)
	IsSlotFree(ctx context.Context, courtID uuid.UUID, date time.Time, start, end TimeOfDay) (bool, error)
	RecentActivity(ctx context.Context, since time.Time) ([]CourtActivity, error)
}

// PlayerLookup loads the player a recommendation is for
type PlayerLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*players.Player, error)
}

// LocationResolver geocodes free-text locations
type LocationResolver interface {
	Resolve(ctx context.Context, text string) *geo.Coordinates
}
