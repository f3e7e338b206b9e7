package matching

import (
	"context"

	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/google/uuid"
)

// PlayerRepository defines the player queries used by matching
type PlayerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*players.Player, error)
	ListCandidates(ctx context.Context, q players.CandidateQuery) ([]*players.Player, error)
	UpdateCoordinates(ctx context.Context, id uuid.UUID, c geo.Coordinates) error
}

// LocationResolver geocodes free-text locations
type LocationResolver interface {
	Resolve(ctx context.Context, text string) *geo.Coordinates
}

// NearbyIndex tracks player positions for nearby counts
type NearbyIndex interface {
	Track(ctx context.Context, playerID uuid.UUID, c geo.Coordinates) error
	NearbyPlayers(ctx context.Context, c geo.Coordinates, radiusKm float64, exclude uuid.UUID) ([]uuid.UUID, error)
	Forget(ctx context.Context, playerID uuid.UUID) error
}
