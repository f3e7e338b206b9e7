package geo

import (
	"context"

	redisclient "github.com/courtmate/tennis-platform/pkg/redis"
	"github.com/google/uuid"
)

const playersGeoKey = "players:geo"

// PlayerIndex keeps the last known position of each player in a Redis GEO set
// so nearby counts don't need a table scan.
type PlayerIndex struct {
	redis redisclient.ClientInterface
}

// NewPlayerIndex returns nil when Redis is unavailable; a nil index is a no-op.
func NewPlayerIndex(redis redisclient.ClientInterface) *PlayerIndex {
	if redis == nil {
		return nil
	}
	return &PlayerIndex{redis: redis}
}

// Track records the player's position.
func (p *PlayerIndex) Track(ctx context.Context, playerID uuid.UUID, c Coordinates) error {
	if p == nil {
		return nil
	}
	return redisclient.RetryableGeoAdd(ctx, p.redis, playersGeoKey, c.Longitude, c.Latitude, playerID.String())
}

// Forget drops a player, e.g. after deactivation.
func (p *PlayerIndex) Forget(ctx context.Context, playerID uuid.UUID) error {
	if p == nil {
		return nil
	}
	return p.redis.GeoRemove(ctx, playersGeoKey, playerID.String())
}

// NearbyPlayers lists indexed players within radiusKm of c, nearest first,
// excluding one ID. Members that are not player IDs are skipped.
func (p *PlayerIndex) NearbyPlayers(ctx context.Context, c Coordinates, radiusKm float64, exclude uuid.UUID) ([]uuid.UUID, error) {
	if p == nil {
		return nil, nil
	}
	members, err := redisclient.RetryableNearbyMembers(ctx, p.redis, playersGeoKey, c.Longitude, c.Latitude, radiusKm, 0)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil || id == exclude {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
