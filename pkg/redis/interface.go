package redis

import (
	"context"
	"time"
)

// KV is the string cache surface used by the cache manager and idempotency.
type KV interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// GeoIndex stores members by position, for the nearby-player index.
type GeoIndex interface {
	GeoAdd(ctx context.Context, key string, longitude, latitude float64, member string) error
	NearbyMembers(ctx context.Context, key string, longitude, latitude, radiusKm float64, limit int) ([]string, error)
	GeoRemove(ctx context.Context, key string, member string) error
}

// ClientInterface is everything the API needs from Redis.
type ClientInterface interface {
	KV
	GeoIndex
	Close() error
}

var _ ClientInterface = (*Client)(nil)
