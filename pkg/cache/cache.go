package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/courtmate/tennis-platform/pkg/logger"
	redisclient "github.com/courtmate/tennis-platform/pkg/redis"
	"go.uber.org/zap"
)

// Manager handles caching operations with JSON serialization
type Manager struct {
	redis redisclient.ClientInterface
}

// NewManager creates a new cache manager. A nil client disables caching:
// every lookup misses and writes are dropped.
func NewManager(redis redisclient.ClientInterface) *Manager {
	return &Manager{redis: redis}
}

// ErrMiss is returned by Get when the key is absent or caching is disabled.
var ErrMiss = errors.New("cache miss")

// Get retrieves a cached value and unmarshals it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	if m == nil || m.redis == nil {
		return ErrMiss
	}

	data, err := m.redis.GetString(ctx, key)
	if errors.Is(err, redisclient.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), result)
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m == nil || m.redis == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return m.redis.SetWithExpiration(ctx, key, string(data), ttl)
}

// GetOrSet retrieves from cache or executes fn and caches the result.
// Cache read or write failures are logged and never fail the call.
func (m *Manager) GetOrSet(ctx context.Context, key string, ttl time.Duration, result interface{}, fn func() (interface{}, error)) error {
	err := m.Get(ctx, key, result)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrMiss) {
		logger.WarnContext(ctx, "cache read failed", zap.String("key", key), zap.Error(err))
	}

	data, err := fn()
	if err != nil {
		return err
	}

	if err := m.Set(ctx, key, data, ttl); err != nil {
		logger.WarnContext(ctx, "cache write failed", zap.String("key", key), zap.Error(err))
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, result)
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if m == nil || m.redis == nil {
		return nil
	}
	return m.redis.Delete(ctx, keys...)
}

// CacheKeys defines common cache key patterns
type CacheKeys struct{}

var Keys = CacheKeys{}

// GeocodedLocation returns the key for a resolved free-text location.
func (k CacheKeys) GeocodedLocation(text string) string {
	return "geocode:location:" + strings.ToLower(strings.TrimSpace(text))
}

// AverageCourtRate returns the key for the mean hourly rate of active courts.
func (k CacheKeys) AverageCourtRate() string {
	return "courts:average_rate"
}

// TrendingLocations returns the key for the trending locations snapshot.
func (k CacheKeys) TrendingLocations() string {
	return "courts:trending"
}

// CacheTTL defines common cache TTL durations
type CacheTTL struct{}

var TTL = CacheTTL{}

func (t CacheTTL) Short() time.Duration    { return 5 * time.Minute }
func (t CacheTTL) Medium() time.Duration   { return 15 * time.Minute }
func (t CacheTTL) VeryLong() time.Duration { return 30 * 24 * time.Hour }
