package geo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/courtmate/tennis-platform/pkg/cache"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"go.uber.org/zap"
)

// LocationCache stores resolved coordinates per normalized location text.
type LocationCache interface {
	Get(ctx context.Context, text string) (*Coordinates, bool)
	Set(ctx context.Context, text string, coords Coordinates)
}

// NormalizeKey is the cache key for a location string.
func NormalizeKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// MemoryCache is a process-lifetime map. The vocabulary of locations is small
// so nothing is evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Coordinates
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Coordinates)}
}

func (m *MemoryCache) Get(_ context.Context, text string) (*Coordinates, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.entries[NormalizeKey(text)]
	if !ok {
		return nil, false
	}
	return &c, true
}

func (m *MemoryCache) Set(_ context.Context, text string, coords Coordinates) {
	m.mu.Lock()
	m.entries[NormalizeKey(text)] = coords
	m.mu.Unlock()
}

// Len reports the number of cached locations.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// TieredCache checks memory first and falls back to Redis, so instances share
// geocodes without each spending provider quota. Redis failures are logged
// and treated as misses.
type TieredCache struct {
	memory *MemoryCache
	shared *cache.Manager
	ttl    time.Duration
}

// NewTieredCache wraps a memory cache with an optional Redis tier.
func NewTieredCache(memory *MemoryCache, shared *cache.Manager, ttl time.Duration) *TieredCache {
	return &TieredCache{memory: memory, shared: shared, ttl: ttl}
}

func (t *TieredCache) Get(ctx context.Context, text string) (*Coordinates, bool) {
	if c, ok := t.memory.Get(ctx, text); ok {
		geocodeLookups.WithLabelValues("memory_hit").Inc()
		return c, true
	}

	var coords Coordinates
	err := t.shared.Get(ctx, cache.Keys.GeocodedLocation(text), &coords)
	switch {
	case err == nil:
		geocodeLookups.WithLabelValues("redis_hit").Inc()
		t.memory.Set(ctx, text, coords)
		return &coords, true
	case !errors.Is(err, cache.ErrMiss):
		logger.WarnContext(ctx, "geocode cache read failed", zap.Error(err))
	}
	return nil, false
}

func (t *TieredCache) Set(ctx context.Context, text string, coords Coordinates) {
	t.memory.Set(ctx, text, coords)
	if err := t.shared.Set(ctx, cache.Keys.GeocodedLocation(text), coords, t.ttl); err != nil {
		logger.WarnContext(ctx, "geocode cache write failed", zap.Error(err))
	}
}
