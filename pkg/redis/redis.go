package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Nil is returned by reads of a missing key.
const Nil = redis.Nil

const pingTimeout = 5 * time.Second

// Client is a go-redis client with the cache and geo helpers the API uses.
type Client struct {
	*redis.Client
}

// NewRedisClient dials Redis and fails unless it answers a PING.
func NewRedisClient(cfg *config.RedisConfig, timeouts config.TimeoutConfig) (*Client, error) {
	client := redis.NewClient(options(cfg, timeouts.RedisOperationTimeoutDuration()))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr(), err)
	}
	return Wrap(client), nil
}

func options(cfg *config.RedisConfig, opTimeout time.Duration) *redis.Options {
	return &redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	}
}

// Wrap adapts an existing go-redis client such as one from redismock.
func Wrap(client *redis.Client) *Client {
	return &Client{Client: client}
}

func (c *Client) SetWithExpiration(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, key, value, ttl).Err()
}

// GetString returns Nil when key is absent.
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	return c.Get(ctx, key).Result()
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Del(ctx, keys...).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.Client.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// GeoAdd places member at the given position, moving it if already indexed.
func (c *Client) GeoAdd(ctx context.Context, key string, longitude, latitude float64, member string) error {
	loc := &redis.GeoLocation{Name: member, Longitude: longitude, Latitude: latitude}
	return c.Client.GeoAdd(ctx, key, loc).Err()
}

// NearbyMembers lists members within radiusKm of the point, nearest first.
// A zero limit returns every match.
func (c *Client) NearbyMembers(ctx context.Context, key string, longitude, latitude, radiusKm float64, limit int) ([]string, error) {
	return c.GeoSearch(ctx, key, &redis.GeoSearchQuery{
		Longitude:  longitude,
		Latitude:   latitude,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
}

// GeoRemove drops member from the index. GEO sets are sorted sets underneath.
func (c *Client) GeoRemove(ctx context.Context, key string, member string) error {
	return c.ZRem(ctx, key, member).Err()
}
