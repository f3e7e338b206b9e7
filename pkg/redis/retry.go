package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/courtmate/tennis-platform/pkg/resilience"
	"github.com/redis/go-redis/v9"
)

// Replies with these prefixes mean the command itself is wrong; repeating it
// cannot help.
var permanentReplyPrefixes = []string{
	"WRONGTYPE",
	"ERR SYNTAX",
	"ERR INVALID",
	"ERR UNKNOWN",
	"NOAUTH",
	"WRONGPASS",
	"NOPERM",
}

func retryPolicy() resilience.RetryConfig {
	policy := resilience.DefaultRetryConfig()
	policy.InitialBackoff = 50 * time.Millisecond
	policy.MaxBackoff = time.Second
	policy.RetryableChecker = isRedisRetryable
	return policy
}

// RetryableOperation runs op, retrying connection-level failures with a
// short backoff.
func RetryableOperation[T any](ctx context.Context, op func(context.Context) (T, error), name string) (T, error) {
	var zero T
	result, err := resilience.RetryWithName(ctx, retryPolicy(), func(ctx context.Context) (interface{}, error) {
		return op(ctx)
	}, name)
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// RetryableGeoAdd indexes a member, retrying transient failures.
func RetryableGeoAdd(ctx context.Context, idx GeoIndex, key string, longitude, latitude float64, member string) error {
	_, err := RetryableOperation(ctx, func(ctx context.Context) (bool, error) {
		return true, idx.GeoAdd(ctx, key, longitude, latitude, member)
	}, "redis.geoadd")
	return err
}

// RetryableNearbyMembers searches the index, retrying transient failures.
func RetryableNearbyMembers(ctx context.Context, idx GeoIndex, key string, longitude, latitude, radiusKm float64, limit int) ([]string, error) {
	return RetryableOperation(ctx, func(ctx context.Context) ([]string, error) {
		return idx.NearbyMembers(ctx, key, longitude, latitude, radiusKm, limit)
	}, "redis.geosearch")
}

// isRedisRetryable treats everything as transient except cancellation, a
// missing key and replies that reject the command.
func isRedisRetryable(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, redis.Nil):
		return false
	}

	reply := strings.ToUpper(strings.TrimSpace(err.Error()))
	for _, prefix := range permanentReplyPrefixes {
		if strings.HasPrefix(reply, prefix) {
			return false
		}
	}
	return true
}
