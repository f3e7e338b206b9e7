package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGeoAddAndRadius(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)
	ctx := context.Background()

	mock.ExpectGeoAdd("players:geo", &redis.GeoLocation{Longitude: 34.78, Latitude: 32.08, Name: "p1"}).SetVal(1)
	require.NoError(t, client.GeoAdd(ctx, "players:geo", 34.78, 32.08, "p1"))

	mock.ExpectGeoSearch("players:geo", &redis.GeoSearchQuery{
		Longitude:  34.78,
		Latitude:   32.08,
		Radius:     25,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      10,
	}).SetVal([]string{"p1", "p2"})

	members, err := client.NearbyMembers(ctx, "players:geo", 34.78, 32.08, 25, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, members)

	mock.ExpectZRem("players:geo", "p2").SetVal(1)
	require.NoError(t, client.GeoRemove(ctx, "players:geo", "p2"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientStringOps(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)
	ctx := context.Background()

	mock.ExpectSet("k", "v", time.Minute).SetVal("OK")
	require.NoError(t, client.SetWithExpiration(ctx, "k", "v", time.Minute))

	mock.ExpectGet("k").SetVal("v")
	val, err := client.GetString(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	mock.ExpectGet("missing").RedisNil()
	_, err = client.GetString(ctx, "missing")
	assert.ErrorIs(t, err, Nil)

	mock.ExpectExists("k").SetVal(1)
	exists, err := client.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRedisRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"missing key", redis.Nil, false},
		{"cancelled", context.Canceled, false},
		{"wrong type", errors.New("WRONGTYPE Operation against a key"), false},
		{"bad auth", errors.New("NOAUTH Authentication required."), false},
		{"deadline", context.DeadlineExceeded, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"unknown", errors.New("something odd"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRedisRetryable(tt.err))
		})
	}
}

func TestRetryableNearbyMembersRetriesConnectionErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)
	q := &redis.GeoSearchQuery{Longitude: 2.35, Latitude: 48.85, Radius: 5, RadiusUnit: "km", Sort: "ASC"}

	mock.ExpectGeoSearch("players:geo", q).SetErr(errors.New("i/o timeout"))
	mock.ExpectGeoSearch("players:geo", q).SetVal([]string{"p9"})

	members, err := RetryableNearbyMembers(context.Background(), client, "players:geo", 2.35, 48.85, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"p9"}, members)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionsCarryPoolAndTimeouts(t *testing.T) {
	opts := options(&config.RedisConfig{Host: "cache", Port: "6380", DB: 2, PoolSize: 7}, 300*time.Millisecond)

	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 300*time.Millisecond, opts.ReadTimeout)
}
