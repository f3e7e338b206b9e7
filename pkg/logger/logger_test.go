package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextWithCorrelationID(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "test-id")
	assert.Equal(t, "test-id", CorrelationIDFromContext(ctx))
	assert.Empty(t, PlayerIDFromContext(ctx))
}

func TestWithContextAddsFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	ctx := ContextWithCorrelationID(context.Background(), "context-id")
	ctx = ContextWithPlayerID(ctx, "player-7")

	InfoContext(ctx, "test message")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "context-id", fields["correlation_id"])
	assert.Equal(t, "player-7", fields["player_id"])
	_, hasTrace := fields["trace_id"]
	assert.False(t, hasTrace)
}

func TestWithContextNoFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	WithContext(context.Background()).Info("bare")

	require.Len(t, recorded.All(), 1)
	assert.Empty(t, recorded.All()[0].ContextMap())
}

func TestInitHonoursLevel(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	require.NoError(t, Init("production", "warn"))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Get().Core().Enabled(zapcore.WarnLevel))
}

func TestFieldsNilContext(t *testing.T) {
	var ctx context.Context
	assert.Empty(t, Fields(ctx))
	assert.Empty(t, CorrelationIDFromContext(ctx))
}

func TestConfigForDevelopmentIgnoresBadLevel(t *testing.T) {
	cfg := configFor("development", "loud")
	assert.True(t, cfg.Development)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
}
