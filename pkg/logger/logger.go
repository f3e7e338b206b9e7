package logger

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

type contextKey string

const (
	correlationIDContextKey contextKey = "correlation_id"
	playerIDContextKey      contextKey = "player_id"
)

// Init builds the process logger: JSON with ISO timestamps in production,
// colored console output elsewhere. A parseable level ("debug", "warn", ...)
// overrides the environment default.
func Init(environment, level string) error {
	built, err := configFor(environment, level).Build()
	if err != nil {
		return err
	}
	log = built
	return nil
}

func configFor(environment, level string) zap.Config {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var lvl zapcore.Level
	if level != "" && lvl.UnmarshalText([]byte(strings.ToLower(level))) == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg
}

// Get returns the process logger, falling back to a development logger
// before Init has run.
func Get() *zap.Logger {
	if log == nil {
		log, _ = zap.NewDevelopment()
	}
	return log
}

// Replace installs l and returns a func that restores the previous logger.
func Replace(l *zap.Logger) func() {
	previous := log
	log = l
	return func() { log = previous }
}

// Fields returns the request-scoped fields carried by ctx: correlation ID,
// acting player and trace ID.
func Fields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if id := CorrelationIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String(string(correlationIDContextKey), id))
	}
	if id := PlayerIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String(string(playerIDContextKey), id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	return fields
}

// WithContext returns the process logger with the fields from ctx attached.
func WithContext(ctx context.Context) *zap.Logger {
	fields := Fields(ctx)
	if len(fields) == 0 {
		return Get()
	}
	return Get().With(fields...)
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}

func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return withValue(ctx, correlationIDContextKey, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) string {
	return valueOf(ctx, correlationIDContextKey)
}

// ContextWithPlayerID tags ctx with the authenticated player.
func ContextWithPlayerID(ctx context.Context, playerID string) context.Context {
	return withValue(ctx, playerIDContextKey, playerID)
}

func PlayerIDFromContext(ctx context.Context) string {
	return valueOf(ctx, playerIDContextKey)
}

func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Get().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Get().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }

// Fatal logs and exits the process.
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

func DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Debug(msg, fields...)
}

func InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Info(msg, fields...)
}

func WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Warn(msg, fields...)
}

func ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Error(msg, fields...)
}

// Sync flushes buffered entries.
func Sync() error {
	if log == nil {
		return nil
	}
	return log.Sync()
}
