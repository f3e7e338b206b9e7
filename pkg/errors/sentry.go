package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/getsentry/sentry-go"
)

// Headers never forwarded in breadcrumbs.
var sensitiveHeaders = []string{"Authorization", "Cookie", "Idempotency-Key"}

// SentryConfig configures error reporting.
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
	EnableTracing    bool
	ServerName       string
}

// DefaultSentryConfig reads SENTRY_* variables. Production samples 10% of
// traces unless told otherwise.
func DefaultSentryConfig() *SentryConfig {
	env := firstEnv("development", "ENVIRONMENT", "SENTRY_ENVIRONMENT")
	tracesDefault := 1.0
	if env == "production" {
		tracesDefault = 0.1
	}

	return &SentryConfig{
		DSN:              os.Getenv("SENTRY_DSN"),
		Environment:      env,
		Release:          os.Getenv("SENTRY_RELEASE"),
		SampleRate:       rateFromEnv("SENTRY_SAMPLE_RATE", 1.0),
		TracesSampleRate: rateFromEnv("SENTRY_TRACES_SAMPLE_RATE", tracesDefault),
		Debug:            os.Getenv("SENTRY_DEBUG") == "true",
		EnableTracing:    os.Getenv("SENTRY_ENABLE_TRACING") != "false",
		ServerName:       os.Getenv("SERVICE_NAME"),
	}
}

// InitSentry installs the global Sentry client. Without a DSN it returns an
// error and reporting stays a no-op.
func InitSentry(cfg *SentryConfig) error {
	if cfg.DSN == "" {
		return stderrors.New("sentry DSN is not configured")
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		SampleRate:       cfg.SampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		EnableTracing:    cfg.EnableTracing,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend:       dropLowSeverity,
		BeforeBreadcrumb: scrubBreadcrumb,
	})
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	return nil
}

func dropLowSeverity(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	switch event.Level {
	case sentry.LevelDebug, sentry.LevelInfo:
		return nil
	}
	return event
}

func scrubBreadcrumb(crumb *sentry.Breadcrumb, _ *sentry.BreadcrumbHint) *sentry.Breadcrumb {
	for _, h := range sensitiveHeaders {
		delete(crumb.Data, h)
	}
	return crumb
}

// Flush waits up to timeout for queued events to be sent.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// CaptureErrorWithContext reports a failure no HTTP handler will see, such
// as a background sweep, tagged with whatever request identity ctx carries.
func CaptureErrorWithContext(ctx context.Context, err error, extras map[string]interface{}) *sentry.EventID {
	if err == nil {
		return nil
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	var id *sentry.EventID
	hub.WithScope(func(scope *sentry.Scope) {
		if len(extras) > 0 {
			scope.SetContext("details", extras)
		}
		if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
			scope.SetTag("correlation_id", cid)
		}
		if pid := logger.PlayerIDFromContext(ctx); pid != "" {
			scope.SetUser(sentry.User{ID: pid})
		}
		id = hub.CaptureException(err)
	})
	return id
}

// AddBreadcrumbForRequest records a finished request on the current hub.
func AddBreadcrumbForRequest(method, path string, statusCode int, duration time.Duration) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "http",
		Category:  "http.request",
		Level:     sentry.LevelInfo,
		Message:   method + " " + path,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"method":      method,
			"url":         path,
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// ShouldReportError reports whether err deserves a Sentry event. Typed client
// errors (validation, business rule, conflict, not found) and plain 4xx
// answers are expected traffic; throttling is reported.
func ShouldReportError(err error, statusCode int) bool {
	if err == nil {
		return false
	}
	var appErr *common.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code >= http.StatusInternalServerError
	}
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode < http.StatusBadRequest || statusCode >= http.StatusInternalServerError
}

func firstEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return fallback
}

// rateFromEnv parses a sampling rate in [0, 1].
func rateFromEnv(key string, fallback float64) float64 {
	rate, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || rate < 0 || rate > 1 {
		return fallback
	}
	return rate
}
