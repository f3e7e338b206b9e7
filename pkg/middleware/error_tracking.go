package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/errors"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SentryMiddleware attaches a per-request Sentry hub.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorHandler reports unexpected errors recorded on the context to Sentry.
// Place it after the other middleware so it sees the final status.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		errors.AddBreadcrumbForRequest(c.Request.Method, c.Request.URL.Path, status, duration)

		for _, ginErr := range c.Errors {
			if errors.ShouldReportError(ginErr.Err, status) {
				captureError(c, ginErr.Err, status, duration)
			}
		}

		if status >= http.StatusInternalServerError && len(c.Errors) == 0 {
			hub := hubFor(c)
			hub.WithScope(func(scope *sentry.Scope) {
				tagScope(scope, c, status)
				hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s %s", status, c.Request.Method, c.FullPath()))
			})
		}
	}
}

// RecoveryWithSentry turns panics into a 500 and reports them.
func RecoveryWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				hub := hubFor(c)
				hub.WithScope(func(scope *sentry.Scope) {
					tagScope(scope, c, http.StatusInternalServerError)
					scope.SetContext("panic", map[string]interface{}{
						"value":      fmt.Sprintf("%v", rec),
						"stacktrace": string(debug.Stack()),
					})
					hub.RecoverWithContext(c.Request.Context(), rec)
				})

				logger.ErrorContext(c.Request.Context(), "panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
				)
				common.ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
				c.Abort()
			}
		}()

		c.Next()
	}
}

func captureError(c *gin.Context, err error, status int, duration time.Duration) {
	hub := hubFor(c)
	hub.WithScope(func(scope *sentry.Scope) {
		tagScope(scope, c, status)
		scope.SetContext("http", map[string]interface{}{
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"status_code": status,
			"duration_ms": duration.Milliseconds(),
			"user_agent":  c.Request.UserAgent(),
		})
		hub.CaptureException(err)
	})
}

func tagScope(scope *sentry.Scope, c *gin.Context, status int) {
	scope.SetRequest(c.Request)
	scope.SetLevel(sentryLevel(status))
	scope.SetTag("http.method", c.Request.Method)
	scope.SetTag("http.status_code", fmt.Sprintf("%d", status))
	scope.SetTag("endpoint", c.FullPath())
	if id := GetCorrelationID(c); id != "" {
		scope.SetTag("correlation_id", id)
	}
	if playerID, err := GetUserID(c); err == nil {
		scope.SetUser(sentry.User{ID: playerID.String(), IPAddress: c.ClientIP()})
	}
}

func hubFor(c *gin.Context) *sentry.Hub {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		return hub
	}
	return sentry.CurrentHub().Clone()
}

func sentryLevel(status int) sentry.Level {
	switch {
	case status >= 500:
		return sentry.LevelError
	case status == http.StatusTooManyRequests:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
