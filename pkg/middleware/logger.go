package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Query parameters that pin down where a player is; their values are masked.
var locationParams = []string{"lat", "lng", "latitude", "longitude", "location", "address"}

// RequestLogger writes one line per request. Probe and scrape endpoints are
// skipped, bodies are never logged and location parameters are masked.
func RequestLogger(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if quietPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", redactQuery(c.Request.URL.RawQuery)),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		logger.WithContext(c.Request.Context()).Log(levelFor(status, len(c.Errors) > 0), "request completed", fields...)
	}
}

func levelFor(status int, hasErrors bool) zapcore.Level {
	switch {
	case status >= 500 || hasErrors:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func quietPath(path string) bool {
	return path == "/healthz" || path == "/metrics" || strings.HasPrefix(path, "/health/")
}

func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparseable]"
	}
	for _, key := range locationParams {
		if values.Has(key) {
			values.Set(key, "***")
		}
	}
	return values.Encode()
}
