package middleware

import (
	"strings"

	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader carries the request ID in and out.
	CorrelationIDHeader = "X-Request-ID"
	// CorrelationIDKey is the gin context key holding the request ID.
	CorrelationIDKey = "correlation_id"

	legacyCorrelationHeader = "X-Correlation-ID"
)

// CorrelationID reuses a caller-supplied UUID request ID or mints one, and
// threads it through the gin context, the request context and the response.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := incomingCorrelationID(c)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(CorrelationIDKey, id)
		c.Request = c.Request.WithContext(logger.ContextWithCorrelationID(c.Request.Context(), id))
		c.Header(CorrelationIDHeader, id)

		c.Next()
	}
}

func incomingCorrelationID(c *gin.Context) string {
	for _, h := range []string{CorrelationIDHeader, legacyCorrelationHeader} {
		v := strings.TrimSpace(c.GetHeader(h))
		if v == "" {
			continue
		}
		if _, err := uuid.Parse(v); err == nil {
			return v
		}
		return ""
	}
	return ""
}

// GetCorrelationID returns the request ID set by CorrelationID.
func GetCorrelationID(c *gin.Context) string {
	if id := c.GetString(CorrelationIDKey); id != "" {
		return id
	}
	return logger.CorrelationIDFromContext(c.Request.Context())
}
