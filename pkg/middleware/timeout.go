package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestTimeout puts a deadline on the request context, using the route
// override when one is configured. Handlers observe the deadline through the
// context; if one gives up without writing, a 504 is returned.
func RequestTimeout(cfg *config.TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		timeout := cfg.TimeoutForRoute(c.Request.Method, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Writer.Written() {
			return
		}

		logger.WarnContext(ctx, "Request timeout",
			zap.String("path", route),
			zap.String("method", c.Request.Method),
			zap.Duration("timeout", timeout),
		)
		c.Header("X-Timeout", "true")
		common.ErrorResponse(c, http.StatusGatewayTimeout, "Request timeout")
		c.Abort()
	}
}
