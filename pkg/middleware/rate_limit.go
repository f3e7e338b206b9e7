package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/courtmate/tennis-platform/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit throttles requests per player, or per client IP before auth.
// Limiter failures fail open.
func RateLimit(limiter *ratelimit.Limiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	if limiter == nil || !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		endpointKey := c.Request.Method + ":" + route

		who := ratelimit.Subject{Kind: ratelimit.KindAnonymous, ID: c.ClientIP()}
		if who.ID == "" {
			who.ID = "unknown"
		}
		if playerID, err := GetUserID(c); err == nil {
			who = ratelimit.Subject{Kind: ratelimit.KindPlayer, ID: playerID.String()}
		}

		rule := limiter.RuleFor(endpointKey, who.Kind)
		if rule.Limit <= 0 {
			c.Next()
			return
		}

		result, err := limiter.Allow(c.Request.Context(), endpointKey, who, rule)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limit evaluation failed",
				zap.String("endpoint", endpointKey),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(result.Remaining, 0)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(wholeSeconds(result.ResetAfter, 0)))

		if result.Allowed {
			c.Next()
			return
		}

		retry := wholeSeconds(result.RetryAfter, 1)
		c.Header("Retry-After", strconv.Itoa(retry))
		logger.WarnContext(c.Request.Context(), "rate limit exceeded",
			zap.String("endpoint", endpointKey),
			zap.String("identity", who.ID),
			zap.Int("retry_after_seconds", retry),
		)

		common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
		c.Abort()
	}
}

func wholeSeconds(d time.Duration, floor int) int {
	return max(int(d.Round(time.Second)/time.Second), floor)
}
