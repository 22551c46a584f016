package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chainguard/api/internal/config"
	"github.com/chainguard/api/internal/pkg/apperror"
	"github.com/chainguard/api/internal/pkg/response"
)

type RateLimiter interface {
	AllowRequest(ctx context.Context, client string, window time.Duration, max int) (bool, time.Duration, error)
}

// RateLimit applies a fixed window per client IP. Limiter errors let the
// request through.
func RateLimit(limiter RateLimiter, cfg config.RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		allowed, retryAfter, err := limiter.AllowRequest(c.Request.Context(), c.ClientIP(), cfg.Window, cfg.MaxRequests)
		if err != nil {
			logger.Warn("Rate limiter unavailable", zap.String("client_ip", c.ClientIP()), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			response.Error(c, apperror.RateLimitError())
			c.Abort()
			return
		}

		c.Next()
	}
}
