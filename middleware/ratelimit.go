package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/bsm/limiter"
	"github.com/wyfcoding/bsm/response"
	"github.com/wyfcoding/bsm/xerrors"
)

// RateLimit 以客户端 IP 为限流标识。限流组件故障时放行（fail-open）并记录告警。
func RateLimit(l limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		allowed, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "rate limiter internal error, fail-open applied", "key", key, "error", err)
			c.Next()
			return
		}

		if !allowed {
			slog.WarnContext(c.Request.Context(), "request rejected by rate limiter", "key", key, "path", c.Request.URL.Path)
			response.Error(c, xerrors.New(xerrors.ErrLimitExceeded, xerrors.CodeRateLimited, "too many requests", "access rate limit exceeded", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
