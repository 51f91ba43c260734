package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/app/service/ratelimit"
	"github.com/fatflowers/clinicbilling/pkg/logctx"
	"github.com/fatflowers/clinicbilling/pkg/response"
)

// RateLimit limits callers by token subject, falling back to the client IP.
// Limiter failures let the request through.
func RateLimit(l ratelimit.Limiter, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if claims, ok := ClaimsFrom(c); ok && claims.Subject != "" {
			key = "sub:" + claims.Subject
		}

		res, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logctx.FromGin(c, base).Warnw("ratelimit_unavailable", "err", err)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			logctx.FromGin(c, base).Infow("ratelimit_exceeded", "key", key)
			c.Header("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
			response.Error(c, http.StatusTooManyRequests, "Too many requests", "")
			return
		}
		c.Next()
	}
}
