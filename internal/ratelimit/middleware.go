package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tallyboard/internal/logger"
	"tallyboard/internal/metrics"
)

// ClientKey identifies the caller: first X-Forwarded-For hop, then
// X-Real-IP, then the connection address.
func ClientKey(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}
	return c.ClientIP()
}

// Middleware rejects callers over their budget with 429. Limiter failures
// let the request through.
func Middleware(l Limiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ClientKey(c)
		d, err := l.Admit(c.Request.Context(), key)
		if err != nil {
			logger.FromContext(c.Request.Context()).WithError(err).
				WithField("client", key).Warn("Rate limiter unavailable, admitting request.")
			m.IncRateLimitError()
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retry := int(math.Ceil(time.Until(d.ResetAt).Seconds()))
			if retry < 1 {
				retry = 1
			}
			h.Set("Retry-After", strconv.Itoa(retry))
			m.IncRateLimited()
			logrus.WithFields(logrus.Fields{
				"client": key,
				"path":   c.Request.URL.Path,
			}).Debug("Request rate limited.")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
