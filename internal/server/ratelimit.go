package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/invoicedoc/internal/ratelimit"
)

// limitWrites throttles mutating requests per invoice. Limiter failures let
// the request through.
func (s *Server) limitWrites() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		res, err := s.limiter.AllowDocument(c.Request.Context(), c.Param("id"))
		if err != nil || res.Allowed {
			if err == nil {
				c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
				c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			}
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
		AbortWithError(c, ratelimit.ErrRateLimited)
	}
}
