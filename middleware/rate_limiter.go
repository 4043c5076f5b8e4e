package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterStore holds a map of scheduling keys (clinic+doctor, or IP
// as a fallback) to their rate limiters.
type rateLimiterStore struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

var limiterStore = &rateLimiterStore{
	limiters: make(map[string]*rate.Limiter),
}

// getLimiter returns the rate limiter for a given key, creating one if it doesn't exist.
func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[key]
	if !exists {
		// Configure rate: 200 requests per minute with burst capacity of 200.
		limiter = rate.NewLimiter(rate.Every(time.Minute/200), 200)
		s.limiters[key] = limiter
	}
	return limiter
}

// rateLimitKey scopes contention the way the scheduler itself does: one
// writer per (clinic, doctor). Query/path params cover every endpoint
// except the JSON-bodied booking POSTs, which fall back to client IP
// rather than buffering and restoring the request body.
func rateLimitKey(c *gin.Context) string {
	clinicID := c.Query("clinicId")
	doctorID := c.Param("id")
	if doctorID == "" {
		doctorID = c.Query("doctorId")
	}
	if clinicID != "" || doctorID != "" {
		return clinicID + ":" + doctorID
	}
	return getClientIP(c)
}

// RateLimitMiddleware limits requests per (clinic, doctor), falling back
// to per-IP when neither is present on the request.
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zap.L()
		key := rateLimitKey(c)
		limiter := limiterStore.getLimiter(key)
		if !limiter.Allow() {
			logger.Warn("Rate limit exceeded", zap.String("key", key))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}
