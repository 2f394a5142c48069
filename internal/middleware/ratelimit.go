package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"sportclub/internal/pkg/response"
)

// UserRateLimiter keeps one token bucket per authenticated user.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*limiterEntry
	every    rate.Limit
	burst    int
	idle     time.Duration
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewUserRateLimiter(every time.Duration, burst int) *UserRateLimiter {
	return &UserRateLimiter{
		limiters: make(map[int64]*limiterEntry),
		every:    rate.Every(every),
		burst:    burst,
		idle:     time.Hour,
	}
}

func (l *UserRateLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	entry, ok := l.limiters[userID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[userID] = entry
	}
	entry.lastAccess = time.Now()
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// Sweep drops buckets idle for more than an hour.
func (l *UserRateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	threshold := time.Now().Add(-l.idle)
	for id, e := range l.limiters {
		if e.lastAccess.Before(threshold) {
			delete(l.limiters, id)
		}
	}
}

// Middleware rejects with 429 once the caller's bucket is empty. Must run
// after JWTAuth.
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	retryAfter := strconv.Itoa(max(int(time.Duration(float64(time.Second)/float64(l.every)).Seconds()), 1))
	return func(c *gin.Context) {
		if !l.Allow(c.GetInt64("user_id")) {
			c.Header("Retry-After", retryAfter)
			response.Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
