package middleware

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"authguard/internal/apperrors"
	"authguard/internal/config"
	"authguard/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles every client IP with a token bucket
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	requests int
	window   time.Duration
	idleTTL  time.Duration
}

// NewRateLimiter refills Requests tokens per Window seconds. Burst defaults
// to Requests.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	window := time.Duration(cfg.Window) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	requests := cfg.Requests
	if requests <= 0 {
		requests = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = requests
	}

	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Every(window / time.Duration(requests)),
		burst:    burst,
		requests: requests,
		window:   window,
		idleTTL:  3 * window,
	}
}

func (rl *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Cleanup drops buckets that have been idle long enough to be full again
func (rl *RateLimiter) Cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idleTTL {
			delete(rl.visitors, key)
		}
	}
}

// Middleware rejects requests once the client's bucket is empty
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
			c.Next()
			return
		}

		now := time.Now()
		limiter := rl.getLimiter(c.ClientIP(), now)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		if !limiter.AllowN(now, 1) {
			delay := time.Duration(float64(time.Second) / float64(rl.rate))
			retry := int(math.Ceil(delay.Seconds()))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(now.Add(delay).Unix(), 10))
			c.Header("Retry-After", strconv.Itoa(retry))
			abort(c, apperrors.TooManyRequests("Too many requests, please try again later."))
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(now.Add(rl.window).Unix(), 10))
		c.Next()
	}
}

// AuthRateLimit applies the fixed-window credential limit per client IP
func AuthRateLimit(manager *ratelimit.Manager, cfg config.RateLimitConfig) gin.HandlerFunc {
	minutes := int(math.Ceil(cfg.AuthWindow.Minutes()))
	message := fmt.Sprintf("Too many authentication attempts, please try again after %d minutes", minutes)

	return func(c *gin.Context) {
		key := "auth:" + c.ClientIP()
		res := manager.Allow(c.Request.Context(), key, cfg.AuthMax, cfg.AuthWindow)

		if !res.Reset.IsZero() {
			c.Header("RateLimit-Limit", strconv.Itoa(cfg.AuthMax))
			c.Header("RateLimit-Remaining", strconv.Itoa(res.Remaining))
			c.Header("RateLimit-Reset", strconv.Itoa(int(math.Ceil(time.Until(res.Reset).Seconds()))))
		}
		if !res.Allowed {
			abort(c, apperrors.TooManyRequests(message))
			return
		}
		c.Next()
	}
}
