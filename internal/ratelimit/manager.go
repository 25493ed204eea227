package ratelimit

import (
	"context"
	"sync"
	"time"

	"authguard/internal/config"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	redisBreakerDuration = 30 * time.Second
	redisKeyPrefix       = "authguard:rl"
)

// Manager prefers Redis and falls back to process memory while Redis is
// unavailable.
type Manager struct {
	nowFn  func() time.Time
	memory *MemoryLimiter
	redis  Limiter

	mu           sync.Mutex
	breakerUntil time.Time
}

// NewManager builds a manager from config. Redis is used when an address
// is configured.
func NewManager(cfg config.RateLimitConfig) *Manager {
	m := &Manager{nowFn: time.Now, memory: NewMemoryLimiter()}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		m.redis = NewRedisLimiter(client, redisKeyPrefix)
	}
	return m
}

// NewManagerWithLimiter uses primary instead of Redis; nil means memory only
func NewManagerWithLimiter(primary Limiter, nowFn func() time.Time) *Manager {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Manager{nowFn: nowFn, memory: NewMemoryLimiter(), redis: primary}
}

// Allow checks key against limit per window using the best available backend.
func (m *Manager) Allow(ctx context.Context, key string, limit int, window time.Duration) Result {
	now := m.nowFn()
	if m.redis != nil && !m.isBreakerActive(now) {
		result, err := m.redis.Allow(ctx, key, limit, window, now)
		if err == nil {
			return result
		}
		m.tripBreaker(err, now)
	}
	result, _ := m.memory.Allow(ctx, key, limit, window, now)
	return result
}

// Prune drops in-memory counters whose window has ended
func (m *Manager) Prune(window time.Duration) {
	m.memory.Prune(window, m.nowFn())
}

// Close releases the Redis client, if any
func (m *Manager) Close() error {
	if rl, ok := m.redis.(*RedisLimiter); ok {
		return rl.Close()
	}
	return nil
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}
