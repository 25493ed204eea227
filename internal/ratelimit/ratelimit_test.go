package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC)
	window := 15 * time.Minute

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "1.2.3.4", 3, window, now)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "1.2.3.4", 3, window, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 15, 0, 0, time.UTC), res.Reset)

	// other keys are independent
	res, _ = l.Allow(ctx, "5.6.7.8", 3, window, now)
	assert.True(t, res.Allowed)

	// next window starts fresh
	res, _ = l.Allow(ctx, "1.2.3.4", 3, window, now.Add(window))
	assert.True(t, res.Allowed)

	l.Prune(window, now.Add(window))
	assert.Len(t, l.counters, 1)
}

func TestMemoryLimiterDisabled(t *testing.T) {
	res, err := NewMemoryLimiter().Allow(context.Background(), "k", 0, time.Minute, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

type failingLimiter struct{ calls int }

func (f *failingLimiter) Allow(context.Context, string, int, time.Duration, time.Time) (Result, error) {
	f.calls++
	return Result{}, errors.New("connection refused")
}

func TestManagerFallsBackToMemory(t *testing.T) {
	primary := &failingLimiter{}
	now := time.Now()
	m := NewManagerWithLimiter(primary, func() time.Time { return now })

	assert.True(t, m.Allow(context.Background(), "k", 1, time.Minute).Allowed)
	assert.False(t, m.Allow(context.Background(), "k", 1, time.Minute).Allowed)

	// the breaker keeps the failing backend out of the path
	assert.Equal(t, 1, primary.calls)
}
