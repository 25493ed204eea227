package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFailure(t *testing.T) {
	policy := NewPolicy(5, time.Hour)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(30 * time.Minute)

	tests := []struct {
		name         string
		state        State
		wantAttempts int
		wantLocked   bool
		wantLockSet  bool
	}{
		{
			name:         "first failure",
			state:        State{},
			wantAttempts: 1,
		},
		{
			name:         "below threshold",
			state:        State{LoginAttempts: 3},
			wantAttempts: 4,
		},
		{
			name:         "reaching threshold locks",
			state:        State{LoginAttempts: 4},
			wantAttempts: 5,
			wantLocked:   true,
			wantLockSet:  true,
		},
		{
			name:         "expired lock resets counter",
			state:        State{LoginAttempts: 9, LockUntil: &past},
			wantAttempts: 1,
		},
		{
			name:         "active lock keeps existing lock",
			state:        State{LoginAttempts: 5, LockUntil: &future},
			wantAttempts: 6,
			wantLockSet:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := policy.RegisterFailure(tt.state, now)
			assert.Equal(t, tt.wantAttempts, out.State.LoginAttempts)
			assert.Equal(t, tt.wantLocked, out.Locked)
			if tt.wantLockSet {
				require.NotNil(t, out.State.LockUntil)
			} else {
				assert.Nil(t, out.State.LockUntil)
			}
		})
	}
}

func TestLockEngagesForConfiguredDuration(t *testing.T) {
	policy := NewPolicy(5, time.Hour)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	state := State{}
	for i := 0; i < 5; i++ {
		out := policy.RegisterFailure(state, now)
		state = out.State
		assert.Equal(t, i == 4, out.Locked, "attempt %d", i+1)
	}

	require.NotNil(t, state.LockUntil)
	assert.Equal(t, now.Add(time.Hour), *state.LockUntil)
	assert.True(t, state.IsLocked(now))
	assert.True(t, state.IsLocked(now.Add(59*time.Minute)))
	assert.False(t, state.IsLocked(now.Add(time.Hour)))
	assert.Equal(t, 60, state.RemainingMinutes(now))

	// first failure after expiry starts over
	next := policy.RegisterFailure(state, now.Add(time.Hour))
	assert.Equal(t, 1, next.State.LoginAttempts)
	assert.Nil(t, next.State.LockUntil)
}

func TestRegisterSuccessClearsState(t *testing.T) {
	policy := NewPolicy(5, time.Hour)
	until := time.Now().Add(time.Hour)

	for _, s := range []State{{}, {LoginAttempts: 3}, {LoginAttempts: 7, LockUntil: &until}} {
		got := policy.RegisterSuccess(s)
		assert.Equal(t, 0, got.LoginAttempts)
		assert.Nil(t, got.LockUntil)
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy(0, 0)
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultLockDuration, p.LockDuration)
}

func TestRemainingMinutesRoundsUp(t *testing.T) {
	now := time.Now()
	until := now.Add(90 * time.Second)
	s := State{LoginAttempts: 5, LockUntil: &until}
	assert.Equal(t, 2, s.RemainingMinutes(now))
	assert.Equal(t, 0, State{}.RemainingMinutes(now))
}
