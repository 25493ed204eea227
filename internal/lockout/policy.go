// Package lockout implements the login-attempt lockout policy.
//
// The policy is a pure function of the attempt counter, the lock-until
// timestamp and the current time. Callers persist the returned state.
package lockout

import (
	"math"
	"time"
)

const (
	DefaultMaxAttempts  = 5
	DefaultLockDuration = time.Hour
)

// State is the persisted lockout state of an account.
type State struct {
	LoginAttempts int
	LockUntil     *time.Time
}

// IsLocked reports whether the account is locked at now.
func (s State) IsLocked(now time.Time) bool {
	return s.LockUntil != nil && s.LockUntil.After(now)
}

// Remaining returns the time left on an active lock, or zero.
func (s State) Remaining(now time.Time) time.Duration {
	if !s.IsLocked(now) {
		return 0
	}
	return s.LockUntil.Sub(now)
}

// RemainingMinutes returns the lock time left rounded up to whole minutes.
func (s State) RemainingMinutes(now time.Time) int {
	return int(math.Ceil(s.Remaining(now).Minutes()))
}

// Policy holds the configured threshold and lock duration.
type Policy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// NewPolicy returns a policy, substituting defaults for non-positive values.
func NewPolicy(maxAttempts int, lockDuration time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockDuration <= 0 {
		lockDuration = DefaultLockDuration
	}
	return Policy{MaxAttempts: maxAttempts, LockDuration: lockDuration}
}

// Outcome is the result of applying a failed attempt.
type Outcome struct {
	State State
	// Locked is true when this attempt engaged the lock.
	Locked bool
}

// RegisterFailure applies a failed password check to s.
func (p Policy) RegisterFailure(s State, now time.Time) Outcome {
	next := State{LoginAttempts: s.LoginAttempts, LockUntil: s.LockUntil}

	if next.LockUntil != nil && !next.LockUntil.After(now) {
		// previous lock expired: start a fresh window
		next.LoginAttempts = 1
		next.LockUntil = nil
	} else {
		next.LoginAttempts++
	}

	var locked bool
	if next.LoginAttempts >= p.MaxAttempts && !next.IsLocked(now) {
		until := now.Add(p.LockDuration)
		next.LockUntil = &until
		locked = true
	}

	return Outcome{State: next, Locked: locked}
}

// RegisterSuccess clears the lockout state unconditionally.
func (p Policy) RegisterSuccess(State) State {
	return State{}
}
