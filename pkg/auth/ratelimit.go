package auth

import (
	"context"
	"time"
)

// DefaultCooldownWindow is the minimum interval between secure-word
// issuances for one username.
const DefaultCooldownWindow = 10 * time.Second

// CooldownLimiter gates secure-word issuance per username. The atomic
// check-and-stamp lives in the store so two concurrent requests can never
// both pass the gate.
type CooldownLimiter struct {
	window time.Duration
	store  RateLimitStore
}

// NewCooldownLimiter creates a new cooldown limiter.
func NewCooldownLimiter(window time.Duration, store RateLimitStore) *CooldownLimiter {
	if window == 0 {
		window = DefaultCooldownWindow
	}
	return &CooldownLimiter{window: window, store: store}
}

// Window returns the cooldown window.
func (l *CooldownLimiter) Window() time.Duration {
	return l.window
}

// TryAcquire attempts to pass the gate for the username. On success the
// username is stamped with the current time. On denial it returns the
// time left until the next request is allowed.
func (l *CooldownLimiter) TryAcquire(ctx context.Context, username string) (bool, time.Duration, error) {
	return l.store.TryAcquire(ctx, username, l.window)
}

// RemainingCooldown returns the time left on the gate. Informational
// only, never used for gating.
func (l *CooldownLimiter) RemainingCooldown(ctx context.Context, username string) (time.Duration, error) {
	return l.store.Remaining(ctx, username, l.window)
}
