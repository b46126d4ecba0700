package domain

import (
	"errors"
	"fmt"
	"time"
)

// Authentication errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionRegressed   = errors.New("session step cannot move backward")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidStep        = errors.New("token does not match the expected login step")
)

// MFA errors
var (
	ErrInvalidMFACode = errors.New("invalid MFA code")
	ErrNoMFASecret    = errors.New("session has no MFA secret")
)

// RateLimitError reports that a secure-word request arrived inside the
// per-username cooldown window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}

// LockoutError reports that MFA verification is locked for the username.
type LockoutError struct {
	Remaining time.Duration
	Attempts  int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked for %s after %d failed MFA attempts", e.Remaining.Round(time.Second), e.Attempts)
}

// MFACodeError reports a failed MFA code submission and how many attempts
// remain before lockout.
type MFACodeError struct {
	Attempts          int
	RemainingAttempts int
}

func (e *MFACodeError) Error() string {
	return fmt.Sprintf("invalid MFA code, %d attempt(s) remaining", e.RemainingAttempts)
}
