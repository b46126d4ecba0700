package domain

import (
	"time"
)

// Step identifies a position in the multi-step login flow.
type Step string

const (
	// StepMFARequired means the password step succeeded and a TOTP code
	// is still outstanding.
	StepMFARequired Step = "mfa_required"
	// StepAuthenticated means the full flow completed.
	StepAuthenticated Step = "authenticated"
)

// order maps each step to its position in the flow. Steps only ever move
// forward within one session lifetime.
func (s Step) order() int {
	switch s {
	case StepMFARequired:
		return 1
	case StepAuthenticated:
		return 2
	}
	return 0
}

// Valid reports whether the step is one of the known flow positions.
func (s Step) Valid() bool {
	return s.order() > 0
}

// CanAdvanceTo reports whether moving from s to next is a forward
// transition.
func (s Step) CanAdvanceTo(next Step) bool {
	return next.Valid() && next.order() > s.order()
}

// UserSession tracks one username's progress through the login flow.
// At most one live session exists per username; a fresh login attempt
// overwrites the previous session.
type UserSession struct {
	Username      string
	Name          string
	MFASecret     string // base32 TOTP secret minted for this session
	Step          Step
	SessionID     string
	CreatedAt     time.Time
	MFAVerifiedAt *time.Time
}
