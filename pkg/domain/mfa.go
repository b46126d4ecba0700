package domain

import "time"

// MFAAttemptRecord tracks failed TOTP submissions for a username.
// Created lazily on the first failure, cleared on success, reaped by the
// sweeper once an expired lock is past.
type MFAAttemptRecord struct {
	Username    string
	Attempts    int
	LockedUntil time.Time // zero value means not locked
}

// LockedAt reports whether the record holds an active lock at the given
// instant.
func (r *MFAAttemptRecord) LockedAt(now time.Time) bool {
	return !r.LockedUntil.IsZero() && now.Before(r.LockedUntil)
}

// LockRemaining returns the time left on an active lock, or 0.
func (r *MFAAttemptRecord) LockRemaining(now time.Time) time.Duration {
	if !r.LockedAt(now) {
		return 0
	}
	return r.LockedUntil.Sub(now)
}

// MFASecret contains a freshly minted TOTP secret and the provisioning
// URI an authenticator app can be onboarded with.
type MFASecret struct {
	Secret          string // base32
	ProvisioningURI string // otpauth://totp/...
}
