package auth

import (
	"context"
	"time"

	"github.com/aeonbank/stepauth/pkg/domain"
)

// Store contracts for the per-username protocol state. Implementations
// live in pkg/repository; every read-modify-write operation declared here
// must be atomic with respect to concurrent callers for the same username.

// SecureWordStore holds the live secure word per username.
type SecureWordStore interface {
	// Put stores the record, replacing any prior record for the username.
	Put(ctx context.Context, rec *domain.SecureWordRecord, ttl time.Duration) error
	// Get returns the stored record, or (nil, nil) when absent.
	Get(ctx context.Context, username string) (*domain.SecureWordRecord, error)
	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, username string) error
	// PurgeExpired evicts records older than ttl.
	PurgeExpired(ctx context.Context, ttl time.Duration) error
}

// RateLimitStore implements the per-username issuance cooldown gate.
type RateLimitStore interface {
	// TryAcquire stamps the username if its last stamp is at least window
	// old, atomically. When denied it returns the time left on the gate.
	TryAcquire(ctx context.Context, username string, window time.Duration) (acquired bool, retryAfter time.Duration, err error)
	// Remaining returns the time left on the gate without mutating it.
	Remaining(ctx context.Context, username string, window time.Duration) (time.Duration, error)
	// PurgeStale evicts stamps older than the given age.
	PurgeStale(ctx context.Context, olderThan time.Duration) error
}

// AttemptStore tracks failed MFA submissions per username.
type AttemptStore interface {
	// Increment bumps the failure count and, when the count reaches
	// lockAfter, applies a lock for lockFor. The bump and the lock are
	// one atomic update.
	Increment(ctx context.Context, username string, lockAfter int, lockFor time.Duration) (domain.MFAAttemptRecord, error)
	// Get returns the record, or (nil, nil) when the username has no
	// failed attempts on file.
	Get(ctx context.Context, username string) (*domain.MFAAttemptRecord, error)
	// Clear removes the record.
	Clear(ctx context.Context, username string) error
	// PurgeExpired evicts records whose lock has lapsed.
	PurgeExpired(ctx context.Context) error
}

// SessionStore holds the per-username login session.
type SessionStore interface {
	// Put stores the session, replacing any prior session for the
	// username. A fresh login attempt supersedes the old session.
	Put(ctx context.Context, session *domain.UserSession) error
	// Get returns the session, or (nil, nil) when absent.
	Get(ctx context.Context, username string) (*domain.UserSession, error)
	// Promote advances the session's step in place. It returns
	// domain.ErrSessionNotFound when no session exists and
	// domain.ErrSessionRegressed when next is not a forward transition.
	Promote(ctx context.Context, username string, next domain.Step) (*domain.UserSession, error)
	// Delete removes the session. Deleting an absent session is not an
	// error.
	Delete(ctx context.Context, username string) error
}

// UserDirectory is the read-only account lookup collaborator.
type UserDirectory interface {
	// Lookup returns the account for the username, or
	// domain.ErrUserNotFound.
	Lookup(ctx context.Context, username string) (*domain.UserAccount, error)
}
