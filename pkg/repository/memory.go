package repository

import (
	"context"
	"sync"
	"time"

	"github.com/aeonbank/stepauth/pkg/domain"
)

// In-memory protocol stores. All state is authoritative for the lifetime
// of the process; durability across restarts is explicitly out of scope.
// Each store guards its map with a mutex so read-modify-write sequences
// for a single username are atomic.

// MemorySecureWordStore holds live secure words in a map.
type MemorySecureWordStore struct {
	mu    sync.Mutex
	words map[string]domain.SecureWordRecord
	now   func() time.Time
}

// NewMemorySecureWordStore creates an empty in-memory secure-word store.
func NewMemorySecureWordStore() *MemorySecureWordStore {
	return &MemorySecureWordStore{
		words: make(map[string]domain.SecureWordRecord),
		now:   time.Now,
	}
}

// Put stores the record, replacing any prior record for the username.
func (s *MemorySecureWordStore) Put(ctx context.Context, rec *domain.SecureWordRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.words[rec.Username] = *rec
	return nil
}

// Get returns the stored record, or (nil, nil) when absent. Expiry is the
// caller's concern; the store returns whatever it holds.
func (s *MemorySecureWordStore) Get(ctx context.Context, username string) (*domain.SecureWordRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.words[username]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Delete removes the record.
func (s *MemorySecureWordStore) Delete(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.words, username)
	return nil
}

// PurgeExpired evicts records older than ttl, re-confirming age under the
// lock so a concurrent reissue is never swept away.
func (s *MemorySecureWordStore) PurgeExpired(ctx context.Context, ttl time.Duration) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for username, rec := range s.words {
		if rec.ExpiredAt(now, ttl) {
			delete(s.words, username)
		}
	}
	return nil
}

// MemoryRateLimitStore holds per-username cooldown stamps.
type MemoryRateLimitStore struct {
	mu     sync.Mutex
	stamps map[string]time.Time
	now    func() time.Time
}

// NewMemoryRateLimitStore creates an empty in-memory rate-limit store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		stamps: make(map[string]time.Time),
		now:    time.Now,
	}
}

// TryAcquire performs the atomic check-and-stamp: denied without mutation
// when the last stamp is newer than window, otherwise stamped with now.
func (s *MemoryRateLimitStore) TryAcquire(ctx context.Context, username string, window time.Duration) (bool, time.Duration, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.stamps[username]; ok {
		if elapsed := now.Sub(last); elapsed < window {
			return false, window - elapsed, nil
		}
	}
	s.stamps[username] = now
	return true, 0, nil
}

// Remaining returns the time left on the gate without mutating it.
func (s *MemoryRateLimitStore) Remaining(ctx context.Context, username string, window time.Duration) (time.Duration, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.stamps[username]
	if !ok {
		return 0, nil
	}
	remaining := window - now.Sub(last)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// PurgeStale evicts stamps older than the given age.
func (s *MemoryRateLimitStore) PurgeStale(ctx context.Context, olderThan time.Duration) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for username, last := range s.stamps {
		if now.Sub(last) > olderThan {
			delete(s.stamps, username)
		}
	}
	return nil
}

// MemoryAttemptStore tracks failed MFA submissions.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]domain.MFAAttemptRecord
	now      func() time.Time
}

// NewMemoryAttemptStore creates an empty in-memory attempt store.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		attempts: make(map[string]domain.MFAAttemptRecord),
		now:      time.Now,
	}
}

// Increment bumps the failure count and applies the lock when the count
// reaches lockAfter, all under one lock acquisition.
func (s *MemoryAttemptStore) Increment(ctx context.Context, username string, lockAfter int, lockFor time.Duration) (domain.MFAAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.attempts[username]
	rec.Username = username
	rec.Attempts++
	if rec.Attempts >= lockAfter && rec.LockedUntil.IsZero() {
		rec.LockedUntil = s.now().Add(lockFor)
	}
	s.attempts[username] = rec
	return rec, nil
}

// Get returns the record, or (nil, nil) when absent.
func (s *MemoryAttemptStore) Get(ctx context.Context, username string) (*domain.MFAAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.attempts[username]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Clear removes the record.
func (s *MemoryAttemptStore) Clear(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, username)
	return nil
}

// PurgeExpired evicts records whose lock has lapsed.
func (s *MemoryAttemptStore) PurgeExpired(ctx context.Context) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for username, rec := range s.attempts {
		if !rec.LockedUntil.IsZero() && now.After(rec.LockedUntil) {
			delete(s.attempts, username)
		}
	}
	return nil
}

// MemorySessionStore holds the per-username login session.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.UserSession
	now      func() time.Time
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domain.UserSession),
		now:      time.Now,
	}
}

// Put stores the session, replacing any prior session for the username.
func (s *MemorySessionStore) Put(ctx context.Context, session *domain.UserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Username] = *session
	return nil
}

// Get returns the session, or (nil, nil) when absent.
func (s *MemorySessionStore) Get(ctx context.Context, username string) (*domain.UserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[username]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// Promote advances the session's step in place. The transition check runs
// under the lock so no caller can regress a session's step.
func (s *MemorySessionStore) Promote(ctx context.Context, username string, next domain.Step) (*domain.UserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[username]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !session.Step.CanAdvanceTo(next) {
		return nil, domain.ErrSessionRegressed
	}
	session.Step = next
	if next == domain.StepAuthenticated {
		at := s.now()
		session.MFAVerifiedAt = &at
	}
	s.sessions[username] = session
	return &session, nil
}

// Delete removes the session.
func (s *MemorySessionStore) Delete(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, username)
	return nil
}
