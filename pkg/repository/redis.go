package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aeonbank/stepauth/pkg/domain"
)

// Redis-backed protocol stores. These mirror the in-memory stores'
// contracts so the orchestrator never knows which backend it runs on.
// Expiry mostly rides on Redis TTLs, which makes the sweeper's purge
// passes no-ops here.

const (
	secureWordKeyPrefix = "secureword:"
	cooldownKeyPrefix   = "cooldown:"
	attemptKeyPrefix    = "mfa:attempts:"
	lockKeyPrefix       = "mfa:lock:"
	sessionKeyPrefix    = "session:"

	// Sessions have no protocol-level expiry; they are removed on logout
	// or superseded by a fresh login. The retention TTL only keeps
	// abandoned sessions from accumulating.
	sessionRetention = 24 * time.Hour

	// Failed-attempt counters fade after the lockout duration so a stale
	// counter cannot penalize a much later login attempt.
	attemptRetention = 15 * time.Minute
)

// attemptScript atomically bumps the failure counter and applies the
// lock when the count reaches the threshold.
//
// KEYS[1] = counter key, KEYS[2] = lock key
// ARGV[1] = lock threshold, ARGV[2] = lock deadline (unix ms),
// ARGV[3] = retention (ms)
var attemptScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count >= tonumber(ARGV[1]) and redis.call('EXISTS', KEYS[2]) == 0 then
	redis.call('SET', KEYS[2], ARGV[2])
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])
if redis.call('EXISTS', KEYS[2]) == 1 then
	redis.call('PEXPIRE', KEYS[2], ARGV[3])
end
local lock = redis.call('GET', KEYS[2])
if lock then
	return {count, lock}
end
return {count, '0'}
`)

// NewRedisClient connects to Redis using a redis:// URL and verifies the
// connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// RedisSecureWordStore holds live secure words as JSON values with TTLs.
type RedisSecureWordStore struct {
	client *redis.Client
}

// NewRedisSecureWordStore creates a Redis-backed secure-word store.
func NewRedisSecureWordStore(client *redis.Client) *RedisSecureWordStore {
	return &RedisSecureWordStore{client: client}
}

// Put stores the record with the word's TTL so Redis evicts it on expiry.
func (s *RedisSecureWordStore) Put(ctx context.Context, rec *domain.SecureWordRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling secure word: %w", err)
	}
	return s.client.Set(ctx, secureWordKeyPrefix+rec.Username, data, ttl).Err()
}

// Get returns the stored record, or (nil, nil) when absent or expired.
func (s *RedisSecureWordStore) Get(ctx context.Context, username string) (*domain.SecureWordRecord, error) {
	data, err := s.client.Get(ctx, secureWordKeyPrefix+username).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secure word: %w", err)
	}
	var rec domain.SecureWordRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling secure word: %w", err)
	}
	return &rec, nil
}

// Delete removes the record.
func (s *RedisSecureWordStore) Delete(ctx context.Context, username string) error {
	return s.client.Del(ctx, secureWordKeyPrefix+username).Err()
}

// PurgeExpired is a no-op; Redis TTLs evict expired words.
func (s *RedisSecureWordStore) PurgeExpired(ctx context.Context, ttl time.Duration) error {
	return nil
}

// RedisRateLimitStore implements the cooldown gate on SET NX with a TTL
// equal to the window, so the gate clears itself exactly when the window
// lapses.
type RedisRateLimitStore struct {
	client *redis.Client
}

// NewRedisRateLimitStore creates a Redis-backed rate-limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// TryAcquire stamps the username unless a live stamp exists. SET NX makes
// the check-and-stamp atomic across concurrent callers.
func (s *RedisRateLimitStore) TryAcquire(ctx context.Context, username string, window time.Duration) (bool, time.Duration, error) {
	key := cooldownKeyPrefix + username
	acquired, err := s.client.SetNX(ctx, key, time.Now().UnixMilli(), window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("acquiring cooldown gate: %w", err)
	}
	if acquired {
		return true, 0, nil
	}
	remaining, err := s.client.PTTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		remaining = 0
	}
	return false, remaining, nil
}

// Remaining returns the time left on the gate.
func (s *RedisRateLimitStore) Remaining(ctx context.Context, username string, window time.Duration) (time.Duration, error) {
	remaining, err := s.client.PTTL(ctx, cooldownKeyPrefix+username).Result()
	if err != nil {
		return 0, fmt.Errorf("reading cooldown gate: %w", err)
	}
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// PurgeStale is a no-op; gate keys expire on their own.
func (s *RedisRateLimitStore) PurgeStale(ctx context.Context, olderThan time.Duration) error {
	return nil
}

// RedisAttemptStore tracks failed MFA submissions with a counter key and
// a lock key per username.
type RedisAttemptStore struct {
	client *redis.Client
}

// NewRedisAttemptStore creates a Redis-backed attempt store.
func NewRedisAttemptStore(client *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{client: client}
}

// Increment runs the bump-and-lock script so the counter and the lock
// update as one atomic step.
func (s *RedisAttemptStore) Increment(ctx context.Context, username string, lockAfter int, lockFor time.Duration) (domain.MFAAttemptRecord, error) {
	deadline := time.Now().Add(lockFor).UnixMilli()
	retention := lockFor
	if retention < attemptRetention {
		retention = attemptRetention
	}
	res, err := attemptScript.Run(ctx, s.client,
		[]string{attemptKeyPrefix + username, lockKeyPrefix + username},
		lockAfter, deadline, retention.Milliseconds(),
	).Slice()
	if err != nil {
		return domain.MFAAttemptRecord{}, fmt.Errorf("incrementing MFA attempts: %w", err)
	}
	if len(res) != 2 {
		return domain.MFAAttemptRecord{}, fmt.Errorf("incrementing MFA attempts: unexpected script reply %v", res)
	}

	rec := domain.MFAAttemptRecord{Username: username}
	if count, ok := res[0].(int64); ok {
		rec.Attempts = int(count)
	}
	if lock, ok := res[1].(string); ok {
		if ms, err := strconv.ParseInt(lock, 10, 64); err == nil && ms > 0 {
			rec.LockedUntil = time.UnixMilli(ms)
		}
	}
	return rec, nil
}

// Get returns the record, or (nil, nil) when the username has no failed
// attempts on file.
func (s *RedisAttemptStore) Get(ctx context.Context, username string) (*domain.MFAAttemptRecord, error) {
	count, err := s.client.Get(ctx, attemptKeyPrefix+username).Int()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading MFA attempts: %w", err)
	}

	rec := &domain.MFAAttemptRecord{Username: username, Attempts: count}
	lock, err := s.client.Get(ctx, lockKeyPrefix+username).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reading MFA lock: %w", err)
	}
	if err == nil {
		if ms, err := strconv.ParseInt(lock, 10, 64); err == nil && ms > 0 {
			rec.LockedUntil = time.UnixMilli(ms)
		}
	}
	return rec, nil
}

// Clear removes the counter and the lock.
func (s *RedisAttemptStore) Clear(ctx context.Context, username string) error {
	return s.client.Del(ctx, attemptKeyPrefix+username, lockKeyPrefix+username).Err()
}

// PurgeExpired is a no-op; attempt keys carry their own retention TTL.
func (s *RedisAttemptStore) PurgeExpired(ctx context.Context) error {
	return nil
}

// RedisSessionStore holds login sessions as JSON values.
type RedisSessionStore struct {
	client *redis.Client

	// promoteMu serializes Promote's read-modify-write. The design
	// assumes a single authoritative process, so a process-local mutex
	// is sufficient for the transition check.
	promoteMu sync.Mutex
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Put stores the session, replacing any prior session for the username.
func (s *RedisSessionStore) Put(ctx context.Context, session *domain.UserSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	return s.client.Set(ctx, sessionKeyPrefix+session.Username, data, sessionRetention).Err()
}

// Get returns the session, or (nil, nil) when absent.
func (s *RedisSessionStore) Get(ctx context.Context, username string) (*domain.UserSession, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+username).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var session domain.UserSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &session, nil
}

// Promote advances the session's step in place, refusing regression.
func (s *RedisSessionStore) Promote(ctx context.Context, username string, next domain.Step) (*domain.UserSession, error) {
	s.promoteMu.Lock()
	defer s.promoteMu.Unlock()

	session, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	if !session.Step.CanAdvanceTo(next) {
		return nil, domain.ErrSessionRegressed
	}
	session.Step = next
	if next == domain.StepAuthenticated {
		at := time.Now()
		session.MFAVerifiedAt = &at
	}
	if err := s.Put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes the session.
func (s *RedisSessionStore) Delete(ctx context.Context, username string) error {
	return s.client.Del(ctx, sessionKeyPrefix+username).Err()
}
