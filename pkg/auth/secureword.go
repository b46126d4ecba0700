package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aeonbank/stepauth/pkg/domain"
)

const (
	// DefaultSecureWordTTL is how long an issued secure word stays valid.
	DefaultSecureWordTTL = 60 * time.Second

	secureWordLength = 8
)

// SecureWordConfig holds secure-word service configuration.
type SecureWordConfig struct {
	Secret []byte // HMAC key for word derivation
	TTL    time.Duration
}

// SecureWordService derives and tracks the short-lived secure word each
// username must present alongside its password.
type SecureWordService struct {
	config SecureWordConfig
	store  SecureWordStore
	now    func() time.Time
}

// NewSecureWordService creates a new secure-word service.
func NewSecureWordService(config SecureWordConfig, store SecureWordStore) *SecureWordService {
	if config.TTL == 0 {
		config.TTL = DefaultSecureWordTTL
	}
	return &SecureWordService{
		config: config,
		store:  store,
		now:    time.Now,
	}
}

// TTL returns the validity window of an issued word.
func (s *SecureWordService) TTL() time.Duration {
	return s.config.TTL
}

// Issue derives a fresh secure word for the username and stores it,
// overwriting any prior word. The word is the first 8 hex characters of
// HMAC-SHA256(secret, username-timestamp), uppercased.
func (s *SecureWordService) Issue(ctx context.Context, username string) (string, error) {
	now := s.now()

	mac := hmac.New(sha256.New, s.config.Secret)
	fmt.Fprintf(mac, "%s-%d", username, now.UnixMilli())
	word := strings.ToUpper(hex.EncodeToString(mac.Sum(nil))[:secureWordLength])

	rec := &domain.SecureWordRecord{
		Username: username,
		Word:     word,
		IssuedAt: now,
	}
	if err := s.store.Put(ctx, rec, s.config.TTL); err != nil {
		return "", fmt.Errorf("storing secure word: %w", err)
	}
	return word, nil
}

// Validate reports whether the submitted word matches the live record for
// the username. Expired records are treated as absent and evicted. The
// caller normalizes the submitted word to uppercase; comparison here is
// exact. Validation does not consume the word.
func (s *SecureWordService) Validate(ctx context.Context, username, submitted string) (bool, error) {
	rec, err := s.store.Get(ctx, username)
	if err != nil {
		return false, fmt.Errorf("reading secure word: %w", err)
	}
	if rec == nil {
		return false, nil
	}
	if rec.ExpiredAt(s.now(), s.config.TTL) {
		_ = s.store.Delete(ctx, username)
		return false, nil
	}
	return rec.Word == submitted, nil
}

// Consume deletes the username's record unconditionally. Called once the
// password step fully verifies so the word can never be replayed.
func (s *SecureWordService) Consume(ctx context.Context, username string) error {
	return s.store.Delete(ctx, username)
}
