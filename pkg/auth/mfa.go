package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aeonbank/stepauth/pkg/domain"
)

const (
	// TOTP parameters
	totpPeriod     = 30
	totpSkew       = 1  // Allow ±30 seconds clock drift
	totpSecretSize = 20 // 160-bit secret

	// Lockout defaults
	DefaultMaxAttempts     = 3
	DefaultLockoutDuration = 15 * time.Minute
)

// MFAConfig contains configuration for the MFA service.
type MFAConfig struct {
	Issuer          string // e.g. "Aeon Bank", shown in authenticator apps
	MaxAttempts     int
	LockoutDuration time.Duration
}

// LockoutStatus describes the lockout state of a username.
type LockoutStatus struct {
	Locked    bool
	Remaining time.Duration
	Attempts  int
}

// MFAService mints per-session TOTP secrets, validates submitted codes,
// and tracks failed attempts with lockout.
type MFAService struct {
	config   MFAConfig
	attempts AttemptStore
	now      func() time.Time
}

// NewMFAService creates a new MFA service.
func NewMFAService(config MFAConfig, attempts AttemptStore) *MFAService {
	if config.MaxAttempts == 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.LockoutDuration == 0 {
		config.LockoutDuration = DefaultLockoutDuration
	}
	return &MFAService{
		config:   config,
		attempts: attempts,
		now:      time.Now,
	}
}

// MaxAttempts returns the failure count that triggers a lockout.
func (s *MFAService) MaxAttempts() int {
	return s.config.MaxAttempts
}

// NewSecret generates a fresh TOTP secret for the username and returns it
// base32-encoded together with the otpauth provisioning URI. Rendering
// the URI as a QR code is the UI layer's concern.
func (s *MFAService) NewSecret(username string) (*domain.MFASecret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: username,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generating TOTP key: %w", err)
	}
	return &domain.MFASecret{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// CurrentCode computes the TOTP code for the current 30-second step.
// Exposed so a same-device demo code can be shown; it is a convenience,
// not a security boundary.
func (s *MFAService) CurrentCode(secret string) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, s.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generating TOTP code: %w", err)
	}
	return code, nil
}

// VerifyCode validates a submitted 6-digit code against the secret,
// accepting the current time step and the immediately adjacent ones.
// Malformed input counts as an invalid code, not an error.
func (s *MFAService) VerifyCode(code, secret string) bool {
	valid, err := totp.ValidateCustom(code, secret, s.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}

// RecordFailure increments the username's failed-attempt count. Reaching
// the limit locks the username for the configured duration; the bump and
// the lock are one atomic store update.
func (s *MFAService) RecordFailure(ctx context.Context, username string) (domain.MFAAttemptRecord, error) {
	return s.attempts.Increment(ctx, username, s.config.MaxAttempts, s.config.LockoutDuration)
}

// CheckLockout reports whether the username is currently locked out.
// An expired lock is cleared opportunistically.
func (s *MFAService) CheckLockout(ctx context.Context, username string) (LockoutStatus, error) {
	rec, err := s.attempts.Get(ctx, username)
	if err != nil {
		return LockoutStatus{}, err
	}
	if rec == nil {
		return LockoutStatus{}, nil
	}

	now := s.now()
	if rec.LockedAt(now) {
		return LockoutStatus{
			Locked:    true,
			Remaining: rec.LockRemaining(now),
			Attempts:  rec.Attempts,
		}, nil
	}

	if !rec.LockedUntil.IsZero() {
		// Lock has lapsed; the counter starts over.
		_ = s.attempts.Clear(ctx, username)
		return LockoutStatus{}, nil
	}

	return LockoutStatus{Attempts: rec.Attempts}, nil
}

// Reset clears the username's attempt record after a successful
// verification.
func (s *MFAService) Reset(ctx context.Context, username string) error {
	return s.attempts.Clear(ctx, username)
}
