package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aeonbank/stepauth/pkg/domain"
)

// LoginService is the protocol state machine sequencing the login flow:
// secure-word issuance, password + secure-word verification, MFA
// verification, and logout.
type LoginService struct {
	logger   *slog.Logger
	limiter  *CooldownLimiter
	words    *SecureWordService
	creds    *CredentialVerifier
	mfa      *MFAService
	sessions SessionStore
	tokens   *TokenService
	now      func() time.Time
}

// NewLoginService creates a new login service.
func NewLoginService(
	logger *slog.Logger,
	limiter *CooldownLimiter,
	words *SecureWordService,
	creds *CredentialVerifier,
	mfa *MFAService,
	sessions SessionStore,
	tokens *TokenService,
) *LoginService {
	return &LoginService{
		logger:   logger,
		limiter:  limiter,
		words:    words,
		creds:    creds,
		mfa:      mfa,
		sessions: sessions,
		tokens:   tokens,
		now:      time.Now,
	}
}

// NormalizeUsername canonicalizes a submitted username. All per-username
// state is keyed on the normalized form.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// SecureWordResult is the outcome of a successful issuance request.
type SecureWordResult struct {
	Word      string
	ExpiresIn int // seconds
}

// RequestSecureWord gates the request through the cooldown limiter and
// issues a fresh secure word.
func (s *LoginService) RequestSecureWord(ctx context.Context, username string) (*SecureWordResult, error) {
	username = NormalizeUsername(username)

	ok, retryAfter, err := s.limiter.TryAcquire(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !ok {
		return nil, &domain.RateLimitError{RetryAfter: retryAfter}
	}

	word, err := s.words.Issue(ctx, username)
	if err != nil {
		return nil, err
	}

	s.logger.Info("secure word issued", "username", username)

	return &SecureWordResult{
		Word:      word,
		ExpiresIn: int(s.words.TTL().Seconds()),
	}, nil
}

// LoginResult is the outcome of a successful password step.
type LoginResult struct {
	Token           string
	MFASecret       string
	ProvisioningURI string
	Step            domain.Step
}

// Login verifies the password digest and the secure word. On success the
// word is consumed, a per-session TOTP secret is minted, an mfa_required
// session is stored, and an intermediate step token is issued. Password
// and secure-word failures are indistinguishable to the caller so a bad
// response reveals nothing about which factor failed.
func (s *LoginService) Login(ctx context.Context, username, passwordDigest, secureWord string) (*LoginResult, error) {
	username = NormalizeUsername(username)

	account, credsOK, err := s.creds.Verify(ctx, username, passwordDigest)
	if err != nil {
		return nil, err
	}

	wordOK, err := s.words.Validate(ctx, username, strings.ToUpper(strings.TrimSpace(secureWord)))
	if err != nil {
		return nil, err
	}

	if !credsOK || !wordOK {
		s.logger.Warn("login failed", "username", username)
		return nil, domain.ErrInvalidCredentials
	}

	// Both factors verified: the word is spent, even if a concurrent
	// request races in behind us.
	if err := s.words.Consume(ctx, username); err != nil {
		return nil, fmt.Errorf("consuming secure word: %w", err)
	}

	secret, err := s.mfa.NewSecret(username)
	if err != nil {
		return nil, err
	}

	session := &domain.UserSession{
		Username:  username,
		Name:      account.Name,
		MFASecret: secret.Secret,
		Step:      domain.StepMFARequired,
		SessionID: uuid.NewString(),
		CreatedAt: s.now(),
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	token, err := s.tokens.Issue(StepClaims{
		Username:  username,
		Step:      domain.StepMFARequired,
		SessionID: session.SessionID,
	}, s.tokens.MFATokenTTL())
	if err != nil {
		return nil, fmt.Errorf("issuing step token: %w", err)
	}

	s.logger.Info("password step verified", "username", username, "session_id", session.SessionID)

	return &LoginResult{
		Token:           token,
		MFASecret:       secret.Secret,
		ProvisioningURI: secret.ProvisioningURI,
		Step:            domain.StepMFARequired,
	}, nil
}

// MFAResult is the outcome of a successful MFA verification.
type MFAResult struct {
	Token    string
	Username string
	Name     string
	Step     domain.Step
}

// VerifyMFA validates the step token's binding, enforces lockout, and
// checks the submitted TOTP code. On failure the attempt counter
// advances; on success the counter resets, the session is promoted, and
// the final token is issued.
func (s *LoginService) VerifyMFA(ctx context.Context, username, code, token string) (*MFAResult, error) {
	username = NormalizeUsername(username)

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Username != username || claims.Step != domain.StepMFARequired {
		return nil, domain.ErrInvalidToken
	}

	status, err := s.mfa.CheckLockout(ctx, username)
	if err != nil {
		return nil, err
	}
	if status.Locked {
		return nil, &domain.LockoutError{Remaining: status.Remaining, Attempts: status.Attempts}
	}

	session, err := s.sessions.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if session == nil || session.MFASecret == "" {
		return nil, domain.ErrSessionNotFound
	}

	if !s.mfa.VerifyCode(code, session.MFASecret) {
		rec, err := s.mfa.RecordFailure(ctx, username)
		if err != nil {
			return nil, err
		}
		s.logger.Warn("MFA code rejected", "username", username, "attempts", rec.Attempts)
		if rec.LockedAt(s.now()) {
			return nil, &domain.LockoutError{Remaining: rec.LockRemaining(s.now()), Attempts: rec.Attempts}
		}
		return nil, &domain.MFACodeError{
			Attempts:          rec.Attempts,
			RemainingAttempts: s.mfa.MaxAttempts() - rec.Attempts,
		}
	}

	if err := s.mfa.Reset(ctx, username); err != nil {
		return nil, err
	}

	if _, err := s.sessions.Promote(ctx, username, domain.StepAuthenticated); err != nil {
		return nil, err
	}

	finalToken, err := s.tokens.Issue(StepClaims{
		Username:      username,
		Step:          domain.StepAuthenticated,
		SessionID:     claims.SessionID,
		Authenticated: true,
		Name:          session.Name,
	}, s.tokens.SessionTokenTTL())
	if err != nil {
		return nil, fmt.Errorf("issuing session token: %w", err)
	}

	s.logger.Info("login complete", "username", username, "session_id", claims.SessionID)

	return &MFAResult{
		Token:    finalToken,
		Username: username,
		Name:     session.Name,
		Step:     domain.StepAuthenticated,
	}, nil
}

// Logout removes the username's session. Logging out a nonexistent
// session is not an error.
func (s *LoginService) Logout(ctx context.Context, username string) error {
	username = NormalizeUsername(username)
	if err := s.sessions.Delete(ctx, username); err != nil {
		return err
	}
	s.logger.Info("logged out", "username", username)
	return nil
}
