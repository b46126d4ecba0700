package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aeonbank/stepauth/pkg/domain"
)

// Default step-token lifetimes.
const (
	DefaultMFATokenTTL     = 15 * time.Minute
	DefaultSessionTokenTTL = time.Hour
)

// TokenConfig holds token service configuration.
type TokenConfig struct {
	Secret          []byte
	Issuer          string
	MFATokenTTL     time.Duration // intermediate mfa_required token
	SessionTokenTTL time.Duration // final authenticated token
}

// StepClaims is the payload of a step token. The token binds its holder
// to a specific point in the login state machine; token validity alone is
// not authorization, the orchestrator also checks the step and username.
type StepClaims struct {
	jwt.RegisteredClaims
	Username      string      `json:"username"`
	Step          domain.Step `json:"step"`
	SessionID     string      `json:"session_id"`
	Authenticated bool        `json:"authenticated,omitempty"`
	Name          string      `json:"name,omitempty"`
}

// TokenService issues and verifies signed, time-limited step tokens.
// Tokens are self-contained so the client can carry them between
// requests without the server holding token state.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a new token service.
func NewTokenService(config TokenConfig) *TokenService {
	if config.MFATokenTTL == 0 {
		config.MFATokenTTL = DefaultMFATokenTTL
	}
	if config.SessionTokenTTL == 0 {
		config.SessionTokenTTL = DefaultSessionTokenTTL
	}
	return &TokenService{
		config: config,
		now:    time.Now,
	}
}

// MFATokenTTL returns the intermediate token lifetime.
func (s *TokenService) MFATokenTTL() time.Duration {
	return s.config.MFATokenTTL
}

// SessionTokenTTL returns the final token lifetime.
func (s *TokenService) SessionTokenTTL() time.Duration {
	return s.config.SessionTokenTTL
}

// Issue signs the claims with the given lifetime.
func (s *TokenService) Issue(claims StepClaims, ttl time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Username,
		Issuer:    s.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        claims.SessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.Secret)
}

// Verify checks signature and expiry and returns the decoded claims.
// Any failure (expired, malformed, wrong signature) comes back as
// domain.ErrInvalidToken; nothing panics across this boundary.
func (s *TokenService) Verify(tokenString string) (*StepClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &StepClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.Secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*StepClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
