package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aeonbank/stepauth/internal/httputil"
	"github.com/aeonbank/stepauth/pkg/auth"
	"github.com/aeonbank/stepauth/pkg/domain"
)

// Handler handles the four login-flow endpoints.
type Handler struct {
	logger *slog.Logger
	login  *auth.LoginService
}

// NewHandler creates a new auth handler.
func NewHandler(logger *slog.Logger, login *auth.LoginService) *Handler {
	return &Handler{
		logger: logger,
		login:  login,
	}
}

// SecureWordRequest represents the request body for secure-word issuance.
type SecureWordRequest struct {
	Username string `json:"username"`
}

// SecureWordResponse represents a successful issuance.
type SecureWordResponse struct {
	Success    bool   `json:"success"`
	SecureWord string `json:"secureWord"`
	ExpiresIn  int    `json:"expiresIn"`
}

// SecureWord handles POST /secure-word.
func (h *Handler) SecureWord(w http.ResponseWriter, r *http.Request) {
	var req SecureWordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if auth.NormalizeUsername(req.Username) == "" {
		httputil.Error(w, http.StatusBadRequest, "username is required")
		return
	}

	result, err := h.login.RequestSecureWord(r.Context(), req.Username)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, SecureWordResponse{
		Success:    true,
		SecureWord: result.Word,
		ExpiresIn:  result.ExpiresIn,
	})
}

// LoginRequest represents the request body for the password step.
type LoginRequest struct {
	Username           string `json:"username"`
	PasswordHashDigest string `json:"passwordHashDigest"`
	SecureWord         string `json:"secureWord"`
}

// LoginResponse represents a successful password step.
type LoginResponse struct {
	Success         bool        `json:"success"`
	Message         string      `json:"message"`
	Token           string      `json:"token"`
	RequiresMFA     bool        `json:"requiresMFA"`
	MFASecret       string      `json:"mfaSecret"`
	ProvisioningURI string      `json:"provisioningURI"`
	Step            domain.Step `json:"step"`
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.PasswordHashDigest == "" || req.SecureWord == "" {
		httputil.Error(w, http.StatusBadRequest, "username, passwordHashDigest, and secureWord are required")
		return
	}

	result, err := h.login.Login(r.Context(), req.Username, req.PasswordHashDigest, req.SecureWord)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, LoginResponse{
		Success:         true,
		Message:         "login successful. please complete MFA verification",
		Token:           result.Token,
		RequiresMFA:     true,
		MFASecret:       result.MFASecret,
		ProvisioningURI: result.ProvisioningURI,
		Step:            result.Step,
	})
}

// VerifyMFARequest represents the request body for MFA verification.
type VerifyMFARequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
	Token    string `json:"token"`
}

// VerifyMFAResponse represents a completed login.
type VerifyMFAResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    UserPayload `json:"user"`
	Step    domain.Step `json:"step"`
}

// UserPayload identifies the authenticated user in responses.
type UserPayload struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// VerifyMFA handles POST /verify-mfa.
func (h *Handler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req VerifyMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Code == "" || req.Token == "" {
		httputil.Error(w, http.StatusBadRequest, "username, code, and token are required")
		return
	}

	result, err := h.login.VerifyMFA(r.Context(), req.Username, req.Code, req.Token)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, VerifyMFAResponse{
		Success: true,
		Message: "MFA verification successful. login complete",
		Token:   result.Token,
		User: UserPayload{
			Username: result.Username,
			Name:     result.Name,
		},
		Step: result.Step,
	})
}

// LogoutRequest represents the request body for logout.
type LogoutRequest struct {
	Username string `json:"username"`
}

// Logout handles POST /logout. Logging out a nonexistent session is not
// an error.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username != "" {
		if err := h.login.Logout(r.Context(), req.Username); err != nil {
			h.writeError(w, err)
			return
		}
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "logged out successfully",
	})
}

// rateLimitResponse carries the cooldown left on a denied issuance.
type rateLimitResponse struct {
	Error         string `json:"error"`
	RemainingTime int    `json:"remainingTime"` // seconds
}

// lockoutResponse carries the state of an active MFA lockout.
type lockoutResponse struct {
	Error       string `json:"error"`
	LockedUntil int64  `json:"lockedUntil"` // milliseconds remaining
	Attempts    int    `json:"attempts"`
}

// mfaFailureResponse carries the attempt budget after a rejected code.
type mfaFailureResponse struct {
	Error             string `json:"error"`
	Attempts          int    `json:"attempts"`
	RemainingAttempts int    `json:"remainingAttempts"`
}

// writeError translates protocol errors into the wire contract. Expected
// failures map to specific statuses; anything else is a 500 that never
// leaks internals.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var rateErr *domain.RateLimitError
	var lockErr *domain.LockoutError
	var codeErr *domain.MFACodeError

	switch {
	case errors.As(err, &rateErr):
		// Round up so a 9.4s remainder reports 10, never 9.
		seconds := int((rateErr.RetryAfter + time.Second - 1) / time.Second)
		httputil.JSON(w, http.StatusTooManyRequests, rateLimitResponse{
			Error:         "rate limit exceeded. please wait before requesting another secure word",
			RemainingTime: seconds,
		})
	case errors.As(err, &lockErr):
		httputil.JSON(w, http.StatusLocked, lockoutResponse{
			Error:       "account locked due to too many failed MFA attempts. please try again later",
			LockedUntil: lockErr.Remaining.Milliseconds(),
			Attempts:    lockErr.Attempts,
		})
	case errors.As(err, &codeErr):
		httputil.JSON(w, http.StatusUnauthorized, mfaFailureResponse{
			Error:             codeErr.Error(),
			Attempts:          codeErr.Attempts,
			RemainingAttempts: codeErr.RemainingAttempts,
		})
	case errors.Is(err, domain.ErrInvalidCredentials):
		httputil.Error(w, http.StatusUnauthorized, "invalid username, password, or secure word")
	case errors.Is(err, domain.ErrInvalidToken):
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNoMFASecret),
		errors.Is(err, domain.ErrSessionRegressed):
		httputil.Error(w, http.StatusUnauthorized, "invalid session. please login again")
	default:
		h.logger.Error("unexpected error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
