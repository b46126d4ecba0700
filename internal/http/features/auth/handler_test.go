package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/aeonbank/stepauth/pkg/auth"
	"github.com/aeonbank/stepauth/pkg/domain"
	"github.com/aeonbank/stepauth/pkg/repository"
)

// Digest of "demo123" for the seeded demo account.
const demoDigest = "d3ad9315b7be5dd53b31a273b3b3aba5defe700808305aa16a3062b76658a791"

type fixture struct {
	handler *Handler
	mfa     *auth.MFAService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	words := auth.NewSecureWordService(auth.SecureWordConfig{Secret: []byte("test-word-secret")}, repository.NewMemorySecureWordStore())
	limiter := auth.NewCooldownLimiter(10*time.Second, repository.NewMemoryRateLimitStore())
	creds := auth.NewCredentialVerifier(repository.NewMemoryUserDirectory(repository.DemoAccounts()))
	mfa := auth.NewMFAService(auth.MFAConfig{Issuer: "Aeon Bank"}, repository.NewMemoryAttemptStore())
	sessions := repository.NewMemorySessionStore()
	tokens := auth.NewTokenService(auth.TokenConfig{Secret: []byte("test-jwt-secret"), Issuer: "Aeon Bank"})
	login := auth.NewLoginService(logger, limiter, words, creds, mfa, sessions, tokens)

	return &fixture{handler: NewHandler(logger, login), mfa: mfa}
}

func (f *fixture) post(t *testing.T, handle http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	rr := httptest.NewRecorder()
	handle(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return m
}

// loginDemo walks the demo account through the password step and returns
// the intermediate token and MFA secret.
func (f *fixture) loginDemo(t *testing.T) (token, secret string) {
	t.Helper()
	rr := f.post(t, f.handler.SecureWord, SecureWordRequest{Username: "demo"})
	if rr.Code != http.StatusOK {
		t.Fatalf("secure-word status = %d: %s", rr.Code, rr.Body.String())
	}
	word := decode(t, rr)["secureWord"].(string)

	rr = f.post(t, f.handler.Login, LoginRequest{Username: "demo", PasswordHashDigest: demoDigest, SecureWord: word})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	return body["token"].(string), body["mfaSecret"].(string)
}

// wrongCodeFor returns a six-digit code that does not verify right now.
func (f *fixture) wrongCodeFor(t *testing.T, secret string) string {
	t.Helper()
	current, err := f.mfa.CurrentCode(secret)
	if err != nil {
		t.Fatalf("CurrentCode() error = %v", err)
	}
	n, _ := strconv.Atoi(current)
	for i := 1; i < 10; i++ {
		code := padCode((n + i) % 1000000)
		if !f.mfa.VerifyCode(code, secret) {
			return code
		}
	}
	t.Fatal("could not derive a non-verifying code")
	return ""
}

func padCode(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}

func TestHandler_SecureWord(t *testing.T) {
	f := newFixture(t)

	rr := f.post(t, f.handler.SecureWord, SecureWordRequest{Username: "demo"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decode(t, rr)
	if body["success"] != true {
		t.Error("success should be true")
	}
	if word, _ := body["secureWord"].(string); len(word) != 8 {
		t.Errorf("secureWord = %v, want 8 characters", body["secureWord"])
	}
	if body["expiresIn"] != float64(60) {
		t.Errorf("expiresIn = %v, want 60", body["expiresIn"])
	}
}

func TestHandler_SecureWord_RateLimited(t *testing.T) {
	f := newFixture(t)

	if rr := f.post(t, f.handler.SecureWord, SecureWordRequest{Username: "demo"}); rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rr.Code)
	}

	rr := f.post(t, f.handler.SecureWord, SecureWordRequest{Username: "demo"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	body := decode(t, rr)
	if body["error"] == nil {
		t.Error("missing error message")
	}
	remaining, ok := body["remainingTime"].(float64)
	if !ok || remaining < 1 || remaining > 10 {
		t.Errorf("remainingTime = %v, want in [1, 10]", body["remainingTime"])
	}
}

func TestHandler_SecureWord_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "malformed json", body: "{not json"},
		{name: "missing username", body: SecureWordRequest{}},
		{name: "whitespace username", body: SecureWordRequest{Username: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.post(t, f.handler.SecureWord, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestHandler_Login(t *testing.T) {
	f := newFixture(t)

	rr := f.post(t, f.handler.SecureWord, SecureWordRequest{Username: "demo"})
	word := decode(t, rr)["secureWord"].(string)

	rr = f.post(t, f.handler.Login, LoginRequest{Username: "demo", PasswordHashDigest: demoDigest, SecureWord: word})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["success"] != true || body["requiresMFA"] != true {
		t.Error("success and requiresMFA should be true")
	}
	if body["token"] == "" || body["mfaSecret"] == "" {
		t.Error("missing token or mfaSecret")
	}
	if uri, _ := body["provisioningURI"].(string); uri == "" {
		t.Error("missing provisioningURI")
	}
	if body["step"] != "mfa_required" {
		t.Errorf("step = %v, want mfa_required", body["step"])
	}
}

func TestHandler_Login_BadCredentials(t *testing.T) {
	f := newFixture(t)

	rr := f.post(t, f.handler.SecureWord, SecureWordRequest{Username: "demo"})
	word := decode(t, rr)["secureWord"].(string)

	// Wrong digest and wrong word are indistinguishable.
	for _, req := range []LoginRequest{
		{Username: "demo", PasswordHashDigest: "0badc0de", SecureWord: word},
		{Username: "demo", PasswordHashDigest: demoDigest, SecureWord: "00000000"},
	} {
		rr := f.post(t, f.handler.Login, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
		if msg := decode(t, rr)["error"]; msg != "invalid username, password, or secure word" {
			t.Errorf("error = %v, want the generic message", msg)
		}
	}
}

func TestHandler_Login_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "malformed json", body: "{"},
		{name: "missing digest", body: LoginRequest{Username: "demo", SecureWord: "ABCD1234"}},
		{name: "missing word", body: LoginRequest{Username: "demo", PasswordHashDigest: demoDigest}},
		{name: "missing username", body: LoginRequest{PasswordHashDigest: demoDigest, SecureWord: "ABCD1234"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.post(t, f.handler.Login, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestHandler_VerifyMFA(t *testing.T) {
	f := newFixture(t)
	token, secret := f.loginDemo(t)

	code, err := f.mfa.CurrentCode(secret)
	if err != nil {
		t.Fatalf("CurrentCode() error = %v", err)
	}

	rr := f.post(t, f.handler.VerifyMFA, VerifyMFARequest{Username: "demo", Code: code, Token: token})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["success"] != true {
		t.Error("success should be true")
	}
	if body["step"] != "authenticated" {
		t.Errorf("step = %v, want authenticated", body["step"])
	}
	user, _ := body["user"].(map[string]any)
	if user == nil || user["username"] != "demo" || user["name"] != "Demo User" {
		t.Errorf("user = %v", body["user"])
	}
	if body["token"] == token {
		t.Error("final token should differ from the intermediate token")
	}
}

func TestHandler_VerifyMFA_WrongCodeThenLockout(t *testing.T) {
	f := newFixture(t)
	token, secret := f.loginDemo(t)
	wrong := f.wrongCodeFor(t, secret)

	for i := 1; i <= 2; i++ {
		rr := f.post(t, f.handler.VerifyMFA, VerifyMFARequest{Username: "demo", Code: wrong, Token: token})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("failure %d status = %d, want 401", i, rr.Code)
		}
		body := decode(t, rr)
		if body["attempts"] != float64(i) {
			t.Errorf("failure %d: attempts = %v", i, body["attempts"])
		}
		if body["remainingAttempts"] != float64(3-i) {
			t.Errorf("failure %d: remainingAttempts = %v, want %d", i, body["remainingAttempts"], 3-i)
		}
	}

	rr := f.post(t, f.handler.VerifyMFA, VerifyMFARequest{Username: "demo", Code: wrong, Token: token})
	if rr.Code != http.StatusLocked {
		t.Fatalf("third failure status = %d, want 423", rr.Code)
	}
	body := decode(t, rr)
	if body["attempts"] != float64(3) {
		t.Errorf("attempts = %v, want 3", body["attempts"])
	}
	locked, ok := body["lockedUntil"].(float64)
	if !ok || locked <= 0 {
		t.Errorf("lockedUntil = %v, want positive milliseconds", body["lockedUntil"])
	}

	// Locked stays locked, correct code or not.
	code, err := f.mfa.CurrentCode(secret)
	if err != nil {
		t.Fatalf("CurrentCode() error = %v", err)
	}
	rr = f.post(t, f.handler.VerifyMFA, VerifyMFARequest{Username: "demo", Code: code, Token: token})
	if rr.Code != http.StatusLocked {
		t.Errorf("locked verify status = %d, want 423", rr.Code)
	}
}

func TestHandler_VerifyMFA_Replay(t *testing.T) {
	f := newFixture(t)
	token, secret := f.loginDemo(t)

	code, err := f.mfa.CurrentCode(secret)
	if err != nil {
		t.Fatalf("CurrentCode() error = %v", err)
	}
	rr := f.post(t, f.handler.VerifyMFA, VerifyMFARequest{Username: "demo", Code: code, Token: token})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	// Re-submitting the still-valid intermediate token after the flow
	// completed is an expected client mistake, not a server fault.
	code, err = f.mfa.CurrentCode(secret)
	if err != nil {
		t.Fatalf("CurrentCode() error = %v", err)
	}
	rr = f.post(t, f.handler.VerifyMFA, VerifyMFARequest{Username: "demo", Code: code, Token: token})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("replayed verify status = %d, want 401", rr.Code)
	}
	if msg := decode(t, rr)["error"]; msg != "invalid session. please login again" {
		t.Errorf("error = %v", msg)
	}
}

func TestHandler_RateLimitRemainingTimeRoundsUp(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		retryAfter time.Duration
		want       float64
	}{
		{retryAfter: 9400 * time.Millisecond, want: 10},
		{retryAfter: 10 * time.Second, want: 10},
		{retryAfter: 200 * time.Millisecond, want: 1},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		f.handler.writeError(rr, &domain.RateLimitError{RetryAfter: tt.retryAfter})
		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", rr.Code)
		}
		if got := decode(t, rr)["remainingTime"]; got != tt.want {
			t.Errorf("remainingTime for %v = %v, want %v", tt.retryAfter, got, tt.want)
		}
	}
}

func TestHandler_VerifyMFA_BadToken(t *testing.T) {
	f := newFixture(t)

	rr := f.post(t, f.handler.VerifyMFA, VerifyMFARequest{Username: "demo", Code: "123456", Token: "garbage"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if msg := decode(t, rr)["error"]; msg != "invalid or expired token" {
		t.Errorf("error = %v", msg)
	}
}

func TestHandler_VerifyMFA_Validation(t *testing.T) {
	f := newFixture(t)

	rr := f.post(t, f.handler.VerifyMFA, VerifyMFARequest{Username: "demo", Code: "123456"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing token status = %d, want 400", rr.Code)
	}
}

func TestHandler_Logout(t *testing.T) {
	f := newFixture(t)
	f.loginDemo(t)

	rr := f.post(t, f.handler.Logout, LogoutRequest{Username: "demo"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if decode(t, rr)["success"] != true {
		t.Error("success should be true")
	}

	// Logout with no session on file still succeeds.
	rr = f.post(t, f.handler.Logout, LogoutRequest{Username: "demo"})
	if rr.Code != http.StatusOK {
		t.Errorf("repeat logout status = %d, want 200", rr.Code)
	}
}
