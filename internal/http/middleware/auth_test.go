package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aeonbank/stepauth/pkg/auth"
	"github.com/aeonbank/stepauth/pkg/domain"
)

func newAuthFixture(t *testing.T) (*auth.TokenService, http.Handler) {
	t.Helper()
	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte("test-jwt-secret"),
		Issuer: "Aeon Bank",
	})

	protected := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := GetUsername(r.Context())
		if !ok {
			t.Error("username missing from context")
		}
		if _, ok := GetClaims(r.Context()); !ok {
			t.Error("claims missing from context")
		}
		w.Write([]byte(username))
	}))
	return tokens, protected
}

func TestAuth_AcceptsFinalToken(t *testing.T) {
	tokens, protected := newAuthFixture(t)

	token, err := tokens.Issue(auth.StepClaims{
		Username:      "demo",
		Step:          domain.StepAuthenticated,
		SessionID:     "sess-1",
		Authenticated: true,
	}, tokens.SessionTokenTTL())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "demo" {
		t.Errorf("body = %q, want demo", rr.Body.String())
	}
}

func TestAuth_Rejections(t *testing.T) {
	tokens, protected := newAuthFixture(t)

	intermediate, err := tokens.Issue(auth.StepClaims{
		Username:  "demo",
		Step:      domain.StepMFARequired,
		SessionID: "sess-1",
	}, tokens.MFATokenTTL())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not a bearer token", header: "Basic abc123"},
		{name: "garbage token", header: "Bearer garbage"},
		{name: "intermediate token", header: "Bearer " + intermediate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			protected.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
		})
	}
}
