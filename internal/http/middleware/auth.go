package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/aeonbank/stepauth/internal/httputil"
	"github.com/aeonbank/stepauth/pkg/auth"
	"github.com/aeonbank/stepauth/pkg/domain"
)

type contextKey string

const (
	// UsernameKey is the context key for the authenticated username.
	UsernameKey contextKey = "username"
	// ClaimsKey is the context key for the step-token claims.
	ClaimsKey contextKey = "claims"
)

// Auth creates middleware that requires a final authenticated step token
// in the Authorization header. Intermediate mfa_required tokens are
// rejected; token validity alone is not authorization.
func Auth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					tokenString = parts[1]
				}
			}

			if tokenString == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if claims.Step != domain.StepAuthenticated || !claims.Authenticated {
				httputil.Error(w, http.StatusUnauthorized, "authentication incomplete")
				return
			}

			ctx := context.WithValue(r.Context(), UsernameKey, claims.Username)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUsername extracts the authenticated username from the request
// context.
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// GetClaims extracts the step-token claims from the request context.
func GetClaims(ctx context.Context) (*auth.StepClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.StepClaims)
	return claims, ok
}
