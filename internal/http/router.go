package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aeonbank/stepauth/internal/config"
	authfeature "github.com/aeonbank/stepauth/internal/http/features/auth"
	"github.com/aeonbank/stepauth/internal/http/features/transactions"
	"github.com/aeonbank/stepauth/internal/http/middleware"
	"github.com/aeonbank/stepauth/internal/httputil"
	"github.com/aeonbank/stepauth/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	LoginService       *auth.LoginService
	TokenService       *auth.TokenService
	RateLimitConfig    config.RateLimitConfig
	MaxRequestBodySize int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	// The login endpoints are POST-only.
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Login flow endpoints, behind the IP-level limiter
	authHandler := authfeature.NewHandler(cfg.Logger, cfg.LoginService)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthRateLimit(cfg.RateLimitConfig, cfg.Logger))
		r.Post("/secure-word", authHandler.SecureWord)
		r.Post("/login", authHandler.Login)
		r.Post("/verify-mfa", authHandler.VerifyMFA)
		r.Post("/logout", authHandler.Logout)
	})

	// Authenticated resources
	transactionsHandler := transactions.NewHandler()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.TokenService))
		r.Get("/transaction-history", transactionsHandler.List)
	})

	return r
}
