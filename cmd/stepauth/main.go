package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aeonbank/stepauth/internal/config"
	httpserver "github.com/aeonbank/stepauth/internal/http"
	"github.com/aeonbank/stepauth/pkg/auth"
	"github.com/aeonbank/stepauth/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize protocol stores: Redis when configured, in-memory
	// otherwise. The orchestrator never knows which backend it runs on.
	var (
		wordStore    auth.SecureWordStore
		limitStore   auth.RateLimitStore
		attemptStore auth.AttemptStore
		sessionStore auth.SessionStore
	)
	if cfg.HasRedis() {
		client, err := repository.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		wordStore = repository.NewRedisSecureWordStore(client)
		limitStore = repository.NewRedisRateLimitStore(client)
		attemptStore = repository.NewRedisAttemptStore(client)
		sessionStore = repository.NewRedisSessionStore(client)
		logger.Info("using redis protocol stores")
	} else {
		wordStore = repository.NewMemorySecureWordStore()
		limitStore = repository.NewMemoryRateLimitStore()
		attemptStore = repository.NewMemoryAttemptStore()
		sessionStore = repository.NewMemorySessionStore()
		logger.Info("using in-memory protocol stores")
	}

	// Initialize the user directory: Postgres when configured, seeded
	// demo accounts otherwise.
	var directory auth.UserDirectory
	if cfg.HasDatabase() {
		db, err := repository.NewDB(repository.PGConfig{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		directory = repository.NewPGUserDirectory(db)
		logger.Info("using postgres user directory")
	} else {
		directory = repository.NewMemoryUserDirectory(repository.DemoAccounts())
		logger.Info("using demo user directory")
	}

	// Initialize services
	wordService := auth.NewSecureWordService(auth.SecureWordConfig{
		Secret: []byte(cfg.SecureWordSecret),
		TTL:    cfg.SecureWordTTL,
	}, wordStore)
	limiter := auth.NewCooldownLimiter(cfg.CooldownWindow, limitStore)
	verifier := auth.NewCredentialVerifier(directory)
	mfaService := auth.NewMFAService(auth.MFAConfig{
		Issuer:          cfg.JWTIssuer,
		MaxAttempts:     cfg.MFAMaxAttempts,
		LockoutDuration: cfg.MFALockoutDuration,
	}, attemptStore)
	tokenService := auth.NewTokenService(auth.TokenConfig{
		Secret:          []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
		MFATokenTTL:     cfg.MFATokenTTL,
		SessionTokenTTL: cfg.SessionTokenTTL,
	})
	loginService := auth.NewLoginService(logger, limiter, wordService, verifier, mfaService, sessionStore, tokenService)

	// Start the background sweeper, tied to process lifetime
	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper := auth.NewSweeper(auth.SweeperConfig{
		Interval:       cfg.SweepInterval,
		SecureWordTTL:  cfg.SecureWordTTL,
		CooldownWindow: cfg.CooldownWindow,
	}, logger, wordStore, limitStore, attemptStore)
	go sweeper.Run(sweeperCtx)

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:             logger,
		LoginService:       loginService,
		TokenService:       tokenService,
		RateLimitConfig:    cfg.RateLimit,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopSweeper()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
