package auth

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 60 * time.Second

// SweeperConfig holds sweeper configuration.
type SweeperConfig struct {
	Interval       time.Duration
	SecureWordTTL  time.Duration
	CooldownWindow time.Duration
}

// Sweeper periodically evicts expired secure words, stale rate-limit
// stamps, and lapsed MFA lockouts. Stores re-confirm expiry under their
// own locking, so the sweep cannot race destructively with live request
// handling. Run it as a goroutine and cancel the context to stop it.
type Sweeper struct {
	config   SweeperConfig
	logger   *slog.Logger
	words    SecureWordStore
	limits   RateLimitStore
	attempts AttemptStore
}

// NewSweeper creates a new sweeper.
func NewSweeper(config SweeperConfig, logger *slog.Logger, words SecureWordStore, limits RateLimitStore, attempts AttemptStore) *Sweeper {
	if config.Interval == 0 {
		config.Interval = DefaultSweepInterval
	}
	if config.SecureWordTTL == 0 {
		config.SecureWordTTL = DefaultSecureWordTTL
	}
	if config.CooldownWindow == 0 {
		config.CooldownWindow = DefaultCooldownWindow
	}
	return &Sweeper{
		config:   config,
		logger:   logger,
		words:    words,
		limits:   limits,
		attempts: attempts,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one eviction pass. Rate-limit stamps are kept for twice
// the window so RemainingCooldown stays accurate right up to expiry.
func (s *Sweeper) Sweep(ctx context.Context) {
	if err := s.words.PurgeExpired(ctx, s.config.SecureWordTTL); err != nil {
		s.logger.Warn("sweeping secure words", "error", err)
	}
	if err := s.limits.PurgeStale(ctx, 2*s.config.CooldownWindow); err != nil {
		s.logger.Warn("sweeping rate limits", "error", err)
	}
	if err := s.attempts.PurgeExpired(ctx); err != nil {
		s.logger.Warn("sweeping MFA attempts", "error", err)
	}
}
