package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Step tokens
	JWTSecret       string
	JWTIssuer       string
	MFATokenTTL     time.Duration
	SessionTokenTTL time.Duration

	// Secure word
	SecureWordSecret string
	SecureWordTTL    time.Duration
	CooldownWindow   time.Duration

	// MFA lockout
	MFAMaxAttempts     int
	MFALockoutDuration time.Duration

	// Background sweep
	SweepInterval time.Duration

	// Optional Redis backend for protocol state
	RedisURL string

	// Optional Postgres user directory
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// HTTP-level rate limiting (IP based, on top of the per-username gate)
	RateLimit RateLimitConfig

	// Request limits
	MaxRequestBodySize int64
}

// RateLimitConfig holds IP-based rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Token defaults
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "Aeon Bank"),
		MFATokenTTL:     getEnvDuration("MFA_TOKEN_TTL", 15*time.Minute),
		SessionTokenTTL: getEnvDuration("SESSION_TOKEN_TTL", time.Hour),

		// Secure word defaults
		SecureWordSecret: getEnv("SECURE_WORD_SECRET", ""),
		SecureWordTTL:    getEnvDuration("SECURE_WORD_TTL", 60*time.Second),
		CooldownWindow:   getEnvDuration("SECURE_WORD_COOLDOWN", 10*time.Second),

		// Lockout defaults
		MFAMaxAttempts:     getEnvInt("MFA_MAX_ATTEMPTS", 3),
		MFALockoutDuration: getEnvDuration("MFA_LOCKOUT_DURATION", 15*time.Minute),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 60*time.Second),

		RedisURL: getEnv("REDIS_URL", ""),

		// Postgres user directory (optional; demo directory when unset)
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "stepauth"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 30),
		},

		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.SecureWordSecret == "" {
		return nil, fmt.Errorf("SECURE_WORD_SECRET is required")
	}

	return cfg, nil
}

// HasRedis returns true if a Redis backend is configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// HasDatabase returns true if a Postgres user directory is configured.
func (c *Config) HasDatabase() bool {
	return c.DBHost != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
