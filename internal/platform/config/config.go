package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures the whole governance configuration surface. Every knob has
// a default so the server boots with no environment at all.
type Config struct {
	Addr           string
	Environment    string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	JWTSigningKey  string

	// DatabaseURL selects the durable store for idempotency and audit
	// records. Empty means in-memory stores (single-instance mode).
	DatabaseURL string

	RateLimit   RateLimit
	Quota       Quota
	Idempotency Idempotency
}

// RateLimit holds the sliding-window parameters for both scopes.
type RateLimit struct {
	IPWindow      time.Duration
	IPMax         int
	UserWindow    time.Duration
	UserMax       int
	SweepInterval time.Duration
}

// Quota holds the admission limits applied to bulk-mode requests.
type Quota struct {
	MaxFileBytes  int64
	MaxTotalBytes int64
	MaxFileCount  int
	MaxTotalPages int
	BytesPerPage  int64
}

// Idempotency holds retention parameters for the idempotency store.
type Idempotency struct {
	Retention     time.Duration
	SweepInterval time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:           envString("PALISADE_ADDR", ":8080"),
		Environment:    envString("PALISADE_ENV", "development"),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxBodyBytes:   envInt64("MAX_BODY_BYTES", 64<<20),
		JWTSigningKey:  envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RateLimit: RateLimit{
			IPWindow:      envDuration("RATE_LIMIT_IP_WINDOW", time.Minute),
			IPMax:         envInt("RATE_LIMIT_IP_MAX", 60),
			UserWindow:    envDuration("RATE_LIMIT_USER_WINDOW", time.Minute),
			UserMax:       envInt("RATE_LIMIT_USER_MAX", 120),
			SweepInterval: envDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute),
		},
		Quota: Quota{
			MaxFileBytes:  envInt64("QUOTA_MAX_FILE_BYTES", 10<<20),
			MaxTotalBytes: envInt64("QUOTA_MAX_TOTAL_BYTES", 50<<20),
			MaxFileCount:  envInt("QUOTA_MAX_FILE_COUNT", 10),
			MaxTotalPages: envInt("QUOTA_MAX_TOTAL_PAGES", 200),
			BytesPerPage:  envInt64("QUOTA_BYTES_PER_PAGE", 3000),
		},
		Idempotency: Idempotency{
			Retention:     envDuration("IDEMPOTENCY_RETENTION", 24*time.Hour),
			SweepInterval: envDuration("IDEMPOTENCY_SWEEP_INTERVAL", time.Hour),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
