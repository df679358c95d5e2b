package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ledgergate/ledgergate/internal/ledger"
)

const (
	defaultAppName        = "LedgerGate"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultEngineTimeout  = 5 * time.Second
	defaultTokenTTL       = time.Hour
	defaultQueryLimit     = 10
	defaultMaxQueryLimit  = 8189
	defaultRateCapacity   = 100
	defaultRateRefill     = 50.0
	defaultLoginPerMin    = 5
)

// Config captures runtime configuration loaded from environment
// variables. DatabaseURL and RedisURL are optional: without them the
// gateway falls back to the in-memory user store and skips the Redis
// middleware.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	// Ledger engine tuning.
	EngineTimeout time.Duration
	BatchLimit    int
	QueryLimit    uint32
	MaxQueryLimit uint32

	// Auth.
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string

	// Rate limiting.
	RateCapacity     int
	RateRefillPerSec float64
	LoginPerMinute   int

	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		EngineTimeout:    defaultEngineTimeout,
		BatchLimit:       ledger.DefaultBatchLimit,
		QueryLimit:       defaultQueryLimit,
		MaxQueryLimit:    defaultMaxQueryLimit,
		TokenTTL:         defaultTokenTTL,
		AdminEmail:       os.Getenv("ADMIN_EMAIL"),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		RateCapacity:     defaultRateCapacity,
		RateRefillPerSec: defaultRateRefill,
		LoginPerMinute:   defaultLoginPerMin,
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdempotencyTTL,
	}

	var err error
	if cfg.EngineTimeout, err = durationEnv("ENGINE_TIMEOUT", cfg.EngineTimeout); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}

	if cfg.BatchLimit, err = intEnv("BATCH_LIMIT", cfg.BatchLimit); err != nil {
		return Config{}, err
	}
	if cfg.RateCapacity, err = intEnv("RATE_LIMIT_CAPACITY", cfg.RateCapacity); err != nil {
		return Config{}, err
	}
	if cfg.LoginPerMinute, err = intEnv("LOGIN_ATTEMPTS_PER_MINUTE", cfg.LoginPerMinute); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("RATE_LIMIT_REFILL_PER_SECOND"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_REFILL_PER_SECOND: %w", err)
		}
		cfg.RateRefillPerSec = rate
	}
	if v := os.Getenv("QUERY_LIMIT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid QUERY_LIMIT: %w", err)
		}
		cfg.QueryLimit = uint32(n)
	}
	if v := os.Getenv("MAX_QUERY_LIMIT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MAX_QUERY_LIMIT: %w", err)
		}
		cfg.MaxQueryLimit = uint32(n)
	}

	if cfg.BatchLimit <= 0 || cfg.BatchLimit > ledger.DefaultBatchLimit {
		return Config{}, fmt.Errorf("BATCH_LIMIT must be between 1 and %d", ledger.DefaultBatchLimit)
	}
	if cfg.QueryLimit == 0 || cfg.QueryLimit > cfg.MaxQueryLimit {
		return Config{}, fmt.Errorf("QUERY_LIMIT must be between 1 and MAX_QUERY_LIMIT")
	}
	if cfg.RateCapacity <= 0 || cfg.RateRefillPerSec <= 0 {
		return Config{}, fmt.Errorf("rate limit capacity and refill must be positive")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
