// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat router.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

const (
	defaultPort            = ":3001"
	defaultMaxMessageSize  = 64 * 1024
	defaultBurst           = 20
	defaultRefillInterval  = time.Second
	defaultLogLevel        = "INFO"
	defaultStoreTimeout    = 5 * time.Second
	defaultHistoryLimit    = 50
	defaultShutdownTimeout = 10 * time.Second
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig

	LogLevel        string
	StoreDriver     string
	PostgresURL     string
	BadgerPath      string
	StoreTimeout    time.Duration
	HistoryLimit    int
	ShutdownTimeout time.Duration
}

// environment mirrors Config as read from the process environment.
type environment struct {
	Port                  string        `env:"SERVER_PORT"`
	AllowedOrigins        string        `env:"ALLOWED_ORIGINS"`
	MaxMessageSize        int64         `env:"MAX_MESSAGE_SIZE"`
	RateLimitBurst        int           `env:"RATE_LIMIT_BURST"`
	RateLimitRefillSecond int           `env:"RATE_LIMIT_REFILL_INTERVAL"`
	LogLevel              string        `env:"LOG_LEVEL"`
	StoreDriver           string        `env:"STORE_DRIVER"`
	PostgresURL           string        `env:"POSTGRES_URL"`
	BadgerPath            string        `env:"BADGER_PATH"`
	StoreTimeout          time.Duration `env:"STORE_TIMEOUT"`
	HistoryLimit          int           `env:"HISTORY_LIMIT"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := sanitizeConfig(Config{AllowedOrigins: []string{"http://localhost:3000"}})
	return &cfg
}

// LoadConfig reads the optional .env files, then the environment, and
// applies defaults to anything unset or out of range.
func LoadConfig(dotenvFiles ...string) (*Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && len(dotenvFiles) > 0 {
		return nil, fmt.Errorf("config error: loading %v: %w", dotenvFiles, err)
	}

	var e environment
	if _, err := env.UnmarshalFromEnviron(&e); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	cfg := sanitizeConfig(Config{
		Port:           e.Port,
		AllowedOrigins: parseOrigins(e.AllowedOrigins),
		MaxMessageSize: e.MaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          e.RateLimitBurst,
			RefillInterval: time.Duration(e.RateLimitRefillSecond) * time.Second,
		},
		LogLevel:        e.LogLevel,
		StoreDriver:     e.StoreDriver,
		PostgresURL:     e.PostgresURL,
		BadgerPath:      e.BadgerPath,
		StoreTimeout:    e.StoreTimeout,
		HistoryLimit:    e.HistoryLimit,
		ShutdownTimeout: e.ShutdownTimeout,
	})
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DriverPostgres
	}

	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("config error: POSTGRES_URL is required for the %s driver", DriverPostgres)
		}
	case DriverBadger:
	default:
		return fmt.Errorf("config error: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
