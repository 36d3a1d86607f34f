package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort string
	AppEnv  string

	DatabaseDriver string
	DatabaseDSN    string

	JWTSecret   string
	RabbitMQURL string
	RedisAddr   string

	IdempotencyBackend       string
	IdempotencyWindow        time.Duration
	IdempotencyRetention     time.Duration
	IdempotencySweepInterval time.Duration
	IdempotencyCapacity      int

	CommitTimeout      time.Duration
	CommitMaxRetries   int
	CommitRetryBackoff time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	SeedDemoData      bool
	SeedAdminPassword string
}

// SetDefaults registers every key so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:toko.db?_busy_timeout=5000")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("IDEMPOTENCY_BACKEND", "memory")
	v.SetDefault("IDEMPOTENCY_SUPPRESSION_WINDOW", 5*time.Second)
	v.SetDefault("IDEMPOTENCY_RETENTION", 10*time.Second)
	v.SetDefault("IDEMPOTENCY_SWEEP_INTERVAL", time.Second)
	v.SetDefault("IDEMPOTENCY_CAPACITY", 100000)
	v.SetDefault("COMMIT_TIMEOUT", 5*time.Second)
	v.SetDefault("COMMIT_MAX_RETRIES", 3)
	v.SetDefault("COMMIT_RETRY_BACKOFF", 50*time.Millisecond)
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("SEED_DEMO_DATA", true)
	v.SetDefault("SEED_ADMIN_PASSWORD", "")
}

// Load reads configuration from defaults and the environment.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		AppPort:                  v.GetString("APP_PORT"),
		AppEnv:                   v.GetString("APP_ENV"),
		DatabaseDriver:           v.GetString("DATABASE_DRIVER"),
		DatabaseDSN:              v.GetString("DATABASE_DSN"),
		JWTSecret:                v.GetString("JWT_SECRET"),
		RabbitMQURL:              v.GetString("RABBITMQ_URL"),
		RedisAddr:                v.GetString("REDIS_ADDR"),
		IdempotencyBackend:       v.GetString("IDEMPOTENCY_BACKEND"),
		IdempotencyWindow:        v.GetDuration("IDEMPOTENCY_SUPPRESSION_WINDOW"),
		IdempotencyRetention:     v.GetDuration("IDEMPOTENCY_RETENTION"),
		IdempotencySweepInterval: v.GetDuration("IDEMPOTENCY_SWEEP_INTERVAL"),
		IdempotencyCapacity:      v.GetInt("IDEMPOTENCY_CAPACITY"),
		CommitTimeout:            v.GetDuration("COMMIT_TIMEOUT"),
		CommitMaxRetries:         v.GetInt("COMMIT_MAX_RETRIES"),
		CommitRetryBackoff:       v.GetDuration("COMMIT_RETRY_BACKOFF"),
		RateLimitRPS:             v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:           v.GetInt("RATE_LIMIT_BURST"),
		SeedDemoData:             v.GetBool("SEED_DEMO_DATA"),
		SeedAdminPassword:        v.GetString("SEED_ADMIN_PASSWORD"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.IdempotencyBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported IDEMPOTENCY_BACKEND %q", c.IdempotencyBackend)
	}
	if c.IdempotencyWindow <= 0 || c.IdempotencySweepInterval <= 0 {
		return fmt.Errorf("idempotency durations must be positive")
	}
	if c.IdempotencyRetention < c.IdempotencyWindow {
		return fmt.Errorf("IDEMPOTENCY_RETENTION (%s) must not be shorter than the suppression window (%s)",
			c.IdempotencyRetention, c.IdempotencyWindow)
	}
	if c.IdempotencyCapacity <= 0 {
		return fmt.Errorf("IDEMPOTENCY_CAPACITY must be positive")
	}
	if c.CommitTimeout <= 0 {
		return fmt.Errorf("COMMIT_TIMEOUT must be positive")
	}
	if c.CommitMaxRetries < 0 || c.CommitRetryBackoff < 0 {
		return fmt.Errorf("commit retry settings must not be negative")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}
