package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// minSecretLength guards against trivially brute-forceable shared secrets.
const minSecretLength = 16

type Config struct {
	// Webhook gateway
	WebhookSecret   string
	WebhooksEnabled bool
	MaxTimestampAge time.Duration
	DedupEnabled    bool
	ParallelEnabled bool

	// Database
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// Queue
	AMQPURL string
}

// Load reads configuration from the environment. The webhook secret is
// required and length-checked; everything else has a sensible default.
func Load() (*Config, error) {
	cfg := &Config{
		WebhookSecret:   os.Getenv("WEBHOOK_SECRET"),
		WebhooksEnabled: envBool("WEBHOOKS_ENABLED", true),
		MaxTimestampAge: time.Duration(envInt("WEBHOOK_MAX_AGE_SECONDS", 600)) * time.Second,
		DedupEnabled:    envBool("WEBHOOK_DEDUP_ENABLED", true),
		ParallelEnabled: envBool("WEBHOOK_PARALLEL_ENABLED", true),
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBHost:          os.Getenv("DB_HOST"),
		DBPort:          os.Getenv("DB_PORT"),
		DBName:          os.Getenv("DB_NAME"),
		AMQPURL:         os.Getenv("AMQP_URL"),
	}

	if cfg.WebhookSecret == "" {
		return nil, errors.New("WEBHOOK_SECRET is required")
	}
	if len(cfg.WebhookSecret) < minSecretLength {
		return nil, fmt.Errorf("WEBHOOK_SECRET must be at least %d characters", minSecretLength)
	}
	if cfg.MaxTimestampAge <= 0 {
		return nil, errors.New("WEBHOOK_MAX_AGE_SECONDS must be positive")
	}
	return cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
