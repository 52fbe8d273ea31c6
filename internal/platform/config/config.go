// Package config loads service configuration from the environment so main
// stays lean. Validation happens once at startup; a misconfigured service
// refuses to boot rather than limping along.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "resolute/pkg/platform/strings"
)

// Config is the full service configuration.
type Config struct {
	Server     Server
	Postgres   Postgres
	Redis      Redis
	Kafka      Kafka
	Resolution Resolution
	Sampling   Sampling
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	ShutdownTimeout time.Duration
}

// Postgres captures the database connection settings.
type Postgres struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Redis captures the assignment-lease backend settings. An empty URL
// disables Redis and the service falls back to version-based assignment
// only.
type Redis struct {
	URL      string
	LeaseTTL time.Duration
}

// Kafka captures the audit mirror settings. Empty seeds disable mirroring.
type Kafka struct {
	Seeds []string
	Topic string
}

// Resolution captures the active dedup anchors and scoring thresholds.
// Empty Anchors activates every signal.
type Resolution struct {
	Anchors     []string
	RejectBelow float64
	AcceptAt    float64
	Workers     int
}

// Sampling captures the QC sampling policy.
type Sampling struct {
	Rate float64
	Min  int
	Max  int
}

// FromEnv builds a Config from environment variables, applying defaults
// for everything optional.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:            envOr("RESOLUTE_ADDR", ":8080"),
			JWTSigningKey:   os.Getenv("RESOLUTE_JWT_SIGNING_KEY"),
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: Postgres{
			DSN:          os.Getenv("RESOLUTE_POSTGRES_DSN"),
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Redis: Redis{
			URL:      os.Getenv("RESOLUTE_REDIS_URL"),
			LeaseTTL: 30 * time.Minute,
		},
		Kafka: Kafka{
			Topic: envOr("RESOLUTE_KAFKA_TOPIC", "resolute.audit.events"),
		},
		Resolution: Resolution{
			RejectBelow: 0.60,
			AcceptAt:    0.80,
		},
		Sampling: Sampling{
			Rate: 0.05,
			Min:  1,
		},
	}

	if seeds := os.Getenv("RESOLUTE_KAFKA_SEEDS"); seeds != "" {
		cfg.Kafka.Seeds = pstrings.DedupeAndTrim(strings.Split(seeds, ","))
	}
	if anchors := os.Getenv("RESOLUTE_ANCHORS"); anchors != "" {
		cfg.Resolution.Anchors = pstrings.DedupeAndTrim(strings.Split(anchors, ","))
	}

	var err error
	if cfg.Redis.LeaseTTL, err = envDuration("RESOLUTE_LEASE_TTL", cfg.Redis.LeaseTTL); err != nil {
		return Config{}, err
	}
	if cfg.Resolution.RejectBelow, err = envFloat("RESOLUTE_REJECT_BELOW", cfg.Resolution.RejectBelow); err != nil {
		return Config{}, err
	}
	if cfg.Resolution.AcceptAt, err = envFloat("RESOLUTE_ACCEPT_AT", cfg.Resolution.AcceptAt); err != nil {
		return Config{}, err
	}
	if cfg.Resolution.Workers, err = envInt("RESOLUTE_RESOLVE_WORKERS", 0); err != nil {
		return Config{}, err
	}
	if cfg.Sampling.Rate, err = envFloat("RESOLUTE_QC_RATE", cfg.Sampling.Rate); err != nil {
		return Config{}, err
	}
	if cfg.Sampling.Min, err = envInt("RESOLUTE_QC_MIN", cfg.Sampling.Min); err != nil {
		return Config{}, err
	}
	if cfg.Sampling.Max, err = envInt("RESOLUTE_QC_MAX", cfg.Sampling.Max); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.Server.JWTSigningKey == "" {
		return fmt.Errorf("RESOLUTE_JWT_SIGNING_KEY is required")
	}
	if c.Resolution.RejectBelow < 0 || c.Resolution.RejectBelow > 1 {
		return fmt.Errorf("reject threshold %.2f out of range [0,1]", c.Resolution.RejectBelow)
	}
	if c.Resolution.AcceptAt < 0 || c.Resolution.AcceptAt > 1 {
		return fmt.Errorf("accept threshold %.2f out of range [0,1]", c.Resolution.AcceptAt)
	}
	if c.Resolution.RejectBelow >= c.Resolution.AcceptAt {
		return fmt.Errorf("reject threshold %.2f must be below accept threshold %.2f",
			c.Resolution.RejectBelow, c.Resolution.AcceptAt)
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling rate %.2f out of range [0,1]", c.Sampling.Rate)
	}
	if c.Sampling.Max > 0 && c.Sampling.Max < c.Sampling.Min {
		return fmt.Errorf("sampling max %d below min %d", c.Sampling.Max, c.Sampling.Min)
	}
	if c.Redis.LeaseTTL <= 0 {
		return fmt.Errorf("lease TTL must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
