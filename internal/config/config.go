// Package config loads and validates configuration at startup.
//
// Sources, later ones winning: a .env file in the working directory, an
// optional YAML file, then environment variables. Fail-fast: if a required
// value is missing, Load returns an error and the process exits.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the marketplace service.
type Config struct {
	Port        string `yaml:"port" env:"PORT"`
	GRPCPort    string `yaml:"grpc_port" env:"GRPC_PORT"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"` // optional
	JWTSecret   string `yaml:"jwt_secret" env:"JWT_SECRET"`

	ListingCacheTTL       time.Duration `yaml:"listing_cache_ttl" env:"LISTING_CACHE_TTL"`
	NotificationRetention time.Duration `yaml:"notification_retention" env:"NOTIFICATION_RETENTION"`
	CleanupSchedule       string        `yaml:"cleanup_schedule" env:"CLEANUP_SCHEDULE"`

	// WSInsecureSkipVerify disables the WebSocket origin check. Local
	// development only.
	WSInsecureSkipVerify bool   `yaml:"ws_insecure_skip_verify" env:"WS_INSECURE_SKIP_VERIFY"`
	MigrationsDir        string `yaml:"migrations_dir" env:"MIGRATIONS_DIR"`

	// InMemory runs on the in-process store instead of PostgreSQL.
	InMemory bool `yaml:"in_memory" env:"IN_MEMORY"`
}

// Load reads configuration from path (may be empty), then the environment.
// forceInMemory overrides InMemory to true.
func Load(path string, forceInMemory bool) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if forceInMemory {
		cfg.InMemory = true
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.GRPCPort == "" {
		c.GRPCPort = "9090"
	}
	if c.ListingCacheTTL == 0 {
		c.ListingCacheTTL = 5 * time.Minute
	}
	if c.NotificationRetention == 0 {
		c.NotificationRetention = 30 * 24 * time.Hour
	}
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = "@daily"
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = "internal/db/migrations"
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" && !c.InMemory {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ListingCacheTTL < 0 {
		return fmt.Errorf("LISTING_CACHE_TTL must be positive, got %s", c.ListingCacheTTL)
	}
	if c.NotificationRetention < 0 {
		return fmt.Errorf("NOTIFICATION_RETENTION must be positive, got %s", c.NotificationRetention)
	}
	return nil
}
