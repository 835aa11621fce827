// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"NAVTREE_DB_PATH" envDefault:"./data/navtree.db"`
	ServerHost string `env:"NAVTREE_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"NAVTREE_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"NAVTREE_ENV" envDefault:"development"`
	LogLevel   string `env:"NAVTREE_LOG_LEVEL" envDefault:"info"`

	// Cache configuration
	RedisURL    string `env:"NAVTREE_REDIS_URL"`                          // Optional Redis URL for distributed caching
	CachePrefix string `env:"NAVTREE_CACHE_PREFIX" envDefault:"navtree:"` // Redis key prefix
	CacheTTL    int    `env:"NAVTREE_CACHE_TTL" envDefault:"3600"`        // Default cache TTL in seconds

	// Public API rate limiting, per client IP
	RateLimitRPS    float64 `env:"NAVTREE_RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst  int     `env:"NAVTREE_RATE_LIMIT_BURST" envDefault:"20"`
	RateLimitMaxIPs int     `env:"NAVTREE_RATE_LIMIT_MAX_IPS" envDefault:"10000"`

	// Seeding configuration
	DoSeed bool `env:"NAVTREE_DO_SEED" envDefault:"false"` // Enable database seeding
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("NAVTREE_RATE_LIMIT_RPS must be positive, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst < 1 {
		return nil, fmt.Errorf("NAVTREE_RATE_LIMIT_BURST must be at least 1, got %d", cfg.RateLimitBurst)
	}

	return cfg, nil
}
