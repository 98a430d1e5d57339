// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads and validates application configuration from
// environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
)

// PublishingIdentity is the pre-provisioned remote account used for all
// outbound CMS calls. It is explicit configuration, not a user lookup.
type PublishingIdentity struct {
	AuthorID int64
	Token    string
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"PUBLISHER_DB_PATH" envDefault:"./data/publisher.db"`
	ServerHost string `env:"PUBLISHER_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"PUBLISHER_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"PUBLISHER_ENV" envDefault:"development"`
	LogLevel   string `env:"PUBLISHER_LOG_LEVEL" envDefault:"info"`

	// Remote CMS configuration
	WordPressURL string `env:"PUBLISHER_WORDPRESS_URL,required"` // Remote CMS base URL
	WPToken      string `env:"PUBLISHER_WP_TOKEN,required"`      // Bearer token of the publishing account
	WPAuthorID   int64  `env:"PUBLISHER_WP_AUTHOR_ID,required"`  // Remote author ID of the publishing account
	RemoteRate   int    `env:"PUBLISHER_REMOTE_RATE" envDefault:"5"` // Outbound requests per second

	// Worker pool configuration
	Workers int `env:"PUBLISHER_WORKERS" envDefault:"3"`

	// Cache configuration
	RedisURL     string `env:"PUBLISHER_REDIS_URL"`                          // Optional Redis URL for the taxonomy cache
	CachePrefix  string `env:"PUBLISHER_CACHE_PREFIX" envDefault:"publisher:"` // Redis key prefix
	CacheTTL     int    `env:"PUBLISHER_CACHE_TTL" envDefault:"3600"`        // Default cache TTL in seconds
	CacheMaxSize int    `env:"PUBLISHER_CACHE_MAX_SIZE" envDefault:"10000"`  // Max memory cache entries
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

// Identity returns the configured publishing identity.
func (c Config) Identity() PublishingIdentity {
	return PublishingIdentity{AuthorID: c.WPAuthorID, Token: c.WPToken}
}

// Load parses environment variables and returns a Config struct.
// Remote CMS settings are validated here so a misconfigured base URL or
// missing credential fails before any remote call is attempted.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validateBaseURL(cfg.WordPressURL); err != nil {
		return nil, err
	}
	cfg.WordPressURL = strings.TrimRight(cfg.WordPressURL, "/")

	if strings.TrimSpace(cfg.WPToken) == "" {
		return nil, fmt.Errorf("PUBLISHER_WP_TOKEN must not be blank")
	}
	if cfg.WPAuthorID <= 0 {
		return nil, fmt.Errorf("PUBLISHER_WP_AUTHOR_ID must be a positive remote user ID, got %d", cfg.WPAuthorID)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}

	return cfg, nil
}

// validateBaseURL checks that the remote CMS base URL is an absolute
// http(s) URL.
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("PUBLISHER_WORDPRESS_URL is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PUBLISHER_WORDPRESS_URL must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}
