package cache

import (
	"log/slog"
	"time"
)

// Config holds configuration for cache creation.
type Config struct {
	// RedisURL selects the Redis backend when non-empty.
	RedisURL string

	// Prefix is the key prefix for Redis.
	Prefix string

	// DefaultTTL is the default TTL for cache entries.
	DefaultTTL time.Duration

	// MaxSize is the maximum number of entries for the memory cache (0 = unlimited).
	MaxSize int

	// CleanupInterval is the interval for expired entry cleanup.
	CleanupInterval time.Duration
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      time.Hour,
		MaxSize:         10000,
		CleanupInterval: time.Minute,
	}
}

// New creates a cache based on the provided configuration. When Redis is
// configured but unreachable it falls back to the in-memory cache so the
// publish pipeline never blocks on cache availability.
func New(cfg Config, logger *slog.Logger) Cache {
	if cfg.RedisURL != "" {
		c, err := NewRedisCache(RedisCacheOptions{
			URL:            cfg.RedisURL,
			Prefix:         cfg.Prefix,
			DefaultTTL:     cfg.DefaultTTL,
			ConnectTimeout: 5 * time.Second,
		})
		if err == nil {
			return c
		}
		if logger != nil {
			logger.Warn("redis cache unavailable, falling back to memory", "error", err)
		}
	}

	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
	})
}
