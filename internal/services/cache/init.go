// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// CacheType represents the type of cache to use
type CacheType string

const (
	CacheTypeRedis  CacheType = "redis"
	CacheTypeMemory CacheType = "memory"
)

// Config selects and configures the cache backend.
type Config struct {
	Type      string
	RedisHost string
	RedisPort int

	// Strict makes InitCache fail instead of falling back to memory when redis is unreachable.
	Strict bool
}

func (c Config) redisAddr() string {
	host := c.RedisHost
	if host == "" {
		host = "localhost"
	}
	port := c.RedisPort
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// cacheType determines which cache implementation to use
func (c Config) cacheType() CacheType {
	if c.Type == "" {
		// Default to memory cache if Redis host is not set
		if c.RedisHost == "" {
			return CacheTypeMemory
		}
		return CacheTypeRedis
	}

	switch strings.ToLower(c.Type) {
	case "redis":
		return CacheTypeRedis
	case "memory":
		return CacheTypeMemory
	default:
		log.Warn().Str("type", c.Type).Msg("Unknown cache type specified, defaulting to memory cache")
		return CacheTypeMemory
	}
}

func redisOptions(addr string) *redis.Options {
	return &redis.Options{
		Addr:            addr,
		MinIdleConns:    2,
		MaxRetries:      RetryAttempts,
		MinRetryBackoff: RetryDelay,
		MaxRetryBackoff: time.Second,
		PoolSize:        10,
		MaxConnAge:      5 * time.Minute,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		PoolTimeout:     10 * time.Second,
		IdleTimeout:     time.Minute,
	}
}

// InitCache initializes a cache instance. A store is always returned unless
// cfg.Strict is set and redis cannot be reached.
func InitCache(ctx context.Context, cfg Config) (Store, error) {
	cacheType := cfg.cacheType()

	log.Debug().Str("type", string(cacheType)).Msg("Initializing cache")

	if cacheType != CacheTypeRedis {
		return NewMemoryStore(), nil
	}

	opts := redisOptions(cfg.redisAddr())

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	client := redis.NewClient(opts)
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		if cfg.Strict {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		log.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis connection failed, falling back to memory cache")
		return NewMemoryStore(), nil
	}

	log.Debug().Str("addr", opts.Addr).Msg("Connected to redis cache")
	return NewRedisStore(client), nil
}
