// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RedisStore is a redis backed Store with a short-lived local read cache
type RedisStore struct {
	client *redis.Client
	local  *LocalCache
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex
}

// LocalCache provides in-memory caching to reduce Redis hits
type LocalCache struct {
	sync.RWMutex
	items map[string]*localCacheItem
}

type localCacheItem struct {
	value      []byte
	expiration time.Time
}

func newLocalCache() *LocalCache {
	return &LocalCache{items: make(map[string]*localCacheItem)}
}

func (l *LocalCache) get(key string) ([]byte, bool) {
	l.RLock()
	item, ok := l.items[key]
	l.RUnlock()

	if !ok || time.Now().After(item.expiration) {
		return nil, false
	}
	return item.value, true
}

func (l *LocalCache) set(key string, value []byte, ttl time.Duration) {
	l.Lock()
	l.items[key] = &localCacheItem{value: value, expiration: time.Now().Add(ttl)}
	l.Unlock()
}

func (l *LocalCache) delete(key string) {
	l.Lock()
	delete(l.items, key)
	l.Unlock()
}

func (l *LocalCache) purgeExpired(now time.Time) {
	l.Lock()
	for key, item := range l.items {
		if now.After(item.expiration) {
			delete(l.items, key)
		}
	}
	l.Unlock()
}

func (l *LocalCache) reset() {
	l.Lock()
	l.items = make(map[string]*localCacheItem)
	l.Unlock()
}

// NewRedisStore wraps a connected redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	ctx, cancel := context.WithCancel(context.Background())

	store := &RedisStore{
		client: client,
		local:  newLocalCache(),
		ctx:    ctx,
		cancel: cancel,
	}

	store.wg.Add(1)
	go func() {
		defer store.wg.Done()
		store.localCacheCleanup()
	}()

	return store
}

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// withRetry runs op up to RetryAttempts times, each with its own timeout.
// redis.Nil is returned immediately.
func (s *RedisStore) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	if s.isClosed() {
		return ErrClosed
	}

	var lastErr error
	for i := 0; i < RetryAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		err := op(timeoutCtx)
		cancel()

		if err == nil || errors.Is(err, redis.Nil) {
			return err
		}

		lastErr = err
		if i < RetryAttempts-1 {
			time.Sleep(RetryDelay)
		}
	}
	return lastErr
}

// Get retrieves a value, consulting the local cache first
func (s *RedisStore) Get(ctx context.Context, key string, value interface{}) error {
	if s.isClosed() {
		return ErrClosed
	}

	if data, ok := s.local.get(key); ok {
		if err := json.Unmarshal(data, value); err == nil {
			return nil
		}
		log.Error().Str("key", key).Msg("Failed to unmarshal local cached value")
	}

	var data []byte
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		data, err = s.client.Get(ctx, key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}

	ttl := s.client.TTL(ctx, key).Val()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.local.set(key, data, ttl)

	return json.Unmarshal(data, value)
}

// Set stores a value in both Redis and local cache
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration == 0 {
		expiration = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to marshal value for cache")
		return err
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.client.Set(ctx, key, data, expiration).Err()
	})
	if err != nil {
		return err
	}

	s.local.set(key, data, expiration)
	return nil
}

// Delete removes a value from both Redis and local cache
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	s.local.delete(key)

	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.client.Del(ctx, key).Err()
	})
}

// Increment records a request timestamp in the sorted set at key.
// Members are unique so requests within the same second all count.
func (s *RedisStore) Increment(ctx context.Context, key string, timestamp int64) error {
	member := strconv.FormatInt(timestamp, 10) + ":" + uuid.NewString()
	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.client.ZAdd(ctx, key, &redis.Z{
			Score:  float64(timestamp),
			Member: member,
		}).Err()
	})
}

// CleanAndCount drops timestamps older than windowStart
func (s *RedisStore) CleanAndCount(ctx context.Context, key string, windowStart int64) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(windowStart, 10)).Err()
	})
}

func (s *RedisStore) GetCount(ctx context.Context, key string) (int64, error) {
	var count int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.client.ZCard(ctx, key).Result()
		return err
	})
	return count, err
}

func (s *RedisStore) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if expiration == 0 {
		expiration = DefaultTTL
	}

	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.client.Expire(ctx, key, expiration).Err()
	})
}

func (s *RedisStore) localCacheCleanup() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.local.purgeExpired(now)
		case <-s.ctx.Done():
			return
		}
	}
}

// Close closes the Redis connection and stops the cleanup goroutine
func (s *RedisStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.local.reset()

	return s.client.Close()
}
