// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkRedisAvailable checks if Redis is available at the given address
func checkRedisAvailable(addr string) bool {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	return client.Ping(ctx).Err() == nil
}

func setupTestCache(t *testing.T) Store {
	cfg := Config{Type: "redis", RedisHost: "localhost", RedisPort: 6379, Strict: true}

	if !checkRedisAvailable(cfg.redisAddr()) {
		t.Skip("Redis not available, skipping test")
	}

	store, err := InitCache(context.Background(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestRedisStoreBasicOperations(t *testing.T) {
	store := setupTestCache(t)
	ctx := context.Background()

	_, ok := store.(*RedisStore)
	require.True(t, ok, "Expected RedisStore type")

	want := testStruct{Name: "series", Value: 42}
	require.NoError(t, store.Set(ctx, "trimmarr-test:key", want, time.Minute))

	var got testStruct
	require.NoError(t, store.Get(ctx, "trimmarr-test:key", &got))
	assert.Equal(t, want, got)

	require.NoError(t, store.Delete(ctx, "trimmarr-test:key"))
	assert.ErrorIs(t, store.Get(ctx, "trimmarr-test:key", &got), ErrKeyNotFound)
}

func TestRedisStoreRateLimitOperations(t *testing.T) {
	store := setupTestCache(t)
	ctx := context.Background()

	key := PrefixRate + "trimmarr-test"
	t.Cleanup(func() { _ = store.Delete(ctx, key) })

	now := time.Now().Unix()
	for i := int64(0); i < 5; i++ {
		require.NoError(t, store.Increment(ctx, key, now-i*10))
	}

	require.NoError(t, store.CleanAndCount(ctx, key, now-25))

	count, err := store.GetCount(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, store.Expire(ctx, key, time.Minute))
}

func TestRedisStoreClosed(t *testing.T) {
	store := setupTestCache(t)
	require.NoError(t, store.Close())

	var v string
	assert.ErrorIs(t, store.Get(context.Background(), "k", &v), ErrClosed)
	assert.ErrorIs(t, store.Set(context.Background(), "k", "v", time.Minute), ErrClosed)
}
