// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MemoryStore implements Store interface using in-memory storage
type MemoryStore struct {
	local  *LocalCache
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex

	rateLimits sync.Map // map[string]*rateWindow
}

type rateWindow struct {
	sync.RWMutex
	timestamps []int64
}

// NewMemoryStore creates a new in-memory cache instance
func NewMemoryStore() *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())

	store := &MemoryStore{
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

func (s *MemoryStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Get retrieves a value from cache
func (s *MemoryStore) Get(_ context.Context, key string, value interface{}) error {
	if s.isClosed() {
		return ErrClosed
	}

	data, ok := s.local.get(key)
	if !ok {
		return ErrKeyNotFound
	}
	return json.Unmarshal(data, value)
}

// Set stores a value in cache
func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	if s.isClosed() {
		return ErrClosed
	}

	if expiration == 0 {
		expiration = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to marshal value for cache")
		return err
	}

	s.local.set(key, data, expiration)
	return nil
}

// Delete removes a value from cache
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}

	s.local.delete(key)
	s.rateLimits.Delete(key)
	return nil
}

// Increment adds a timestamp to the rate limit window
func (s *MemoryStore) Increment(_ context.Context, key string, timestamp int64) error {
	if s.isClosed() {
		return ErrClosed
	}

	window, _ := s.rateLimits.LoadOrStore(key, &rateWindow{})
	w := window.(*rateWindow)

	w.Lock()
	w.timestamps = append(w.timestamps, timestamp)
	w.Unlock()

	return nil
}

// CleanAndCount removes timestamps older than windowStart
func (s *MemoryStore) CleanAndCount(_ context.Context, key string, windowStart int64) error {
	if s.isClosed() {
		return ErrClosed
	}

	if window, ok := s.rateLimits.Load(key); ok {
		window.(*rateWindow).prune(windowStart)
	}

	return nil
}

// GetCount returns the number of timestamps in the current window
func (s *MemoryStore) GetCount(_ context.Context, key string) (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	if window, ok := s.rateLimits.Load(key); ok {
		w := window.(*rateWindow)
		w.RLock()
		count := int64(len(w.timestamps))
		w.RUnlock()
		return count, nil
	}

	return 0, nil
}

// Expire updates the expiration time for a key
func (s *MemoryStore) Expire(_ context.Context, key string, expiration time.Duration) error {
	if s.isClosed() {
		return ErrClosed
	}

	s.local.Lock()
	if item, exists := s.local.items[key]; exists {
		item.expiration = time.Now().Add(expiration)
	}
	s.local.Unlock()

	return nil
}

// Close cleans up resources
func (s *MemoryStore) Close() error {
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

	return nil
}

func (w *rateWindow) prune(windowStart int64) {
	w.Lock()
	kept := w.timestamps[:0]
	for _, timestamp := range w.timestamps {
		if timestamp >= windowStart {
			kept = append(kept, timestamp)
		}
	}
	w.timestamps = kept
	w.Unlock()
}

func (s *MemoryStore) localCacheCleanup() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.local.purgeExpired(now)

			// Rate windows never span more than a day
			windowStart := now.Add(-24 * time.Hour).Unix()
			s.rateLimits.Range(func(_, value interface{}) bool {
				value.(*rateWindow).prune(windowStart)
				return true
			})

		case <-s.ctx.Done():
			return
		}
	}
}
