// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	MaxRetries     = 3
	InitialBackoff = 100 * time.Millisecond
	MaxBackoff     = 2 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker implements a simple circuit breaker pattern
type CircuitBreaker struct {
	failures     int
	lastFailure  time.Time
	mutex        sync.Mutex
	maxFailures  int
	resetTimeout time.Duration
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
	}
}

// IsOpen reports whether calls should be rejected. The breaker closes again
// once resetTimeout has passed since the last failure.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.failures < cb.maxFailures {
		return false
	}
	if time.Since(cb.lastFailure) > cb.resetTimeout {
		cb.failures = 0
		return false
	}
	return true
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0
}

// Do runs fn with retries unless the breaker is open, and records the outcome.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func() error) error {
	if cb.IsOpen() {
		return ErrCircuitOpen
	}

	if err := RetryWithBackoff(ctx, fn); err != nil {
		var perm *permanentError
		if !errors.As(err, &perm) {
			cb.RecordFailure()
		}
		return err
	}

	cb.RecordSuccess()
	return nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. It does not count as a breaker failure either.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryWithBackoff implements exponential backoff retry logic
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	backoff := InitialBackoff

	for i := 0; i < MaxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return err
		}

		if i == MaxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			// Exponential backoff with 50-150% jitter
			jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))
			backoff *= 2
			if backoff > MaxBackoff {
				backoff = MaxBackoff
			}
			backoff += jitter
		}
	}

	return fmt.Errorf("failed after %d retries: %w", MaxRetries, err)
}
