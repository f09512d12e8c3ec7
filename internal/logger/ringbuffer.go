// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package logger

import "sync"

// RingBuffer is a thread-safe circular buffer.
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int
	count int
}

// NewRingBuffer creates a ring buffer holding at most capacity items.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{items: make([]T, capacity)}
}

// Push adds an item, overwriting the oldest one when full.
func (r *RingBuffer[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.items)
	r.items[(r.head+r.count)%size] = item
	if r.count < size {
		r.count++
	} else {
		r.head = (r.head + 1) % size
	}
}

// GetAll returns the items from oldest to newest.
func (r *RingBuffer[T]) GetAll() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.count)
	for i := range out {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Len returns the number of stored items.
func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Clear drops every item.
func (r *RingBuffer[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head, r.count = 0, 0
}
