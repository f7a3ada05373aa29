// Package cache provides a small in-memory TTL cache, used to memoize
// the dashboard's net-worth summary between ledger writes.
package cache

import (
	"sync"
	"time"
)

// Memory is a thread-safe TTL cache. Expired entries are dropped lazily
// on read and swept opportunistically on write, so no background
// goroutine is needed for the handful of keys this process holds.
type Memory[T any] struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]memEntry[T]
}

type memEntry[T any] struct {
	value    T
	deadline time.Time
}

// New creates a cache whose entries live for ttl after each Set.
func New[T any](ttl time.Duration) *Memory[T] {
	return &Memory[T]{
		ttl:     ttl,
		entries: make(map[string]memEntry[T]),
	}
}

// Get returns the live value for key, or false if absent or expired.
// An expired entry is removed on the spot.
func (m *Memory[T]) Get(key string) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if time.Now().After(e.deadline) {
		delete(m.entries, key)
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for the configured TTL, sweeping any other
// expired entries while it holds the lock.
func (m *Memory[T]) Set(key string, value T) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, e := range m.entries {
		if now.After(e.deadline) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memEntry[T]{value: value, deadline: now.Add(m.ttl)}
}

// Delete drops key immediately, expired or not.
func (m *Memory[T]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}
