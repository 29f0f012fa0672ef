// Package cache provides TTL key/value stores used to memoize resolved
// auth contexts. The in-memory store is the default and is correct only
// under single-instance deployment or sticky sessions; the Redis store
// exists for multi-process deployments. Both have last-write-wins
// semantics: concurrent fills for the same key are idempotent, so no
// cross-request locking is needed.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a TTL-bounded key/value store.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// Memory is a process-wide map with per-entry expiry, checked lazily on
// read. Expired entries are dropped on access rather than swept.
type Memory[T any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[T]
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		entries: make(map[string]memoryEntry[T]),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (m *Memory[T]) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory[T]) Get(_ context.Context, key string) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		var zero T
		return zero, false
	}
	return entry.value, true
}

func (m *Memory[T]) Set(_ context.Context, key string, value T, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry[T]{value: value, expiresAt: m.now().Add(ttl)}
}

func (m *Memory[T]) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len reports the number of live entries, counting expired ones that have
// not yet been dropped.
func (m *Memory[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
