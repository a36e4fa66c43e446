// Package keylock provides a mutual-exclusion scope keyed by an opaque
// identifier. Each key has its own lock, so operations on different keys
// never serialize against each other.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex hands out per-key locks on demand and frees them once the
// last waiter is gone, so the key space can grow without leaking memory.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[string]*entry),
	}
}

// Lock blocks until the lock for key is acquired or ctx ends. On success
// it returns a release function that must be called exactly once. When ctx
// is cancelled or times out while waiting, the lock is not acquired and
// ctx.Err() is returned.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-e.sem
				m.unref(key, e)
			})
		}
		return release, nil
	case <-ctx.Done():
		m.unref(key, e)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) unref(key string, e *entry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}

// Len reports the number of keys currently tracked.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
