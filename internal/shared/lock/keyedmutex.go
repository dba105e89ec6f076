// Package lock provides an in-process keyed mutex used to serialize
// reconciliation writes per entity.
package lock

import "sync"

// KeyedMutex serializes critical sections per key. Locks are created on
// demand and released entries are reclaimed when the last holder leaves, so
// the map does not grow with the total number of keys ever seen.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates a new KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available.
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. It must be called exactly once per Lock.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		panic("lock: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}

// WithLock runs fn while holding the mutex for key.
func (k *KeyedMutex) WithLock(key string, fn func()) {
	k.Lock(key)
	defer k.Unlock(key)
	fn()
}
