// Package lock provides the per-(user, day) mutual exclusion the attendance
// lifecycle depends on: two near-simultaneous check-ins for the same key must
// serialize so exactly one creates the record.
package lock

import (
	"context"
	"sync"
	"time"
)

// Locker is a distributed try-lock. Lock returns false when another holder
// owns the key; it never blocks.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// KeyedMutex is an arena of mutexes keyed by string. Acquire blocks until
// the key is free. Entries are reference counted and removed when the last
// holder releases, so the arena does not grow with the key space.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

// Acquire locks the mutex for key and returns the release function.
func (k *KeyedMutex) Acquire(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
