package usecase

import "sync"

// keyLock hands out one mutex per key and forgets keys nobody holds.
type keyLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock[K comparable]() *keyLock[K] {
	return &keyLock[K]{locks: map[K]*keyEntry{}}
}

// Lock blocks until key is free and returns its release function.
func (l *keyLock[K]) Lock(key K) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
