// Package keylock provides reader/writer locks scoped to a string key.
// Entries exist only while some goroutine holds or waits on them, so locking
// one key never blocks another.
package keylock

import "sync"

type entry struct {
	mu   sync.RWMutex
	refs int
}

// Locker hands out per-key RW locks. The zero value is ready to use.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{}
}

// Lock acquires key exclusively and returns the matching unlock func.
func (l *Locker) Lock(key string) (unlock func()) {
	e := l.acquire(key)
	e.mu.Lock()
	return l.releaser(key, e, e.mu.Unlock)
}

// RLock acquires key in shared mode and returns the matching unlock func.
func (l *Locker) RLock(key string) (unlock func()) {
	e := l.acquire(key)
	e.mu.RLock()
	return l.releaser(key, e, e.mu.RUnlock)
}

// Len reports how many keys currently have holders or waiters.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Locker) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.entries == nil {
		l.entries = make(map[string]*entry)
	}
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) releaser(key string, e *entry, unlock func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			unlock()

			l.mu.Lock()
			defer l.mu.Unlock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, key)
			}
		})
	}
}
