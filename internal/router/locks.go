// ABOUTME: Reference-counted per-user mutexes serializing routing per user
// ABOUTME: Different users route fully in parallel; same-user messages queue up

package router

import "sync"

// userLocks hands out one mutex per user ID, created on demand and freed
// when the last holder releases it. The router holds a user's lock across
// the full get -> route -> save cycle, including backend calls.
type userLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the caller holds the lock for userID
func (l *userLocks) acquire(userID string) {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		e = &lockEntry{}
		l.entries[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

// release unlocks the mutex for userID and drops the entry once unused
func (l *userLocks) release(userID string) {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(l.entries, userID)
		}
	}
	l.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}
