// ABOUTME: In-memory implementation of the Store interface for development and tests
// ABOUTME: Holds sessions in a mutex-guarded map; state is lost on restart

package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with a plain map. It is the development
// fallback behind the same contract as the SQLite store; nothing survives
// a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		logger:   slog.Default().With("component", "store"),
	}
}

// GetOrCreate returns the existing session or creates one atomically
func (m *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[userID]; ok {
		return sess.Clone(), nil
	}

	sess := NewSession(userID, time.Now().UTC())
	m.sessions[userID] = sess.Clone()
	m.logger.Debug("created session", "user_id", userID)
	return sess, nil
}

// Get returns the session for userID or ErrNotFound
func (m *MemoryStore) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

// Save stores a copy of the full session record
func (m *MemoryStore) Save(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sess.UserID] = sess.Clone()
	return nil
}

// ListActive returns a snapshot of sessions active since cutoff,
// most recent first.
func (m *MemoryStore) ListActive(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Session
	for _, sess := range m.sessions {
		if !sess.LastActivityAt.Before(cutoff) {
			out = append(out, sess.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

// Delete removes a session. Missing sessions are ignored.
func (m *MemoryStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
	return nil
}

// Close is a no-op for the memory store
func (m *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)
