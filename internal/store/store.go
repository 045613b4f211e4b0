// ABOUTME: Store interface and data types for ticketbot session persistence
// ABOUTME: Defines Session, HistoryEntry and the Store interface implementations must satisfy

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested session does not exist
var ErrNotFound = errors.New("not found")

// State identifies where a session is in the conversation lifecycle
type State string

// Session states
const (
	StateInitial        State = "INITIAL"
	StateAwaitingQuery  State = "AWAITING_QUERY"
	StateTicketCreation State = "TICKET_CREATION"
	StateLeadCreation   State = "LEAD_CREATION"
	StateClosed         State = "CLOSED"
)

// InForm reports whether the state is one of the guided form states.
// SubStep is meaningful only while InForm returns true.
func (s State) InForm() bool {
	return s == StateTicketCreation || s == StateLeadCreation
}

// HistoryEntry is one message in a session's bounded history.
// History is kept for operator inspection only; AI context lives behind
// the session's thread reference.
type HistoryEntry struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the per-user conversational state record
type Session struct {
	UserID         string
	Name           string // profile name reported by the messaging transport
	State          State
	SubStep        string // current form field; empty unless State.InForm()
	FormData       map[string]string
	ThreadRef      string // opaque AI conversation handle, created lazily
	CreatedAt      time.Time
	LastActivityAt time.Time
	History        []HistoryEntry
}

// Touch advances the activity timestamp. LastActivityAt never goes backward.
func (s *Session) Touch(now time.Time) {
	if now.After(s.LastActivityAt) {
		s.LastActivityAt = now
	}
}

// Expired reports whether the session has been inactive longer than ttl
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActivityAt) > ttl
}

// ResetForm clears the form position and collected data
func (s *Session) ResetForm() {
	s.SubStep = ""
	s.FormData = map[string]string{}
}

// AppendHistory records a message, evicting the oldest entries beyond limit
func (s *Session) AppendHistory(role, content string, ts time.Time, limit int) {
	s.History = append(s.History, HistoryEntry{Role: role, Content: content, Timestamp: ts})
	if limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}

// Clone returns a deep copy so snapshots never alias router-owned state
func (s *Session) Clone() *Session {
	c := *s
	c.FormData = make(map[string]string, len(s.FormData))
	for k, v := range s.FormData {
		c.FormData[k] = v
	}
	c.History = make([]HistoryEntry, len(s.History))
	copy(c.History, s.History)
	return &c
}

// NewSession builds a fresh session in the INITIAL state
func NewSession(userID string, now time.Time) *Session {
	return &Session{
		UserID:         userID,
		State:          StateInitial,
		FormData:       map[string]string{},
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Store defines the interface for session persistence.
//
// GetOrCreate must be safe under concurrent calls for the same userID:
// at most one session is ever created per user. Save persists the full
// record; callers are expected to serialize writes per user (the router's
// per-user lock does this), so last-writer-wins semantics are acceptable.
type Store interface {
	// GetOrCreate returns the existing session for userID or atomically
	// creates a new one in the INITIAL state.
	GetOrCreate(ctx context.Context, userID string) (*Session, error)

	// Get returns the session for userID or ErrNotFound.
	Get(ctx context.Context, userID string) (*Session, error)

	// Save persists the full session record.
	Save(ctx context.Context, session *Session) error

	// ListActive returns a snapshot of sessions with activity at or after
	// cutoff, ordered by last activity descending.
	ListActive(ctx context.Context, cutoff time.Time) ([]*Session, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, userID string) error

	// Close releases any resources held by the store.
	Close() error
}
