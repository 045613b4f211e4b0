// ABOUTME: Read-only aggregation facade over sessions, queues and breakers
// ABOUTME: Also keeps per-day ticket and lead counters fed by the router

package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/solarops/ticketbot/internal/breaker"
	"github.com/solarops/ticketbot/internal/queue"
	"github.com/solarops/ticketbot/internal/store"
)

// Stats is the aggregate snapshot served by the dashboard overview
type Stats struct {
	ActiveSessions int                     `json:"active_sessions"`
	MessagesToday  int                     `json:"messages_today"`
	TicketsToday   int64                   `json:"tickets_today"`
	LeadsToday     int64                   `json:"leads_today"`
	Queues         map[string]queue.Counts `json:"queues"`
	Breakers       []breaker.Status        `json:"breakers"`
	GeneratedAt    time.Time               `json:"generated_at"`
}

// SessionSummary is the per-session row in the dashboard session list.
// Conversation history is omitted; the detail endpoint carries it.
type SessionSummary struct {
	UserID         string    `json:"user_id"`
	Name           string    `json:"name,omitempty"`
	State          string    `json:"state"`
	SubStep        string    `json:"sub_step,omitempty"`
	MessageCount   int       `json:"message_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// SessionDetail is the full session view including conversation history
type SessionDetail struct {
	SessionSummary
	FormData map[string]string    `json:"form_data,omitempty"`
	History  []store.HistoryEntry `json:"history"`
}

// dayCounter counts events per calendar day (UTC), keeping only today.
// The rollover happens lazily on the next record or read.
type dayCounter struct {
	mu    sync.Mutex
	day   string
	count int64
}

func (c *dayCounter) record(at time.Time) {
	day := at.UTC().Format("2006-01-02")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.day != day {
		c.day = day
		c.count = 0
	}
	c.count++
}

func (c *dayCounter) today(now time.Time) int64 {
	day := now.UTC().Format("2006-01-02")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.day != day {
		return 0
	}
	return c.count
}

// Facade exposes read-only views for monitoring. It never mutates session
// state and reads snapshots without taking per-user locks, so a slow
// dashboard request cannot delay message processing.
type Facade struct {
	store    store.Store
	tracker  queue.Tracker
	breakers []*breaker.Breaker
	ttl      time.Duration
	now      func() time.Time

	tickets dayCounter
	leads   dayCounter
}

// NewFacade creates a dashboard facade over the given components.
// breakers may be empty; ttl bounds which sessions count as active.
func NewFacade(s store.Store, tracker queue.Tracker, breakers []*breaker.Breaker, ttl time.Duration) *Facade {
	return &Facade{
		store:    s,
		tracker:  tracker,
		breakers: breakers,
		ttl:      ttl,
		now:      time.Now,
	}
}

// RecordTicket notes a successful ticket creation for daily stats
func (f *Facade) RecordTicket(at time.Time) { f.tickets.record(at) }

// RecordLead notes a successful lead creation for daily stats
func (f *Facade) RecordLead(at time.Time) { f.leads.record(at) }

// Stats returns the aggregate overview snapshot
func (f *Facade) Stats(ctx context.Context) (*Stats, error) {
	now := f.now()

	sessions, err := f.store.ListActive(ctx, now.Add(-f.ttl))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	midnight := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	messagesToday := 0
	for _, sess := range sessions {
		for _, entry := range sess.History {
			if entry.Role == "user" && !entry.Timestamp.Before(midnight) {
				messagesToday++
			}
		}
	}

	counts, err := f.tracker.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading queue counts: %w", err)
	}

	statuses := make([]breaker.Status, 0, len(f.breakers))
	for _, b := range f.breakers {
		statuses = append(statuses, b.Status())
	}

	return &Stats{
		ActiveSessions: len(sessions),
		MessagesToday:  messagesToday,
		TicketsToday:   f.tickets.today(now),
		LeadsToday:     f.leads.today(now),
		Queues:         counts,
		Breakers:       statuses,
		GeneratedAt:    now,
	}, nil
}

// Sessions returns summaries of active sessions, most recent first
func (f *Facade) Sessions(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := f.store.ListActive(ctx, f.now().Add(-f.ttl))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, summarize(sess))
	}
	return summaries, nil
}

// Session returns the full detail for one session.
// Returns store.ErrNotFound if no session exists for the user.
func (f *Facade) Session(ctx context.Context, userID string) (*SessionDetail, error) {
	sess, err := f.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &SessionDetail{
		SessionSummary: summarize(sess),
		FormData:       sess.FormData,
		History:        sess.History,
	}, nil
}

// ResetFailed zeroes the failed counter on one queue
func (f *Facade) ResetFailed(ctx context.Context, queueName string) error {
	return f.tracker.ResetFailed(ctx, queueName)
}

func summarize(sess *store.Session) SessionSummary {
	return SessionSummary{
		UserID:         sess.UserID,
		Name:           sess.Name,
		State:          string(sess.State),
		SubStep:        sess.SubStep,
		MessageCount:   len(sess.History),
		CreatedAt:      sess.CreatedAt,
		LastActivityAt: sess.LastActivityAt,
	}
}
