// ABOUTME: Tests for the dashboard aggregation facade
// ABOUTME: Covers stats rollups, session views and daily counter rollover

package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarops/ticketbot/internal/breaker"
	"github.com/solarops/ticketbot/internal/queue"
	"github.com/solarops/ticketbot/internal/store"
)

func newFacadeFixture(t *testing.T) (*Facade, store.Store, *queue.MemoryTracker) {
	t.Helper()

	s := store.NewMemoryStore()
	tr := queue.NewMemoryTracker()
	b := breaker.New("odoo", 5, time.Minute)
	f := NewFacade(s, tr, []*breaker.Breaker{b}, 10*time.Minute)
	return f, s, tr
}

func seedSession(t *testing.T, s store.Store, userID string, state store.State, messages int) {
	t.Helper()
	ctx := context.Background()

	sess, err := s.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	sess.State = state
	for i := 0; i < messages; i++ {
		sess.AppendHistory("user", "msg", time.Now(), 50)
		sess.AppendHistory("assistant", "re", time.Now(), 50)
	}
	require.NoError(t, s.Save(ctx, sess))
}

func TestStats_Aggregates(t *testing.T) {
	f, s, tr := newFacadeFixture(t)
	ctx := context.Background()

	seedSession(t, s, "14155550101", store.StateAwaitingQuery, 2)
	seedSession(t, s, "14155550102", store.StateTicketCreation, 1)

	tr.Enqueue(ctx, queue.QueueInboundMessages)

	f.RecordTicket(time.Now())
	f.RecordTicket(time.Now())
	f.RecordLead(time.Now())

	stats, err := f.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Equal(t, 3, stats.MessagesToday)
	assert.Equal(t, int64(2), stats.TicketsToday)
	assert.Equal(t, int64(1), stats.LeadsToday)
	assert.Equal(t, int64(1), stats.Queues[queue.QueueInboundMessages].Pending)
	require.Len(t, stats.Breakers, 1)
	assert.Equal(t, "odoo", stats.Breakers[0].Name)
	assert.Equal(t, breaker.StateClosed, stats.Breakers[0].State)
}

func TestStats_ExcludesIdleSessions(t *testing.T) {
	f, s, _ := newFacadeFixture(t)
	ctx := context.Background()

	sess, err := s.GetOrCreate(ctx, "14155550101")
	require.NoError(t, err)
	sess.LastActivityAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Save(ctx, sess))

	stats, err := f.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ActiveSessions)
}

func TestDayCounter_RollsOverAtMidnight(t *testing.T) {
	var c dayCounter

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	c.record(yesterday)
	c.record(yesterday)

	assert.Zero(t, c.today(time.Now()))

	c.record(time.Now())
	assert.Equal(t, int64(1), c.today(time.Now()))
}

func TestSessions_SummariesWithoutHistory(t *testing.T) {
	f, s, _ := newFacadeFixture(t)

	seedSession(t, s, "14155550101", store.StateAwaitingQuery, 3)

	summaries, err := f.Sessions(context.Background())
	require.NoError(t, err)

	require.Len(t, summaries, 1)
	assert.Equal(t, "14155550101", summaries[0].UserID)
	assert.Equal(t, string(store.StateAwaitingQuery), summaries[0].State)
	assert.Equal(t, 6, summaries[0].MessageCount)
}

func TestSession_DetailIncludesHistoryAndForm(t *testing.T) {
	f, s, _ := newFacadeFixture(t)
	ctx := context.Background()

	sess, err := s.GetOrCreate(ctx, "14155550101")
	require.NoError(t, err)
	sess.State = store.StateTicketCreation
	sess.SubStep = "description"
	sess.FormData = map[string]string{"title": "Inverter offline"}
	sess.AppendHistory("user", "ticket", time.Now(), 50)
	require.NoError(t, s.Save(ctx, sess))

	detail, err := f.Session(ctx, "14155550101")
	require.NoError(t, err)

	assert.Equal(t, "description", detail.SubStep)
	assert.Equal(t, "Inverter offline", detail.FormData["title"])
	require.Len(t, detail.History, 1)
	assert.Equal(t, "ticket", detail.History[0].Content)
}

func TestSession_NotFound(t *testing.T) {
	f, _, _ := newFacadeFixture(t)

	_, err := f.Session(context.Background(), "14155550199")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResetFailed_DelegatesToTracker(t *testing.T) {
	f, _, tr := newFacadeFixture(t)
	ctx := context.Background()

	tr.Enqueue(ctx, queue.QueueTicketCreation)
	tr.StartProcessing(ctx, queue.QueueTicketCreation)
	tr.Fail(ctx, queue.QueueTicketCreation)

	require.NoError(t, f.ResetFailed(ctx, queue.QueueTicketCreation))

	snap, _ := tr.Snapshot(ctx)
	assert.Zero(t, snap[queue.QueueTicketCreation].Failed)
}
