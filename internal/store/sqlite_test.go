// ABOUTME: Tests for the SQLite session store
// ABOUTME: Covers persistence round-trips, concurrent creation and expiry listing

package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_GetOrCreate_NewSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.GetOrCreate(ctx, "14155550100")
	require.NoError(t, err)

	assert.Equal(t, "14155550100", sess.UserID)
	assert.Equal(t, StateInitial, sess.State)
	assert.Empty(t, sess.SubStep)
	assert.Empty(t, sess.FormData)
	assert.False(t, sess.CreatedAt.IsZero())
}

func TestSQLiteStore_GetOrCreate_ExistingSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.GetOrCreate(ctx, "14155550100")
	require.NoError(t, err)

	first.State = StateAwaitingQuery
	first.ThreadRef = "thread-1"
	require.NoError(t, s.Save(ctx, first))

	second, err := s.GetOrCreate(ctx, "14155550100")
	require.NoError(t, err)

	assert.Equal(t, StateAwaitingQuery, second.State)
	assert.Equal(t, "thread-1", second.ThreadRef)
	// Timestamps persist at second precision
	assert.WithinDuration(t, first.CreatedAt, second.CreatedAt, time.Second)
}

func TestSQLiteStore_GetOrCreate_ConcurrentSameUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const goroutines = 10
	sessions := make([]*Session, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := s.GetOrCreate(ctx, "14155550100")
			assert.NoError(t, err)
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	// Every goroutine observed the same single session
	for _, sess := range sessions {
		assert.Equal(t, "14155550100", sess.UserID)
		assert.WithinDuration(t, sessions[0].CreatedAt, sess.CreatedAt, time.Second)
	}
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "14155550100")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Save_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.GetOrCreate(ctx, "14155550100")
	require.NoError(t, err)

	sess.Name = "Maria"
	sess.State = StateTicketCreation
	sess.SubStep = "description"
	sess.FormData = map[string]string{"title": "Inverter offline"}
	sess.ThreadRef = "thread-9"
	sess.AppendHistory("user", "my inverter is down", time.Now(), 50)
	sess.AppendHistory("assistant", "What is the title?", time.Now(), 50)
	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Get(ctx, "14155550100")
	require.NoError(t, err)

	assert.Equal(t, "Maria", got.Name)
	assert.Equal(t, StateTicketCreation, got.State)
	assert.Equal(t, "description", got.SubStep)
	assert.Equal(t, map[string]string{"title": "Inverter offline"}, got.FormData)
	assert.Equal(t, "thread-9", got.ThreadRef)
	require.Len(t, got.History, 2)
	assert.Equal(t, "my inverter is down", got.History[0].Content)
	assert.Equal(t, "assistant", got.History[1].Role)
}

func TestSQLiteStore_Save_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	sess, err := s.GetOrCreate(ctx, "14155550100")
	require.NoError(t, err)
	sess.State = StateAwaitingQuery
	require.NoError(t, s.Save(ctx, sess))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "14155550100")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingQuery, got.State)
}

func TestSQLiteStore_ListActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old, err := s.GetOrCreate(ctx, "14155550101")
	require.NoError(t, err)
	old.LastActivityAt = now.Add(-time.Hour)
	require.NoError(t, s.Save(ctx, old))

	recent, err := s.GetOrCreate(ctx, "14155550102")
	require.NoError(t, err)
	recent.LastActivityAt = now.Add(-time.Minute)
	require.NoError(t, s.Save(ctx, recent))

	active, err := s.ListActive(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)

	require.Len(t, active, 1)
	assert.Equal(t, "14155550102", active[0].UserID)
}

func TestSQLiteStore_ListActive_OrderedByActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, userID := range []string{"14155550101", "14155550102", "14155550103"} {
		sess, err := s.GetOrCreate(ctx, userID)
		require.NoError(t, err)
		sess.LastActivityAt = now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Save(ctx, sess))
	}

	active, err := s.ListActive(ctx, now.Add(-time.Hour))
	require.NoError(t, err)

	require.Len(t, active, 3)
	assert.Equal(t, "14155550103", active[0].UserID)
	assert.Equal(t, "14155550101", active[2].UserID)
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "14155550100")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "14155550100"))

	_, err = s.Get(ctx, "14155550100")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing session is not an error
	assert.NoError(t, s.Delete(ctx, "14155550100"))
}
