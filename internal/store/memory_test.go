// ABOUTME: Tests for the in-memory session store
// ABOUTME: Covers the Store contract and snapshot isolation of returned sessions

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetOrCreate(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	sess, err := m.GetOrCreate(ctx, "14155550100")
	require.NoError(t, err)
	assert.Equal(t, StateInitial, sess.State)

	sess.State = StateAwaitingQuery
	require.NoError(t, m.Save(ctx, sess))

	again, err := m.GetOrCreate(ctx, "14155550100")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingQuery, again.State)
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	m := NewMemoryStore()

	_, err := m.Get(context.Background(), "14155550100")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReturnsIsolatedCopies(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	sess, err := m.GetOrCreate(ctx, "14155550100")
	require.NoError(t, err)
	sess.FormData["title"] = "saved"
	require.NoError(t, m.Save(ctx, sess))

	// Mutating a returned session must not leak into the store
	got, err := m.Get(ctx, "14155550100")
	require.NoError(t, err)
	got.FormData["title"] = "mutated"
	got.State = StateClosed

	fresh, err := m.Get(ctx, "14155550100")
	require.NoError(t, err)
	assert.Equal(t, "saved", fresh.FormData["title"])
	assert.Equal(t, StateInitial, fresh.State)
}

func TestMemoryStore_ListActive(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for i, userID := range []string{"14155550101", "14155550102", "14155550103"} {
		sess, err := m.GetOrCreate(ctx, userID)
		require.NoError(t, err)
		sess.LastActivityAt = now.Add(-time.Duration(i) * time.Hour)
		require.NoError(t, m.Save(ctx, sess))
	}

	active, err := m.ListActive(ctx, now.Add(-90*time.Minute))
	require.NoError(t, err)

	require.Len(t, active, 2)
	assert.Equal(t, "14155550101", active[0].UserID)
	assert.Equal(t, "14155550102", active[1].UserID)
}

func TestMemoryStore_Delete(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_, err := m.GetOrCreate(ctx, "14155550100")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "14155550100"))
	_, err = m.Get(ctx, "14155550100")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, m.Delete(ctx, "14155550100"))
}
