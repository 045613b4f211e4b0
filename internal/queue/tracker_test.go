// ABOUTME: Tests for the in-memory queue tracker
// ABOUTME: Covers lifecycle transitions, negative clamping and operator resets

package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTracker_Lifecycle(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	tr.Enqueue(ctx, QueueInboundMessages)
	tr.Enqueue(ctx, QueueInboundMessages)

	snap, err := tr.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Pending: 2}, snap[QueueInboundMessages])

	tr.StartProcessing(ctx, QueueInboundMessages)
	snap, _ = tr.Snapshot(ctx)
	assert.Equal(t, Counts{Pending: 1, Processing: 1}, snap[QueueInboundMessages])

	tr.Complete(ctx, QueueInboundMessages)
	snap, _ = tr.Snapshot(ctx)
	assert.Equal(t, Counts{Pending: 1}, snap[QueueInboundMessages])
}

func TestMemoryTracker_FailMovesToFailed(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	tr.Enqueue(ctx, QueueTicketCreation)
	tr.StartProcessing(ctx, QueueTicketCreation)
	tr.Fail(ctx, QueueTicketCreation)

	snap, _ := tr.Snapshot(ctx)
	assert.Equal(t, Counts{Failed: 1}, snap[QueueTicketCreation])
}

func TestMemoryTracker_NeverNegative(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	// Transitions without matching predecessors clamp at zero
	tr.Complete(ctx, QueueOutboundMessages)
	tr.StartProcessing(ctx, QueueOutboundMessages)
	tr.Fail(ctx, QueueOutboundMessages)
	tr.Fail(ctx, QueueOutboundMessages)

	snap, _ := tr.Snapshot(ctx)
	c := snap[QueueOutboundMessages]
	assert.GreaterOrEqual(t, c.Pending, int64(0))
	assert.GreaterOrEqual(t, c.Processing, int64(0))
	assert.Equal(t, int64(2), c.Failed)
}

func TestMemoryTracker_ResetFailed(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	tr.Enqueue(ctx, QueueLeadCreation)
	tr.StartProcessing(ctx, QueueLeadCreation)
	tr.Fail(ctx, QueueLeadCreation)

	require.NoError(t, tr.ResetFailed(ctx, QueueLeadCreation))

	snap, _ := tr.Snapshot(ctx)
	assert.Zero(t, snap[QueueLeadCreation].Failed)
}

func TestMemoryTracker_ResetFailed_UnknownQueue(t *testing.T) {
	tr := NewMemoryTracker()

	assert.NoError(t, tr.ResetFailed(context.Background(), "nonexistent"))
}

func TestMemoryTracker_ConcurrentCounts(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Enqueue(ctx, QueueInboundMessages)
			tr.StartProcessing(ctx, QueueInboundMessages)
			tr.Complete(ctx, QueueInboundMessages)
		}()
	}
	wg.Wait()

	snap, _ := tr.Snapshot(ctx)
	assert.Equal(t, Counts{}, snap[QueueInboundMessages])
}
