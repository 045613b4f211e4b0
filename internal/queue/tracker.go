// ABOUTME: Queue/activity tracker counting in-flight outbound work items
// ABOUTME: Tracks pending/processing/failed per logical queue for observability

package queue

import (
	"context"
	"log/slog"
	"sync"
)

// Logical queue names used by the router and webhook layer
const (
	QueueInboundMessages  = "inbound_messages"
	QueueOutboundMessages = "outbound_messages"
	QueueTicketCreation   = "ticket_creation"
	QueueLeadCreation     = "lead_creation"
)

// Counts holds the lifecycle counters for one queue. Failed accumulates
// until an operator reset; it is never cleared by the system itself.
type Counts struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
}

// Tracker records work item lifecycle transitions per logical queue.
// Counters are approximate under high concurrency but never negative.
type Tracker interface {
	// Enqueue records a new work item: pending++.
	Enqueue(ctx context.Context, queue string)

	// StartProcessing moves one unit pending -> processing.
	StartProcessing(ctx context.Context, queue string)

	// Complete records a finished work item: processing--.
	Complete(ctx context.Context, queue string)

	// Fail moves one unit processing -> failed.
	Fail(ctx context.Context, queue string)

	// Snapshot returns the current counters for every known queue.
	Snapshot(ctx context.Context) (map[string]Counts, error)

	// ResetFailed zeroes the failed counter for one queue (operator action).
	ResetFailed(ctx context.Context, queue string) error
}

// MemoryTracker implements Tracker with mutex-guarded in-process counters
type MemoryTracker struct {
	mu     sync.Mutex
	queues map[string]*Counts
	logger *slog.Logger
}

// NewMemoryTracker creates an empty in-memory tracker
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		queues: make(map[string]*Counts),
		logger: slog.Default().With("component", "queue"),
	}
}

func (t *MemoryTracker) counts(queue string) *Counts {
	c, ok := t.queues[queue]
	if !ok {
		c = &Counts{}
		t.queues[queue] = c
	}
	return c
}

// Enqueue increments the pending counter
func (t *MemoryTracker) Enqueue(ctx context.Context, queue string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts(queue).Pending++
}

// StartProcessing moves one unit from pending to processing
func (t *MemoryTracker) StartProcessing(ctx context.Context, queue string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.counts(queue)
	if c.Pending == 0 {
		t.logger.Warn("counter anomaly: start_processing with zero pending", "queue", queue)
	} else {
		c.Pending--
	}
	c.Processing++
}

// Complete decrements the processing counter
func (t *MemoryTracker) Complete(ctx context.Context, queue string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.counts(queue)
	if c.Processing == 0 {
		t.logger.Warn("counter anomaly: complete with zero processing", "queue", queue)
		return
	}
	c.Processing--
}

// Fail moves one unit from processing to failed
func (t *MemoryTracker) Fail(ctx context.Context, queue string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.counts(queue)
	if c.Processing == 0 {
		t.logger.Warn("counter anomaly: fail with zero processing", "queue", queue)
	} else {
		c.Processing--
	}
	c.Failed++
}

// Snapshot returns a copy of all counters
func (t *MemoryTracker) Snapshot(ctx context.Context) (map[string]Counts, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Counts, len(t.queues))
	for name, c := range t.queues {
		out[name] = *c
	}
	return out, nil
}

// ResetFailed zeroes the failed counter for one queue
func (t *MemoryTracker) ResetFailed(ctx context.Context, queue string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.counts(queue)
	if c.Failed > 0 {
		t.logger.Info("failed counter reset", "queue", queue, "was", c.Failed)
	}
	c.Failed = 0
	return nil
}

// Ensure MemoryTracker implements Tracker
var _ Tracker = (*MemoryTracker)(nil)
