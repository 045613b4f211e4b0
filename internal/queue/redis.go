// ABOUTME: Redis-backed Tracker implementation sharing counters across processes
// ABOUTME: Uses hash fields per queue and a registry set for snapshot enumeration

package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "ticketbot:queue:"
	registryKey = "ticketbot:queues"
)

// RedisTracker implements Tracker on a Redis hash per queue, so counters
// survive restarts and can be shared between replicas. Transition errors
// are logged, never propagated: observability must not break routing.
type RedisTracker struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisTracker creates a tracker on the given client. The client is
// pinged so a misconfigured address fails at startup, not mid-route.
func NewRedisTracker(ctx context.Context, client *redis.Client) (*RedisTracker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisTracker{
		client: client,
		logger: slog.Default().With("component", "queue"),
	}, nil
}

func (t *RedisTracker) key(queue string) string {
	return keyPrefix + queue
}

// register remembers the queue name so Snapshot can enumerate it
func (t *RedisTracker) register(ctx context.Context, queue string) {
	if err := t.client.SAdd(ctx, registryKey, queue).Err(); err != nil {
		t.logger.Warn("registering queue failed", "queue", queue, "error", err)
	}
}

// incr adjusts one counter field, clamping at zero. A decrement that would
// go negative is undone and logged as an anomaly.
func (t *RedisTracker) incr(ctx context.Context, queue, field string, delta int64) {
	val, err := t.client.HIncrBy(ctx, t.key(queue), field, delta).Result()
	if err != nil {
		t.logger.Warn("counter update failed", "queue", queue, "field", field, "error", err)
		return
	}
	if val < 0 {
		t.logger.Warn("counter anomaly: negative value clamped", "queue", queue, "field", field)
		if err := t.client.HIncrBy(ctx, t.key(queue), field, -val).Err(); err != nil {
			t.logger.Warn("counter clamp failed", "queue", queue, "field", field, "error", err)
		}
	}
}

// Enqueue increments the pending counter
func (t *RedisTracker) Enqueue(ctx context.Context, queue string) {
	t.register(ctx, queue)
	t.incr(ctx, queue, "pending", 1)
}

// StartProcessing moves one unit from pending to processing
func (t *RedisTracker) StartProcessing(ctx context.Context, queue string) {
	t.incr(ctx, queue, "pending", -1)
	t.incr(ctx, queue, "processing", 1)
}

// Complete decrements the processing counter
func (t *RedisTracker) Complete(ctx context.Context, queue string) {
	t.incr(ctx, queue, "processing", -1)
}

// Fail moves one unit from processing to failed
func (t *RedisTracker) Fail(ctx context.Context, queue string) {
	t.incr(ctx, queue, "processing", -1)
	t.incr(ctx, queue, "failed", 1)
}

// Snapshot reads the counters for every registered queue
func (t *RedisTracker) Snapshot(ctx context.Context) (map[string]Counts, error) {
	names, err := t.client.SMembers(ctx, registryKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing queues: %w", err)
	}

	out := make(map[string]Counts, len(names))
	for _, name := range names {
		fields, err := t.client.HGetAll(ctx, t.key(name)).Result()
		if err != nil {
			return nil, fmt.Errorf("reading queue %s: %w", name, err)
		}

		var c Counts
		fmt.Sscanf(fields["pending"], "%d", &c.Pending)
		fmt.Sscanf(fields["processing"], "%d", &c.Processing)
		fmt.Sscanf(fields["failed"], "%d", &c.Failed)
		out[name] = c
	}
	return out, nil
}

// ResetFailed zeroes the failed counter for one queue
func (t *RedisTracker) ResetFailed(ctx context.Context, queue string) error {
	if err := t.client.HSet(ctx, t.key(queue), "failed", 0).Err(); err != nil {
		return fmt.Errorf("resetting failed counter: %w", err)
	}
	t.logger.Info("failed counter reset", "queue", queue)
	return nil
}

// Ensure RedisTracker implements Tracker
var _ Tracker = (*RedisTracker)(nil)
