// ABOUTME: TTL cache for deduplicating inbound webhook events.
// ABOUTME: Upstream transports redeliver; Seen rejects event IDs already processed.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the timestamp and list element for a cached event ID.
type entry struct {
	at   time.Time
	elem *list.Element
}

// Cache tracks recently seen webhook event IDs so redelivered events are
// processed at most once. It is TTL-based and size-limited, with insertion
// order kept in a linked list for O(1) eviction.
type Cache struct {
	mu     sync.Mutex
	seen   map[string]*entry
	order  *list.List // oldest at front
	ttl    time.Duration
	max    int
	done   chan struct{}
	closed bool
}

// New creates a cache with the given TTL and maximum size.
// A background goroutine periodically drops expired entries.
func New(ttl time.Duration, max int) *Cache {
	c := &Cache{
		seen:  make(map[string]*entry),
		order: list.New(),
		ttl:   ttl,
		max:   max,
		done:  make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Seen atomically checks whether id was already recorded and records it if
// not. Returns true for a duplicate, false for a new event now marked.
func (c *Cache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, ok := c.seen[id]; ok && now.Sub(e.at) < c.ttl {
		return true
	}

	if e, ok := c.seen[id]; ok {
		// Expired entry for the same ID: refresh in place
		e.at = now
		c.order.MoveToBack(e.elem)
		return false
	}

	if len(c.seen) >= c.max {
		c.evictOldest()
	}

	elem := c.order.PushBack(id)
	c.seen[id] = &entry{at: now, elem: elem}
	return false
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, id)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes all expired entries
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, e := range c.seen {
		if now.Sub(e.at) > c.ttl {
			c.order.Remove(e.elem)
			delete(c.seen, id)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
