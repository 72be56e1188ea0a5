// ABOUTME: TTL seen-key cache guarding against redelivered push events.
// ABOUTME: Bounded in size; expired entries are pruned opportunistically on writes.

package dedupe

import (
	"container/list"
	"sync"
	"time"

	"github.com/2389/coven-console/internal/clock"
)

// Cache remembers recently seen keys so a redelivered event can be
// recognized and skipped. Keys expire after the TTL; when the cache is
// full the oldest key is evicted. No background goroutine: expired
// entries are pruned on each write.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	clock   clock.Clock
}

type entry struct {
	key  string
	seen time.Time
}

// New creates a cache with the given TTL and maximum size.
func New(ttl time.Duration, maxSize int, clk clock.Clock) *Cache {
	return &Cache{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clk,
	}
}

// CheckAndMark reports whether key was already seen within the TTL, and
// marks it as seen if not. The check and mark are one atomic step.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.pruneLocked(now)

	if el, ok := c.seen[key]; ok {
		if now.Sub(el.Value.(*entry).seen) < c.ttl {
			return true
		}
		// Expired but not yet pruned: refresh it.
		el.Value.(*entry).seen = now
		c.order.MoveToBack(el)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.seen[key] = c.order.PushBack(&entry{key: key, seen: now})
	return false
}

// Len returns the number of tracked keys, counting entries that have
// expired but not yet been pruned.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// pruneLocked drops expired entries from the front of the order list.
// Must be called with mu held.
func (c *Cache) pruneLocked(now time.Time) {
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		e := front.Value.(*entry)
		if now.Sub(e.seen) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, e.key)
	}
}

// evictOldestLocked removes the single oldest entry. Must be called with
// mu held.
func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	e := front.Value.(*entry)
	c.order.Remove(front)
	delete(c.seen, e.key)
}
