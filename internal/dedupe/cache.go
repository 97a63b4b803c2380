// ABOUTME: Thread-safe TTL cache of reminder keys the sweep already handled
// ABOUTME: Saves a store round trip when sweeps re-run inside one process

package dedupe

import (
	"sync"
	"time"
)

// purgeInterval is how often expired entries are reclaimed in the background.
const purgeInterval = time.Minute

// Cache remembers recently seen keys for a bounded time and size. The
// reminder sweep consults it before hitting the sent-message table; the
// durable dedupe record remains the source of truth, this only short-circuits
// repeat lookups within the TTL.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	order   []string // insertion order, oldest first
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and maximum entry count. A
// background goroutine reclaims expired entries until Close is called.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.purgeLoop()
	return c
}

// Check reports whether the key was marked and has not expired.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.seen[key]
	return ok && time.Since(at) < c.ttl
}

// Mark records the key, evicting the oldest entry when the cache is full.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mark(key)
}

// CheckAndMark atomically checks the key and marks it if unseen. Returns true
// when the key was already present and fresh.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if at, ok := c.seen[key]; ok && time.Since(at) < c.ttl {
		return true
	}
	c.mark(key)
	return false
}

// mark assumes c.mu is held.
func (c *Cache) mark(key string) {
	if _, exists := c.seen[key]; !exists {
		for len(c.seen) >= c.maxSize && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.seen, oldest)
		}
		c.order = append(c.order, key)
	}
	c.seen[key] = time.Now()
}

// Len returns the number of entries currently held, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) purgeLoop() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.purgeExpired()
		}
	}
}

func (c *Cache) purgeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.order[:0]
	for _, key := range c.order {
		at, ok := c.seen[key]
		if !ok {
			continue
		}
		if time.Since(at) >= c.ttl {
			delete(c.seen, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}

// Close stops the background purge goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
