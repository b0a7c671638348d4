// Package progress is the low latency store polled for scan snapshots.
// Writes are fire-and-forget; entries expire after a TTL.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/okian/painpoint/internal/domain/model"
)

const defaultTTL = 24 * time.Hour

type entry struct {
	snap    model.Snapshot
	expires time.Time
}

// Cache is an in-memory snapshot store keyed by scan id.
type Cache struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// Option configures Cache.
type Option func(*Cache)

// WithTTL sets how long a snapshot survives its last write.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		items: make(map[string]entry),
		ttl:   defaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores s under s.ID. A snapshot never moves progress backwards unless
// it carries a terminal status.
func (c *Cache) Put(_ context.Context, s model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.items[s.ID]; ok && !s.Status.Terminal() && s.Progress < prev.snap.Progress {
		s.Progress = prev.snap.Progress
	}
	c.items[s.ID] = entry{snap: s, expires: c.now().Add(c.ttl)}
}

// Get returns the snapshot for id if present and not expired.
func (c *Cache) Get(_ context.Context, id string) (model.Snapshot, bool) {
	c.mu.RLock()
	e, ok := c.items[id]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expires) {
		return model.Snapshot{}, false
	}
	return e.snap, true
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
