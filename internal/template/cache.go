package template

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/munchmtxi/notification-engine/internal/domain"
)

const defaultCacheTTL = 5 * time.Minute

// Store is the read-only template lookup port.
type Store interface {
	FindActiveByName(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error)
}

type cacheEntry struct {
	template  *domain.Template
	expiresAt time.Time
}

// Cache is a read-mostly TTL cache over the template store. Stale reads are
// acceptable: retries reuse the content rendered at dispatch time, so a
// template change never alters an in-flight delivery.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCache(store Store, ttl time.Duration) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("template store is required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &Cache{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}, nil
}

// Resolve returns the active template for name and channel, cache-first with
// store fallback on miss or expiry.
func (c *Cache) Resolve(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error) {
	key := cacheKey(name, channel)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expiresAt) {
		return entry.template, nil
	}

	tmpl, err := c.store.FindActiveByName(ctx, name, channel)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{template: tmpl, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return tmpl, nil
}

// Invalidate drops a cached template so the next resolve hits the store.
func (c *Cache) Invalidate(name string, channel domain.Channel) {
	c.mu.Lock()
	delete(c.entries, cacheKey(name, channel))
	c.mu.Unlock()
}

func cacheKey(name string, channel domain.Channel) string {
	return name + "|" + channel.String()
}
