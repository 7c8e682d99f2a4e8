// Package cache provides the in-memory TTL cache backing the store facade.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Config holds the cache configuration.
type Config struct {
	DefaultTTL      time.Duration // TTL applied by Set (default: 10 minutes)
	CleanupInterval time.Duration // Interval for expired entry cleanup (default: 5 minutes)
	MaxItems        int           // Maximum number of entries (default: 1000)
	OnEviction      func(key string, value any)
}

// Cache is a goroutine-safe in-memory cache with TTL and LRU eviction.
type Cache struct {
	config Config
	mu     sync.Mutex

	entries map[string]*entry
	order   *list.List // Doubly linked list for LRU ordering

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
	element   *list.Element
}

// New creates a new cache and starts its background cleanup loop.
func New(config Config) *Cache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 10 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		config:  config,
		entries: make(map[string]*entry),
		order:   list.New(),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if time.Now().After(e.expiresAt) {
		c.removeEntry(e, false)
		return nil, false
	}

	c.order.MoveToFront(e.element)
	return e.value, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores a value in the cache with an explicit TTL.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(e.element)
		return
	}

	for len(c.entries) >= c.config.MaxItems {
		c.evictOldest()
	}

	e := &entry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	e.element = c.order.PushFront(e)
	c.entries[key] = e
}

// Delete removes a key from the cache.
func (c *Cache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeEntry(e, true)
	}
}

// Size returns the number of entries in the cache.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background cleanup goroutine.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *Cache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeEntry(oldest.Value.(*entry), true)
}

// removeEntry removes an entry from the cache.
// Must be called with lock held.
func (c *Cache) removeEntry(e *entry, notify bool) {
	c.order.Remove(e.element)
	delete(c.entries, e.key)
	if notify && c.config.OnEviction != nil {
		c.config.OnEviction(e.key, e.value)
	}
}

// cleanupLoop periodically removes expired entries.
func (c *Cache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.cleanupExpired()
		}
	}
}

func (c *Cache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toDelete []*entry
	now := time.Now()
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			toDelete = append(toDelete, e)
		}
	}
	for _, e := range toDelete {
		c.removeEntry(e, false)
	}
}
