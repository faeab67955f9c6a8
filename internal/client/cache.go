package client

import (
	"sync"

	"github.com/shiplink/fleet-coordination/internal/events"
)

type entry struct {
	value interface{}
	tags  map[events.Table]struct{}
}

// Cache is a read-through cache keyed by query, with entries tagged by the
// tables they were derived from. A change event for a table drops every
// entry carrying that tag; the next read refetches. Values are never patched
// in place by events, only replaced wholesale.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Get returns the cached value for a key.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores a value under a key, tagged with the tables it depends on.
func (c *Cache) Set(key string, value interface{}, tags ...events.Table) {
	tagSet := make(map[events.Table]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, tags: tagSet}
}

// Invalidate drops every entry tagged with any of the given tables.
func (c *Cache) Invalidate(tables ...events.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		for _, t := range tables {
			if _, ok := e.tags[t]; ok {
				delete(c.entries, key)
				break
			}
		}
	}
}

// Remove drops one entry.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops everything, e.g. on reconnect after missed events.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
