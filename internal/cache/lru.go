// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// lruEntry is the payload stored in the recency list.
type lruEntry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// LRU is a bounded thread-safe cache. When full, the least recently
// used entry is evicted. Entries also carry a TTL so stale values age
// out even without capacity pressure.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // front = most recently used

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewLRU creates an LRU cache holding at most capacity entries.
// A capacity below one falls back to a small default.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity < 1 {
		capacity = 128
	}
	return &LRU{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	ent := elem.Value.(*lruEntry)
	if time.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.misses.Add(1)
		c.evictions.Add(1)
		return nil, false
	}
	c.order.MoveToFront(elem)
	c.hits.Add(1)
	return ent.value, true
}

// Set stores a value with the default TTL.
func (c *LRU) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL, evicting the least
// recently used entry when the cache is full.
func (c *LRU) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*lruEntry)
		ent.value = value
		ent.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
			c.evictions.Add(1)
		}
	}
	elem := c.order.PushFront(&lruEntry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem
}

// Delete removes a value. Safe to call for absent keys.
func (c *LRU) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		c.evictions.Add(1)
	}
}

// Clear removes all entries.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictions.Add(int64(len(c.items)))
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns a counter snapshot.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	keys := int64(len(c.items))
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Keys:      keys,
	}
}

// removeElement must be called with the lock held.
func (c *LRU) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	ent := elem.Value.(*lruEntry)
	delete(c.items, ent.key)
}
