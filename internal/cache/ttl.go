// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// entry is a cached value with its expiration.
type entry struct {
	value     interface{}
	expiresAt time.Time
}

// TTL is a thread-safe in-memory cache with per-entry expiration and a
// background cleanup loop. Expired entries are also removed lazily on
// read, so a stale value is never served.
type TTL struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	stop chan struct{}
	once sync.Once
}

const cleanupInterval = 5 * time.Minute

// NewTTL creates a TTL cache. A background goroutine sweeps expired
// entries every few minutes; call Close to stop it.
func NewTTL(ttl time.Duration) *TTL {
	c := &TTL{
		entries: make(map[string]entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get retrieves a value, removing it when expired.
func (c *TTL) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		c.misses.Add(1)
		c.evictions.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Set stores a value with the default TTL.
func (c *TTL) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *TTL) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes a value. Safe to call for absent keys.
func (c *TTL) Delete(key string) {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	if ok {
		c.evictions.Add(1)
	}
}

// Clear removes all entries.
func (c *TTL) Clear() {
	c.mu.Lock()
	n := int64(len(c.entries))
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	c.evictions.Add(n)
}

// Stats returns a counter snapshot.
func (c *TTL) Stats() Stats {
	c.mu.RLock()
	keys := int64(len(c.entries))
	c.mu.RUnlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Keys:      keys,
	}
}

// Close stops the background cleanup goroutine.
func (c *TTL) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *TTL) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *TTL) sweep() {
	now := time.Now()
	c.mu.Lock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			c.evictions.Add(1)
		}
	}
	c.mu.Unlock()
}

// GenerateKey produces a stable cache key from a prefix and any
// JSON-serializable parts. The parts are hashed so arbitrarily large
// candidate lists still yield short keys.
func GenerateKey(prefix string, parts ...interface{}) string {
	h := sha256.New()
	for _, p := range parts {
		data, err := json.Marshal(p)
		if err != nil {
			// Fall back to the fmt representation; key stability
			// matters more than perfect fidelity here.
			data = []byte(fmt.Sprintf("%v", p))
		}
		h.Write(data)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:%x", prefix, h.Sum(nil)[:16])
}
