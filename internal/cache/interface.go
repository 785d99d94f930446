// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

// Package cache provides injectable in-memory caches with TTL semantics.
// Personalization contexts and reranked results are cached through the
// Cacher interface so components never depend on a process-wide
// singleton and tests can swap in their own implementation.
package cache

import "time"

// Cacher is the cache abstraction used across the engine. Both the TTL
// cache and the LRU cache implement it.
//
// Usage:
//
//	var c Cacher = NewTTL(5 * time.Minute)
//	c.Set("ctx:u1:s1", pctx)
//	if v, ok := c.Get("ctx:u1:s1"); ok {
//	    // serve cached value
//	}
type Cacher interface {
	// Get retrieves a value. Returns the value and true when present
	// and not expired.
	Get(key string) (interface{}, bool)

	// Set stores a value with the default TTL.
	Set(key string, value interface{})

	// SetWithTTL stores a value with a custom TTL.
	SetWithTTL(key string, value interface{}, ttl time.Duration)

	// Delete removes a value.
	Delete(key string)

	// Clear removes all entries.
	Clear()

	// Stats returns a snapshot of hit/miss counters.
	Stats() Stats
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Keys      int64
}

// HitRate returns the hit percentage, 0 when the cache is untouched.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Config selects and sizes a cache implementation.
type Config struct {
	// Kind is "ttl" (default) or "lru".
	Kind string `koanf:"kind"`

	// TTL is the default time-to-live for entries.
	TTL time.Duration `koanf:"ttl"`

	// Capacity bounds the entry count (LRU only).
	Capacity int `koanf:"capacity"`
}

// New creates a cache from the configuration.
func New(cfg Config) Cacher {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Kind == "lru" {
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = 10000
		}
		return NewLRU(capacity, cfg.TTL)
	}
	return NewTTL(cfg.TTL)
}
