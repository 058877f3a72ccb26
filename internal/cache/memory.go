// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache keeps cached responses in process memory. It is the default
// backend and the fallback when Redis is unreachable.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	bytes      int64
	defaultTTL time.Duration
	maxItems   int // 0 = unlimited
	closed     bool
	stop       chan struct{}

	hits, misses, sets int64
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	DefaultTTL      time.Duration
	MaxSize         int           // Maximum number of entries (0 = unlimited)
	CleanupInterval time.Duration // Interval for expired entry cleanup (0 = no cleanup)
}

// NewMemoryCache creates a memory cache and starts its janitor when
// opts.CleanupInterval is set.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	c := &MemoryCache{
		entries:    make(map[string]memoryEntry),
		defaultTTL: opts.DefaultTTL,
		maxItems:   opts.MaxSize,
		stop:       make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go c.janitor(opts.CleanupInterval)
	}
	return c
}

// Get returns a copy of the value under key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCacheClosed
	}
	e, ok := c.entries[key]
	if ok && e.expired(time.Now()) {
		c.remove(key)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, ErrCacheMiss
	}
	c.hits++
	return clone(e.value), nil
}

// Set stores a copy of value. A zero ttl uses the default TTL. When the
// cache is full, expired entries go first, then those closest to expiry.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	if _, exists := c.entries[key]; !exists && c.maxItems > 0 && len(c.entries) >= c.maxItems {
		c.purgeExpired(now)
		for len(c.entries) >= c.maxItems {
			c.evictSoonest()
		}
	}

	c.remove(key)
	c.entries[key] = memoryEntry{value: clone(value), expiresAt: now.Add(ttl)}
	c.bytes += int64(len(value))
	c.sets++
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	c.remove(key)
	return nil
}

// DeleteByPrefix removes every key starting with prefix.
func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.remove(key)
		}
	}
	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	clear(c.entries)
	c.bytes = 0
	return nil
}

// Has reports whether key holds a live entry.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false, ErrCacheClosed
	}
	e, ok := c.entries[key]
	return ok && !e.expired(time.Now()), nil
}

// Close stops the janitor. Later calls fail with ErrCacheClosed.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.stop)
	}
	return nil
}

// Stats returns counters and the current number of entries.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Sets:    c.sets,
		Items:   len(c.entries),
		HitRate: hitRate(c.hits, c.misses),
		Size:    c.bytes,
	}
}

// ResetStats zeroes the hit, miss and set counters.
func (c *MemoryCache) ResetStats() {
	c.mu.Lock()
	c.hits, c.misses, c.sets = 0, 0, 0
	c.mu.Unlock()
}

// remove deletes key; c.mu must be held.
func (c *MemoryCache) remove(key string) {
	if e, ok := c.entries[key]; ok {
		c.bytes -= int64(len(e.value))
		delete(c.entries, key)
	}
}

func (c *MemoryCache) purgeExpired(now time.Time) {
	for key, e := range c.entries {
		if e.expired(now) {
			c.remove(key)
		}
	}
}

func (c *MemoryCache) evictSoonest() {
	var victim string
	var soonest time.Time
	for key, e := range c.entries {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim, soonest = key, e.expiresAt
		}
	}
	c.remove(victim)
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.purgeExpired(time.Now())
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

var (
	_ Cacher        = (*MemoryCache)(nil)
	_ StatsProvider = (*MemoryCache)(nil)
)
