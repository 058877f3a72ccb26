// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// TypedCache stores JSON-encoded values of one type in a Cacher.
type TypedCache[T any] struct {
	cache Cacher
	ttl   time.Duration
}

// NewTypedCache wraps c. Entries expire after ttl; zero uses the backend default.
func NewTypedCache[T any](c Cacher, ttl time.Duration) *TypedCache[T] {
	return &TypedCache[T]{cache: c, ttl: ttl}
}

// Get returns the value under key. Entries that no longer decode into T
// are evicted and reported as misses.
func (c *TypedCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			slog.Debug("cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}
	return &v, true
}

// Set stores v under key.
func (c *TypedCache[T]) Set(ctx context.Context, key string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return c.cache.Set(ctx, key, data, c.ttl)
}

// GetOrSet returns the cached value of key, or loads and stores it. A load
// error is returned and nothing is cached; a failed store only logs.
func (c *TypedCache[T]) GetOrSet(ctx context.Context, key string, load func() (*T, error)) (*T, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err, "category", "cache")
	}
	return v, nil
}
