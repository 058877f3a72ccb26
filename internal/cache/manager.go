// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"log/slog"
	"time"
)

// Manager caches public read responses per resource. Keys have the form
// "<resource>:<variant>", so one resource can be dropped by prefix after
// any write to it.
type Manager struct {
	cache   Cacher
	backend string
	ttl     time.Duration
}

// NewManager creates a Manager over c. backend is reported in stats.
func NewManager(c Cacher, backend string, ttl time.Duration) *Manager {
	return &Manager{cache: c, backend: backend, ttl: ttl}
}

// Key builds the cache key of one variant (usually the raw query string)
// of a resource.
func Key(resource, variant string) string {
	return resource + ":" + variant
}

// Remember returns the cached value of key, computing and storing it on a
// miss. Cache failures degrade to calling fn.
func Remember[T any](ctx context.Context, m *Manager, resource, variant string, fn func() (*T, error)) (*T, error) {
	if m == nil {
		return fn()
	}
	return NewTypedCache[T](m.cache, m.ttl).GetOrSet(ctx, Key(resource, variant), fn)
}

// InvalidateResource drops every cached response of resource.
func (m *Manager) InvalidateResource(ctx context.Context, resource string) {
	if m == nil {
		return
	}
	if err := m.cache.DeleteByPrefix(ctx, resource+":"); err != nil {
		slog.Warn("cache invalidation failed", "resource", resource, "error", err, "category", "cache")
	}
}

// Clear drops every cached response.
func (m *Manager) Clear(ctx context.Context) error {
	if sp, ok := m.cache.(StatsProvider); ok {
		sp.ResetStats()
	}
	return m.cache.Clear(ctx)
}

// ManagerStats describes the cache for the admin status endpoint.
type ManagerStats struct {
	Backend string        `json:"backend"`
	TTL     time.Duration `json:"ttl"`
	Stats   *Stats        `json:"stats,omitempty"`
}

// Stats returns backend statistics when available.
func (m *Manager) Stats() ManagerStats {
	out := ManagerStats{Backend: m.backend, TTL: m.ttl}
	if sp, ok := m.cache.(StatsProvider); ok {
		s := sp.Stats()
		out.Stats = &s
	}
	return out
}

// Ping checks a remote backend. It is a no-op for the memory cache.
func (m *Manager) Ping(ctx context.Context) error {
	if p, ok := m.cache.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Backend names the active backend.
func (m *Manager) Backend() string {
	return m.backend
}

// Close releases the underlying cache.
func (m *Manager) Close() error {
	return m.cache.Close()
}
