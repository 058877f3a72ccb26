// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the response cache behind the public read
// endpoints, backed by memory or Redis.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned by Get for missing or expired keys.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheClosed is returned by every operation after Close.
	ErrCacheClosed = errors.New("cache closed")
)

// Cacher stores opaque values by key. Implementations are safe for
// concurrent use.
type Cacher interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl, or for the default TTL when ttl is zero.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) (bool, error)
	Close() error
}

// StatsProvider is implemented by caches that count their traffic.
type StatsProvider interface {
	Stats() Stats
	ResetStats()
}

// Pinger is implemented by caches backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stats is a snapshot of cache counters. HitRate is a percentage.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Items   int     `json:"items"`
	HitRate float64 `json:"hitRate"`
	Size    int64   `json:"sizeBytes,omitempty"`
}

func hitRate(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return 100 * float64(hits) / float64(hits+misses)
}
