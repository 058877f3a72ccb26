// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gemcraft/gemcms/internal/cache"
	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/version"
)

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Status    string       `json:"status"`
	Version   version.Info `json:"version"`
	Timestamp time.Time    `json:"timestamp"`

	// Admin only
	SchemaVersion *int64              `json:"schemaVersion,omitempty"`
	Cache         *cache.ManagerStats `json:"cache,omitempty"`
	Counts        map[string]int64    `json:"counts,omitempty"`
}

// Status handles GET /api/status
// Public callers get the version; admins also see the schema version,
// cache statistics and row counts.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Status:    "ok",
		Version:   h.version,
		Timestamp: h.now().UTC(),
	}

	if middleware.GetAdmin(r) == nil {
		WriteSuccess(w, resp, nil)
		return
	}

	if v, err := store.MigrationStatus(ctx, h.db); err != nil {
		slog.Warn("reading schema version failed", "error", err)
	} else {
		resp.SchemaVersion = &v
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		resp.Cache = &stats
	}

	counts := map[string]int64{}
	count := func(name string, fn func() (int64, error)) {
		n, err := fn()
		if err != nil {
			slog.Warn("counting rows failed", "table", name, "error", err)
			return
		}
		counts[name] = n
	}
	count("products", func() (int64, error) { return h.products.Count(ctx, store.ListOptions{}) })
	count("categories", func() (int64, error) { return h.categories.Count(ctx, store.ListOptions{}) })
	count("pendingReviews", func() (int64, error) {
		return h.reviews.Count(ctx, store.ListOptions{Filters: map[string]any{"is_active": false}})
	})
	count("newLeads", func() (int64, error) {
		return h.leads.Count(ctx, store.ListOptions{Filters: map[string]any{"status": model.LeadStatusNew}})
	})
	count("admins", func() (int64, error) { return h.admins.Count(ctx) })
	resp.Counts = counts

	WriteSuccess(w, resp, nil)
}

// ClearCache handles POST /api/admin/cache/clear
// Requires admin.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		WriteMessage(w, "Caching is disabled", nil)
		return
	}
	if err := h.cache.Clear(r.Context()); err != nil {
		h.writeInternal(w, r, err, "Failed to clear cache")
		return
	}
	slog.Info("cache cleared", append([]any{"category", model.EventCategoryCache}, adminAttrs(r)...)...)
	WriteMessage(w, "Cache cleared successfully", nil)
}
