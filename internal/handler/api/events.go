// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
)

var eventLevels = map[string]bool{
	model.EventLevelInfo:    true,
	model.EventLevelWarning: true,
	model.EventLevelError:   true,
}

// ListEvents handles GET /api/admin/events
// Requires admin. Filters: ?level=, ?category=, ?adminId=, ?since=, ?until=
// (RFC 3339) and ?search=. Always paginated, newest first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{Search: q.Get("search"), Filters: map[string]any{}}

	if level := q.Get("level"); level != "" {
		if !eventLevels[level] {
			WriteBadRequest(w, "level must be one of: info, warning, error")
			return
		}
		opts.Filters["level"] = level
	}
	if category := q.Get("category"); category != "" {
		opts.Filters["category"] = category
	}
	if raw := q.Get("adminId"); raw != "" {
		id, err := parsePositiveInt(raw)
		if err != nil {
			WriteBadRequest(w, "Invalid adminId")
			return
		}
		opts.Filters["admin_id"] = id
	}

	bounds := []struct {
		param, cond string
	}{
		{"since", "created_at >= ?"},
		{"until", "created_at <= ?"},
	}
	for _, b := range bounds {
		raw := q.Get(b.param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteBadRequest(w, "Invalid "+b.param+", use RFC 3339")
			return
		}
		cond := b.cond
		opts.Scopes = append(opts.Scopes, func(db *gorm.DB) *gorm.DB { return db.Where(cond, t) })
	}

	page, paged := parsePagination(r)
	if !paged {
		page.Limit = 50
	}
	opts.Page, opts.PerPage = page.Page, page.Limit

	events, total, err := h.events.List(r.Context(), opts)
	if err != nil {
		h.WriteStoreError(w, r, err, "event")
		return
	}
	WriteSuccess(w, events, buildPaginationResponse(total, page))
}
