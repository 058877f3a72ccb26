// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"

	"github.com/gemcraft/gemcms/internal/store"
)

// Pagination defaults.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Meta contains pagination metadata.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// Page is a parsed page request. A zero Limit means every row.
type Page struct {
	Page  int
	Limit int
}

// parsePagination reads page and limit (or per_page) from the query.
// ok is false when neither was given. page is capped at store.MaxPage.
func parsePagination(r *http.Request) (p Page, ok bool) {
	q := r.URL.Query()
	rawPage := q.Get("page")
	rawLimit := q.Get("limit")
	if rawLimit == "" {
		rawLimit = q.Get("per_page")
	}
	if rawPage == "" && rawLimit == "" {
		return Page{Page: 1}, false
	}

	p = Page{Page: 1, Limit: DefaultPerPage}
	if n, err := strconv.Atoi(rawPage); err == nil && n > 0 {
		p.Page = min(n, store.MaxPage)
	}
	if n, err := strconv.Atoi(rawLimit); err == nil && n > 0 {
		p.Limit = min(n, MaxPerPage)
	}
	return p, true
}

// buildPaginationResponse computes the meta block for a page of total rows.
func buildPaginationResponse(total int64, p Page) *Meta {
	limit := p.Limit
	page := max(p.Page, 1)

	totalPages := 1
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	} else {
		limit = int(total)
		page = 1
	}
	if total == 0 {
		totalPages = 0
	}

	return &Meta{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
