// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"gorm.io/datatypes"

	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
)

// LeadRequest is the body of a storefront lead.
type LeadRequest struct {
	Name    string           `json:"name" validate:"required,max=150"`
	Email   string           `json:"email" validate:"required_without=Phone,omitempty,email,max=255"`
	Phone   string           `json:"phone" validate:"required_without=Email,max=50"`
	Message string           `json:"message" validate:"max=5000"`
	Items   []model.LeadItem `json:"items" validate:"max=100,dive"`
	Source  string           `json:"source" validate:"max=100"`
}

// LeadStatusRequest is the body of PATCH /api/leads/{id}/status.
type LeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted closed"`
}

// SubmitLead handles POST /api/leads
// Public and rate limited per IP. Stores the contact details and the items
// the visitor was interested in.
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := middleware.ClientIP(r)

	if !h.submitLimiter.Allow(ip) {
		w.Header().Set("Retry-After", "1")
		middleware.WriteAPIError(w, http.StatusTooManyRequests, middleware.CodeRateLimited, "Too many submissions, please try again later.")
		return
	}

	p, _, err := h.readPayload(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	var req LeadRequest
	if err := decodeInto(p, &req); err != nil {
		WriteValidationError(w, decodeErrors(err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)

	for i := range req.Items {
		if req.Items[i].Quantity == 0 {
			req.Items[i].Quantity = 1
		}
	}
	if fields := h.validateStruct(req); fields != nil {
		WriteValidationError(w, fields)
		return
	}

	if req.Items == nil {
		req.Items = []model.LeadItem{}
	}
	items, err := json.Marshal(req.Items)
	if err != nil {
		h.writeInternal(w, r, err, "Failed to save lead")
		return
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "cart"
	}
	lead := &model.Lead{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: strings.TrimSpace(req.Message),
		Items:   datatypes.JSON(items),
		Status:  model.LeadStatusNew,
		Source:  source,
		IP:      ip,
	}
	if err := h.leads.Create(ctx, lead); err != nil {
		h.WriteStoreError(w, r, err, "lead")
		return
	}

	slog.Info("lead received", "id", lead.ID, "items", len(req.Items), "source", lead.Source, "category", model.EventCategoryLead)
	WriteCreated(w, map[string]any{"id": lead.ID}, "Thank you! We will contact you shortly.")
}

// ListLeads handles GET /api/leads
// Requires admin. Filters: ?status=, ?search=; always paginated.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{Search: q.Get("search")}
	if status := q.Get("status"); status != "" {
		if !model.ValidLeadStatus(status) {
			WriteBadRequest(w, "Invalid status filter")
			return
		}
		opts.Filters = map[string]any{"status": status}
	}

	page, paged := parsePagination(r)
	if !paged {
		page.Limit = DefaultPerPage
	}
	opts.Page, opts.PerPage = page.Page, page.Limit

	leads, total, err := h.leads.List(r.Context(), opts)
	if err != nil {
		h.WriteStoreError(w, r, err, "lead")
		return
	}
	WriteSuccess(w, leads, buildPaginationResponse(total, page))
}

// GetLead handles GET /api/leads/{id}
// Requires admin.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, ok := requireEntityByID(h, w, r, "lead", func(id int64) (*model.Lead, error) {
		return h.leads.Get(r.Context(), id, false)
	})
	if !ok {
		return
	}
	WriteSuccess(w, lead, nil)
}

// UpdateLeadStatus handles PATCH /api/leads/{id}/status
// Requires admin.
func (h *Handler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid lead ID")
		return
	}

	p, _, err := h.readPayload(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	var req LeadStatusRequest
	if err := decodeInto(p, &req); err != nil {
		WriteValidationError(w, decodeErrors(err))
		return
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if fields := h.validateStruct(req); fields != nil {
		WriteValidationError(w, fields)
		return
	}

	lead, err := h.leads.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.WriteStoreError(w, r, err, "lead")
		return
	}

	slog.Info("lead status changed", append([]any{"id", id, "status", req.Status, "category", model.EventCategoryLead}, adminAttrs(r)...)...)
	WriteMessage(w, "Lead status updated successfully", lead)
}

// DeleteLead handles DELETE /api/leads/{id}
// Requires admin.
func (h *Handler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid lead ID")
		return
	}
	if _, err := h.leads.Delete(r.Context(), id); err != nil {
		h.WriteStoreError(w, r, err, "lead")
		return
	}

	slog.Info("lead deleted", append([]any{"id", id, "category", model.EventCategoryLead}, adminAttrs(r)...)...)
	WriteMessage(w, "Lead deleted successfully", map[string]int64{"id": id})
}
