// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/scheduler"
)

// JobRunner lists and triggers the maintenance jobs.
type JobRunner interface {
	List() []scheduler.JobInfo
	Trigger(ctx context.Context, name string) error
}

// ListJobs handles GET /api/admin/jobs
// Requires admin.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		WriteSuccess(w, []scheduler.JobInfo{}, nil)
		return
	}
	WriteSuccess(w, h.jobs.List(), nil)
}

// RunJob handles POST /api/admin/jobs/{name}/run
// Requires super admin. Runs the job synchronously and reports its error.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		WriteNotFound(w, "Job not found")
		return
	}

	err := h.jobs.Trigger(r.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		WriteNotFound(w, "Job not found")
		return
	case err != nil:
		h.writeInternal(w, r, err, "Job failed")
		return
	}

	slog.Info("job run from API", append([]any{"job", name, "category", model.EventCategorySystem}, adminAttrs(r)...)...)
	WriteMessage(w, "Job completed successfully", map[string]string{"name": name})
}
