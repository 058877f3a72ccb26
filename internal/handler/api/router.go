// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/model"
)

// Routes returns the router mounted at /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	authenticate := middleware.JWTAuth(h.tokens, h.admins)
	requireAdmin := func(next http.Handler) http.Handler {
		return authenticate(h.adminLimit(next))
	}
	optionalAdmin := middleware.OptionalJWTAuth(h.tokens, h.admins)
	superAdmin := middleware.RequireRole(model.RoleSuperAdmin)

	r.With(optionalAdmin).Get("/status", h.Status)

	r.Route("/auth", func(r chi.Router) {
		r.With(h.login.Middleware()).Post("/login", h.Login)
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin, middleware.NoStore)
			r.Get("/me", h.Me)
			r.Put("/password", h.ChangePassword)
			r.With(superAdmin).Post("/register", h.Register)
		})
	})

	r.Route("/admins", func(r chi.Router) {
		r.Use(requireAdmin, superAdmin, middleware.NoStore)
		r.Get("/", h.ListAdmins)
		r.Delete("/{id}", h.DeleteAdmin)
	})

	r.Route("/leads", func(r chi.Router) {
		r.Post("/", h.SubmitLead)
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin, middleware.NoStore)
			r.Get("/", h.ListLeads)
			r.Get("/{id}", h.GetLead)
			r.Patch("/{id}/status", h.UpdateLeadStatus)
			r.Delete("/{id}", h.DeleteLead)
		})
	})

	r.With(requireAdmin).Post("/uploads/{resource}", h.Upload)

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin, middleware.NoStore)
		r.Get("/events", h.ListEvents)
		r.Post("/cache/clear", h.ClearCache)
		r.Get("/jobs", h.ListJobs)
		r.With(superAdmin).Post("/jobs/{name}/run", h.RunJob)
	})

	for _, res := range h.resources() {
		res.Mount(r, requireAdmin, optionalAdmin)
	}

	return r
}
