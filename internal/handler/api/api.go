// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST API handlers for the storefront CMS.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/auth"
	"github.com/gemcraft/gemcms/internal/cache"
	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/storage"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/version"
)

// Config holds the dependencies of the API handlers.
type Config struct {
	DB      *gorm.DB
	Tokens  *auth.TokenManager
	Storage storage.Storage
	Cache   *cache.Manager // Optional; nil disables response caching

	// LoginProtection guards POST /auth/login. A default instance is
	// created when nil.
	LoginProtection *middleware.LoginProtection

	Development   bool  // Include internal error details in 500 responses
	MaxUploadSize int64 // Per request, in bytes

	LeadRateLimit float64 // Lead and review submissions per second per IP, 0 disables
	LeadBurst     int     // Defaults to 3

	AdminRateLimit float64 // Requests per second per signed-in admin, 0 disables
	AdminRateBurst int
	Version        version.Info

	Jobs JobRunner // Optional; backs /admin/jobs
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	db         *gorm.DB
	tokens     *auth.TokenManager
	storage    storage.Storage
	cache      *cache.Manager
	login      *middleware.LoginProtection
	validate   *validator.Validate
	admins     *store.AdminStore
	heroes     *store.HeroStore
	popups     *store.PopupStore
	leads      *store.LeadStore
	events     *store.EventStore
	categories *store.Repository[model.Category]
	products   *store.Repository[model.Product]
	reviews    *store.Repository[model.Review]

	dev           bool
	maxUpload     int64
	submitLimiter *middleware.IPRateLimiter
	adminLimit    func(http.Handler) http.Handler
	version       version.Info
	jobs          JobRunner
	now           func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.LoginProtection == nil {
		cfg.LoginProtection = middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 10 << 20
	}
	if cfg.LeadBurst <= 0 {
		cfg.LeadBurst = 3
	}
	return &Handler{
		db:         cfg.DB,
		tokens:     cfg.Tokens,
		storage:    cfg.Storage,
		cache:      cfg.Cache,
		login:      cfg.LoginProtection,
		validate:   newValidator(),
		admins:     store.NewAdminStore(cfg.DB),
		heroes:     store.NewHeroStore(cfg.DB),
		popups:     store.NewPopupStore(cfg.DB),
		leads:      store.NewLeadStore(cfg.DB),
		events:     store.NewEventStore(cfg.DB),
		categories: store.NewRepository[model.Category](cfg.DB, store.WithSearch("name", "slug")),
		products: store.NewRepository[model.Product](cfg.DB,
			store.WithSearch("name", "sku", "short_description"),
			store.WithPreload("Category", ""),
		),
		reviews: store.NewRepository[model.Review](cfg.DB,
			store.WithOrder(store.OrderNewest),
			store.WithSearch("name", "title", "comment"),
		),
		dev:           cfg.Development,
		maxUpload:     cfg.MaxUploadSize,
		submitLimiter: middleware.NewIPRateLimiter(cfg.LeadRateLimit, cfg.LeadBurst).WithMessage("Too many submissions, please try again later."),
		adminLimit:    middleware.AdminRateLimit(cfg.AdminRateLimit, cfg.AdminRateBurst),
		version:       cfg.Version,
		jobs:          cfg.Jobs,
		now:           time.Now,
	}
}

// Response is the standard API response envelope.
type Response struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Meta    *Meta             `json:"meta,omitempty"`
}

// Error codes used in the envelope's error field.
const (
	CodeBadRequest = "bad_request"
	CodeValidation = "validation_error"
	CodeNotFound   = "not_found"
	CodeDuplicate  = "duplicate"
	CodeReference  = "invalid_reference"
	CodeTooLarge   = "payload_too_large"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Success: true, Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any, message string) {
	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: data, Message: message})
}

// WriteMessage writes a successful response carrying a message and optional data.
func WriteMessage(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{Success: true, Data: data, Message: message})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteJSON(w, statusCode, Response{Message: message, Error: code})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeBadRequest, message)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// WriteValidationError writes a 400 response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteJSON(w, http.StatusBadRequest, Response{
		Message: "Validation failed",
		Error:   CodeValidation,
		Errors:  fieldErrors,
	})
}

// WriteStoreError maps store errors onto responses. what names the entity
// in not-found messages. Unknown errors become a 500 whose detail is only
// shown in development.
func (h *Handler) WriteStoreError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteNotFound(w, capitalizeFirst(what)+" not found")
	case errors.Is(err, store.ErrDuplicate):
		WriteError(w, http.StatusBadRequest, CodeDuplicate, "A "+what+" with the same unique value already exists")
	case errors.Is(err, store.ErrForeignKey):
		WriteError(w, http.StatusBadRequest, CodeReference, "Referenced record does not exist or is still in use")
	default:
		h.writeInternal(w, r, err, "Server error")
	}
}

// writeInternal logs err and writes a 500.
func (h *Handler) writeInternal(w http.ResponseWriter, r *http.Request, err error, message string) {
	slog.Error(message, "error", err, "method", r.Method, "path", r.URL.Path)
	resp := Response{Message: message, Error: middleware.CodeInternal}
	if h.dev && err != nil {
		resp.Error = err.Error()
	}
	WriteJSON(w, http.StatusInternalServerError, resp)
}

// parseIDParam parses the {id} URL parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// EntityFetcher is a function that fetches an entity by ID.
type EntityFetcher[T any] func(id int64) (T, error)

// requireEntityByID parses an ID from the URL and fetches the entity.
// Returns the entity and true if successful, or zero value and false if error (response written).
func requireEntityByID[T any](h *Handler, w http.ResponseWriter, r *http.Request, entityName string, fetch EntityFetcher[T]) (T, bool) {
	var zero T

	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid "+entityName+" ID")
		return zero, false
	}

	entity, err := fetch(id)
	if err != nil {
		h.WriteStoreError(w, r, err, entityName)
		return zero, false
	}

	return entity, true
}

// capitalizeFirst returns s with the first letter capitalized.
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// adminAttrs returns log attributes identifying the acting admin.
func adminAttrs(r *http.Request) []any {
	if a := middleware.GetAdmin(r); a != nil {
		return []any{"admin_id", a.ID, "admin", a.Username}
	}
	return nil
}
