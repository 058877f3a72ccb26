// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/cache"
	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/util"
)

// productSorts maps the public ?sort values to orderings.
var productSorts = map[string]string{
	"price_asc":  "price ASC, id ASC",
	"price_desc": "price DESC, id DESC",
	"newest":     store.OrderNewest,
	"name":       "name ASC, id ASC",
}

// ActiveHero handles GET /api/heroes/active
func (h *Handler) ActiveHero(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hero, err := cache.Remember(ctx, h.cache, "heroes", "active", func() (*model.Hero, error) {
		return h.heroes.ActiveHero(ctx)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "No active hero found")
			return
		}
		h.WriteStoreError(w, r, err, "hero")
		return
	}
	WriteSuccess(w, hero, nil)
}

// CategoryBySlug handles GET /api/categories/slug/{slug}
func (h *Handler) CategoryBySlug(w http.ResponseWriter, r *http.Request) {
	slug := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "slug")))
	if !util.IsValidSlug(slug) {
		WriteNotFound(w, "Category not found")
		return
	}
	c, err := h.categories.First(r.Context(), store.ListOptions{ActiveOnly: true, Filters: map[string]any{"slug": slug}})
	if err != nil {
		h.WriteStoreError(w, r, err, "category")
		return
	}
	WriteSuccess(w, c, nil)
}

// ProductBySlug handles GET /api/products/slug/{slug}
// Inactive products are only visible to admins.
func (h *Handler) ProductBySlug(w http.ResponseWriter, r *http.Request) {
	slug := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "slug")))
	if !util.IsValidSlug(slug) {
		WriteNotFound(w, "Product not found")
		return
	}
	opts := store.ListOptions{
		ActiveOnly: middleware.GetAdmin(r) == nil,
		Filters:    map[string]any{"slug": slug},
	}
	p, err := h.products.First(r.Context(), opts)
	if err != nil {
		h.WriteStoreError(w, r, err, "product")
		return
	}
	WriteSuccess(w, p, nil)
}

// productFilter applies the public catalog filters:
// category (id or slug), metal, featured, newArrival, bestSeller,
// channel (online, store, order), minPrice, maxPrice and sort.
func (h *Handler) productFilter(r *http.Request, opts *store.ListOptions) error {
	q := r.URL.Query()
	filters := map[string]any{}

	if c := strings.TrimSpace(q.Get("category")); c != "" {
		if id, err := strconv.ParseInt(c, 10, 64); err == nil {
			filters["category_id"] = id
		} else {
			slug := strings.ToLower(c)
			opts.Scopes = append(opts.Scopes, func(db *gorm.DB) *gorm.DB {
				return db.Where("category_id IN (?)",
					db.Session(&gorm.Session{NewDB: true}).Model(&model.Category{}).Select("id").Where("slug = ?", slug))
			})
		}
	}
	if m := strings.ToLower(strings.TrimSpace(q.Get("metal"))); m != "" {
		filters["metal"] = m
	}

	flags := map[string]string{
		"featured":   "is_featured",
		"newArrival": "is_new_arrival",
		"bestSeller": "is_best_seller",
	}
	for param, col := range flags {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		on, err := parseBool(raw)
		if err != nil {
			return errors.New("invalid " + param + " filter")
		}
		filters[col] = on
	}

	switch ch := q.Get("channel"); ch {
	case "":
	case "online":
		filters["available_online"] = true
	case "store":
		filters["available_in_store"] = true
	case "order":
		filters["available_on_order"] = true
	default:
		return errors.New("channel must be one of: online, store, order")
	}

	bounds := []struct {
		param, cond string
	}{
		{"minPrice", "price >= ?"},
		{"maxPrice", "price <= ?"},
	}
	for _, b := range bounds {
		raw := q.Get(b.param)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return errors.New("invalid " + b.param)
		}
		cond := b.cond
		opts.Scopes = append(opts.Scopes, func(db *gorm.DB) *gorm.DB { return db.Where(cond, v) })
	}

	if s := q.Get("sort"); s != "" {
		order, ok := productSorts[s]
		if !ok {
			return errors.New("sort must be one of: price_asc, price_desc, newest, name")
		}
		opts.Order = order
	}

	if len(filters) > 0 {
		opts.Filters = filters
	}
	return nil
}

// ProductReviews handles GET /api/products/{id}/reviews
// Public: approved reviews of an active product, newest first.
func (h *Handler) ProductReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	product, ok := requireEntityByID(h, w, r, "product", func(id int64) (*model.Product, error) {
		return h.products.Get(ctx, id, true)
	})
	if !ok {
		return
	}

	page, _ := parsePagination(r)
	variant := "product=" + strconv.FormatInt(product.ID, 10) + "&" + cacheVariant(r)

	out, err := cache.Remember(ctx, h.cache, "reviews", variant, func() (*reviewList, error) {
		rows, total, err := h.reviews.List(ctx, store.ListOptions{
			ActiveOnly: true,
			Filters:    map[string]any{"product_id": product.ID},
			Page:       page.Page,
			PerPage:    page.Limit,
		})
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].HideContact()
		}
		return &reviewList{Reviews: rows, Meta: buildPaginationResponse(total, page)}, nil
	})
	if err != nil {
		h.WriteStoreError(w, r, err, "review")
		return
	}
	WriteSuccess(w, out.Reviews, out.Meta)
}

type reviewList struct {
	Reviews []model.Review `json:"reviews"`
	Meta    *Meta          `json:"meta"`
}

// reviewSubmission is the body of a public review.
type reviewSubmission struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Rating    int    `json:"rating"`
	Title     string `json:"title"`
	Comment   string `json:"comment"`
}

// SubmitReview handles anonymous POST /api/reviews
// The review is stored unapproved and only shown once an admin toggles it.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.submitLimiter.Allow(middleware.ClientIP(r)) {
		w.Header().Set("Retry-After", "1")
		middleware.WriteAPIError(w, http.StatusTooManyRequests, middleware.CodeRateLimited, "Too many submissions, please try again later.")
		return
	}

	p, _, err := h.readPayload(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	var in reviewSubmission
	if err := decodeInto(p, &in); err != nil {
		WriteValidationError(w, decodeErrors(err))
		return
	}

	rv := &model.Review{
		ProductID: in.ProductID,
		Name:      in.Name,
		Email:     in.Email,
		Rating:    in.Rating,
		Title:     in.Title,
		Comment:   in.Comment,
	}
	rv.IsActive = false

	fields, err := h.prepareReview(ctx, rv, 0)
	if err != nil {
		h.WriteStoreError(w, r, err, "review")
		return
	}
	if fields == nil {
		fields = map[string]string{}
	}
	if rv.ProductID > 0 && fields["productId"] == "" {
		if _, err := h.products.Get(ctx, rv.ProductID, true); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				h.WriteStoreError(w, r, err, "review")
				return
			}
			fields["productId"] = "product does not exist"
		}
	}
	for k, v := range h.validateStruct(rv) {
		if _, exists := fields[k]; !exists {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		WriteValidationError(w, fields)
		return
	}

	if err := h.reviews.Create(ctx, rv); err != nil {
		h.WriteStoreError(w, r, err, "review")
		return
	}

	slog.Info("review submitted", "id", rv.ID, "product_id", rv.ProductID, "category", model.EventCategoryContent)
	WriteCreated(w, rv, "Thank you! Your review will be published once approved.")
}

// CurrentPopups handles GET /api/popups/current
// Active popups inside their display window, optionally for ?page=<name>.
func (h *Handler) CurrentPopups(w http.ResponseWriter, r *http.Request) {
	popups, err := h.popups.Current(r.Context(), h.now())
	if err != nil {
		h.WriteStoreError(w, r, err, "popup")
		return
	}

	page := strings.TrimSpace(r.URL.Query().Get("page"))
	out := make([]model.Popup, 0, len(popups))
	for i := range popups {
		if popups[i].ShowsOn(page) {
			out = append(out, popups[i])
		}
	}
	WriteSuccess(w, out, nil)
}
