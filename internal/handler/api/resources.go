// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/util"
)

// mountable is a resource that registers its own routes.
type mountable interface {
	Mount(r chi.Router, requireAdmin, optionalAdmin func(http.Handler) http.Handler)
}

// resources returns every curated entity served by the API.
func (h *Handler) resources() []mountable {
	db := h.db
	describe := []string{"description"}

	return []mountable{
		&Resource[model.Banner, *model.Banner]{
			h: h, Name: "banners", Label: "banner",
			Repo:        store.NewRepository[model.Banner](db, store.WithSearch("title", "subtitle")),
			ImageFields: []string{"imageUrl", "mobileImageUrl"},
			RichText:    describe,
		},
		&Resource[model.Hero, *model.Hero]{
			h: h, Name: "heroes", Label: "hero",
			Repo:        h.heroes.Repository,
			ImageFields: []string{"imageUrl"},
			Inactive:    true,
			RichText:    describe,
			Extra: func(r chi.Router) {
				r.Get("/active", h.ActiveHero)
			},
		},
		&Resource[model.Category, *model.Category]{
			h: h, Name: "categories", Label: "category",
			Repo:        h.categories,
			ImageFields: []string{"imageUrl"},
			RichText:    describe,
			Prepare:     h.prepareCategory,
			Related:     []string{"products"},
			Extra: func(r chi.Router) {
				r.Get("/slug/{slug}", h.CategoryBySlug)
			},
		},
		&Resource[model.Service, *model.Service]{
			h: h, Name: "services", Label: "service",
			Repo:        store.NewRepository[model.Service](db, store.WithSearch("title")),
			ImageFields: []string{"imageUrl"},
			RichText:    describe,
		},
		&Resource[model.Quote, *model.Quote]{
			h: h, Name: "quotes", Label: "quote",
			Repo:        store.NewRepository[model.Quote](db, store.WithSearch("text", "author")),
			ImageFields: []string{"imageUrl"},
		},
		&Resource[model.Testimonial, *model.Testimonial]{
			h: h, Name: "testimonials", Label: "testimonial",
			Repo:        store.NewRepository[model.Testimonial](db, store.WithSearch("name", "message", "location")),
			ImageFields: []string{"imageUrl"},
			PublicMeta:  true,
		},
		&Resource[model.Gallery, *model.Gallery]{
			h: h, Name: "galleries", Label: "gallery",
			Repo: store.NewRepository[model.Gallery](db,
				store.WithSearch("title", "category"),
				store.WithPreload("Items", "sort_order ASC, id ASC"),
			),
			ImageFields: []string{"coverImageUrl"},
			RichText:    describe,
			Children: &Children[model.Gallery]{
				Key:        "items",
				FilePrefix: "itemImage_",
				Replace:    replaceGalleryItems,
			},
			Filter:     categoryFilter,
			PublicMeta: true,
		},
		&Resource[model.FAQ, *model.FAQ]{
			h: h, Name: "faqs", Label: "FAQ",
			Repo:     store.NewRepository[model.FAQ](db, store.WithSearch("question", "answer")),
			RichText: []string{"answer"},
			Filter:   categoryFilter,
		},
		&Resource[model.Culture, *model.Culture]{
			h: h, Name: "cultures", Label: "culture",
			Repo:        store.NewRepository[model.Culture](db, store.WithSearch("title", "region")),
			ImageFields: []string{"imageUrl"},
			RichText:    describe,
		},
		&Resource[model.RingCustomization, *model.RingCustomization]{
			h: h, Name: "ring-customizations", Label: "ring customization",
			Repo:        store.NewRepository[model.RingCustomization](db, store.WithSearch("title", "option_type")),
			ImageFields: []string{"imageUrl"},
			RichText:    describe,
		},
		&Resource[model.DiamondCertification, *model.DiamondCertification]{
			h: h, Name: "diamond-certifications", Label: "diamond certification",
			Repo:        store.NewRepository[model.DiamondCertification](db, store.WithSearch("title", "authority")),
			ImageFields: []string{"imageUrl"},
			RichText:    describe,
		},
		&Resource[model.CelebrationProcess, *model.CelebrationProcess]{
			h: h, Name: "celebration-processes", Label: "celebration process",
			Repo: store.NewRepository[model.CelebrationProcess](db,
				store.WithSearch("title"),
				store.WithPreload("Steps", "step_number ASC, id ASC"),
			),
			ImageFields: []string{"imageUrl"},
			RichText:    describe,
			Children: &Children[model.CelebrationProcess]{
				Key:        "steps",
				FilePrefix: "stepImage_",
				Replace:    replaceProcessSteps,
			},
		},
		&Resource[model.WeddingPlanner, *model.WeddingPlanner]{
			h: h, Name: "wedding-planners", Label: "wedding planner",
			Repo:        store.NewRepository[model.WeddingPlanner](db, store.WithSearch("title", "phase")),
			ImageFields: []string{"imageUrl"},
			RichText:    describe,
		},
		&Resource[model.Product, *model.Product]{
			h: h, Name: "products", Label: "product",
			Repo:        h.products,
			ImageFields: []string{"imageUrl"},
			ImageLists:  []string{"images"},
			RichText:    describe,
			ReadOnly:    []string{"category"},
			Prepare:     h.prepareProduct,
			Filter:      h.productFilter,
			Related:     []string{"reviews"},
			Extra: func(r chi.Router) {
				r.Get("/slug/{slug}", h.ProductBySlug)
				r.Get("/{id}/reviews", h.ProductReviews)
			},
		},
		&Resource[model.Review, *model.Review]{
			h: h, Name: "reviews", Label: "review",
			Repo:     h.reviews,
			Inactive: true,
			ReadOnly: []string{"product"},
			Redact:   (*model.Review).HideContact,
			Prepare:  h.prepareReview,
			Filter:   productIDFilter,
			Submit:   h.SubmitReview,
		},
		&Resource[model.Popup, *model.Popup]{
			h: h, Name: "popups", Label: "popup",
			Repo:        h.popups.Repository,
			ImageFields: []string{"imageUrl"},
			RichText:    []string{"content"},
			Prepare:     preparePopup,
			Extra: func(r chi.Router) {
				r.Get("/current", h.CurrentPopups)
			},
		},
	}
}

func replaceGalleryItems(tx *gorm.DB, g *model.Gallery) error {
	for i := range g.Items {
		item := &g.Items[i]
		item.Base = model.Base{}
		item.GalleryID = g.ID
		if item.SortOrder == 0 {
			item.SortOrder = i
		}
	}
	return store.ReplaceChildren(tx, "gallery_id", g.ID, g.Items)
}

func replaceProcessSteps(tx *gorm.DB, p *model.CelebrationProcess) error {
	for i := range p.Steps {
		step := &p.Steps[i]
		step.Base = model.Base{}
		step.ProcessID = p.ID
		if step.StepNumber == 0 {
			step.StepNumber = i + 1
		}
	}
	return store.ReplaceChildren(tx, "process_id", p.ID, p.Steps)
}

// categoryFilter narrows lists by ?category=<name>.
func categoryFilter(r *http.Request, opts *store.ListOptions) error {
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
		opts.Filters = map[string]any{"category": c}
	}
	return nil
}

// productIDFilter narrows lists by ?productId=<id>.
func productIDFilter(r *http.Request, opts *store.ListOptions) error {
	raw := r.URL.Query().Get("productId")
	if raw == "" {
		return nil
	}
	id, err := parsePositiveInt(raw)
	if err != nil {
		return errors.New("invalid productId")
	}
	opts.Filters = map[string]any{"product_id": id}
	return nil
}

// assignSlug fills slug from name when empty and checks uniqueness. An
// explicit slug that is taken is a field error; a derived one gets a suffix.
func assignSlug[T any](ctx context.Context, repo *store.Repository[T], slug *string, name string, id int64) (map[string]string, error) {
	explicit := strings.TrimSpace(*slug) != ""
	if explicit {
		*slug = util.Slugify(*slug)
	} else {
		*slug = util.Slugify(name)
	}
	if *slug == "" {
		if explicit {
			return map[string]string{"slug": "slug must contain letters or digits"}, nil
		}
		return nil, nil // name is required and reported by validation
	}

	exists := func(ctx context.Context, s string) (bool, error) {
		return repo.Exists(ctx, "slug", s, id)
	}
	if explicit {
		taken, err := exists(ctx, *slug)
		if err != nil {
			return nil, err
		}
		if taken {
			return map[string]string{"slug": "slug already exists"}, nil
		}
		return nil, nil
	}

	unique, err := util.UniqueSlug(ctx, *slug, exists)
	if err != nil {
		return nil, err
	}
	*slug = unique
	return nil, nil
}

func (h *Handler) prepareCategory(ctx context.Context, c *model.Category, id int64) (map[string]string, error) {
	c.Name = strings.TrimSpace(c.Name)
	return assignSlug(ctx, h.categories, &c.Slug, c.Name, id)
}

func (h *Handler) prepareProduct(ctx context.Context, p *model.Product, id int64) (map[string]string, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Metal = strings.ToLower(strings.TrimSpace(p.Metal))

	fields, err := assignSlug(ctx, h.products, &p.Slug, p.Name, id)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]string{}
	}

	if p.CategoryID != nil {
		if *p.CategoryID <= 0 {
			p.CategoryID = nil
		} else if ok, err := h.categories.Exists(ctx, "id", *p.CategoryID, 0); err != nil {
			return nil, err
		} else if !ok {
			fields["categoryId"] = "category does not exist"
		}
	}
	if p.ComparePrice != nil && *p.ComparePrice > 0 && *p.ComparePrice < p.Price {
		fields["comparePrice"] = "comparePrice must not be lower than price"
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return fields, nil
}

func (h *Handler) prepareReview(ctx context.Context, rv *model.Review, _ int64) (map[string]string, error) {
	rv.Name = strings.TrimSpace(rv.Name)
	rv.Email = strings.ToLower(strings.TrimSpace(rv.Email))
	rv.Comment = util.StripHTML(rv.Comment)
	rv.Title = util.StripHTML(rv.Title)

	if rv.ProductID <= 0 {
		return nil, nil
	}
	ok, err := h.products.Exists(ctx, "id", rv.ProductID, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{"productId": "product does not exist"}, nil
	}
	return nil, nil
}

func preparePopup(_ context.Context, p *model.Popup, _ int64) (map[string]string, error) {
	if p.Pages == nil {
		p.Pages = []string{}
	}
	if p.StartsAt != nil && p.EndsAt != nil && p.EndsAt.Before(*p.StartsAt) {
		return map[string]string{"endsAt": "endsAt must be after startsAt"}, nil
	}
	if p.EndsAt != nil && p.IsActive && p.EndsAt.Before(time.Now()) {
		return map[string]string{"endsAt": "endsAt is in the past"}, nil
	}
	return nil, nil
}

func parsePositiveInt(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return id, nil
}
