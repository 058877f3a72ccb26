// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemcraft/gemcms/internal/model"
)

func (e *testEnv) createCategory(t *testing.T, body map[string]any) model.Category {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/categories", body, e.token)
	assertStatusCode(t, w, http.StatusCreated)
	var c model.Category
	unmarshalData(t, w, &c)
	return c
}

func (e *testEnv) createProduct(t *testing.T, body map[string]any) model.Product {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/products", body, e.token)
	assertStatusCode(t, w, http.StatusCreated)
	var p model.Product
	unmarshalData(t, w, &p)
	return p
}

func (e *testEnv) listProducts(t *testing.T, query string) []model.Product {
	t.Helper()
	w := e.do(t, http.MethodGet, "/api/products"+query, nil, "")
	assertStatusCode(t, w, http.StatusOK)
	var products []model.Product
	unmarshalData(t, w, &products)
	return products
}

func productNames(products []model.Product) []string {
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	return names
}

func TestCategory_SlugGenerated(t *testing.T) {
	env := newTestEnv(t)

	c := env.createCategory(t, map[string]any{"name": "Engagement Rings"})
	assert.Equal(t, "engagement-rings", c.Slug)

	dup := env.createCategory(t, map[string]any{"name": "Engagement  Rings!"})
	assert.Equal(t, "engagement-rings-2", dup.Slug)
}

func TestCategory_ExplicitSlugMustBeUnique(t *testing.T) {
	env := newTestEnv(t)
	env.createCategory(t, map[string]any{"name": "Rings", "slug": "rings"})

	w := env.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "More rings", "slug": "Rings"}, env.token)
	assertStatusCode(t, w, http.StatusBadRequest)
	assert.Equal(t, "slug already exists", decodeEnvelope(t, w).Errors["slug"])
}

func TestCategory_UpdateKeepsOwnSlug(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCategory(t, map[string]any{"name": "Rings", "slug": "rings"})

	w := env.do(t, http.MethodPut, idPath("/api/categories", c.ID, ""), map[string]any{"description": "All rings"}, env.token)
	assertStatusCode(t, w, http.StatusOK)

	var updated model.Category
	unmarshalData(t, w, &updated)
	assert.Equal(t, "rings", updated.Slug)
}

func TestCategory_BySlug(t *testing.T) {
	env := newTestEnv(t)
	env.createCategory(t, map[string]any{"name": "Necklaces"})
	env.createCategory(t, map[string]any{"name": "Hidden", "isActive": false})

	w := env.do(t, http.MethodGet, "/api/categories/slug/necklaces", nil, "")
	assertStatusCode(t, w, http.StatusOK)
	var c model.Category
	unmarshalData(t, w, &c)
	assert.Equal(t, "Necklaces", c.Name)

	w = env.do(t, http.MethodGet, "/api/categories/slug/hidden", nil, "")
	assertStatusCode(t, w, http.StatusNotFound)

	w = env.do(t, http.MethodGet, "/api/categories/slug/no%20such", nil, "")
	assertStatusCode(t, w, http.StatusNotFound)
}

func TestProduct_CreateAndGetBySlug(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCategory(t, map[string]any{"name": "Rings"})

	p := env.createProduct(t, map[string]any{
		"name":       "Solitaire Ring",
		"price":      1200,
		"categoryId": c.ID,
		"metal":      "Gold",
		"images":     []string{"https://cdn.example.com/a.jpg"},
	})
	assert.Equal(t, "solitaire-ring", p.Slug)
	assert.Equal(t, "gold", p.Metal)
	require.NotNil(t, p.Category)
	assert.Equal(t, "Rings", p.Category.Name)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, []string(p.Images))

	w := env.do(t, http.MethodGet, "/api/products/slug/solitaire-ring", nil, "")
	assertStatusCode(t, w, http.StatusOK)
	var got model.Product
	unmarshalData(t, w, &got)
	assert.Equal(t, p.ID, got.ID)
}

func TestProduct_InactiveBySlugOnlyForAdmins(t *testing.T) {
	env := newTestEnv(t)
	env.createProduct(t, map[string]any{"name": "Prototype", "price": 10, "isActive": false})

	w := env.do(t, http.MethodGet, "/api/products/slug/prototype", nil, "")
	assertStatusCode(t, w, http.StatusNotFound)

	w = env.do(t, http.MethodGet, "/api/products/slug/prototype", nil, env.token)
	assertStatusCode(t, w, http.StatusOK)
}

func TestProduct_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/products", map[string]any{
		"name":         "Ring",
		"price":        100,
		"comparePrice": 50,
		"categoryId":   9999,
	}, env.token)
	assertStatusCode(t, w, http.StatusBadRequest)

	fields := decodeEnvelope(t, w).Errors
	assert.Equal(t, "comparePrice must not be lower than price", fields["comparePrice"])
	assert.Equal(t, "category does not exist", fields["categoryId"])

	w = env.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Ring", "price": -1}, env.token)
	assertStatusCode(t, w, http.StatusBadRequest)
	assert.Contains(t, decodeEnvelope(t, w).Errors, "price")
}

func TestProduct_Filters(t *testing.T) {
	env := newTestEnv(t)
	rings := env.createCategory(t, map[string]any{"name": "Rings"})
	chains := env.createCategory(t, map[string]any{"name": "Chains"})

	env.createProduct(t, map[string]any{
		"name": "Gold Band", "price": 800, "categoryId": rings.ID, "metal": "gold",
		"isFeatured": true, "availableOnline": true,
	})
	env.createProduct(t, map[string]any{
		"name": "Platinum Solitaire", "price": 4500, "categoryId": rings.ID, "metal": "platinum",
		"isNewArrival": true, "availableInStore": true,
	})
	env.createProduct(t, map[string]any{
		"name": "Rope Chain", "price": 1500, "categoryId": chains.ID, "metal": "gold",
		"isBestSeller": true, "availableOnline": true, "availableOnOrder": true,
	})

	tests := []struct {
		query string
		want  []string
	}{
		{"?category=rings&sort=name", []string{"Gold Band", "Platinum Solitaire"}},
		{"?category=" + strconv.FormatInt(chains.ID, 10), []string{"Rope Chain"}},
		{"?metal=gold&sort=price_asc", []string{"Gold Band", "Rope Chain"}},
		{"?featured=true", []string{"Gold Band"}},
		{"?newArrival=1", []string{"Platinum Solitaire"}},
		{"?bestSeller=yes", []string{"Rope Chain"}},
		{"?channel=online&sort=price_desc", []string{"Rope Chain", "Gold Band"}},
		{"?channel=store", []string{"Platinum Solitaire"}},
		{"?channel=order", []string{"Rope Chain"}},
		{"?minPrice=1000&maxPrice=2000", []string{"Rope Chain"}},
		{"?search=solitaire", []string{"Platinum Solitaire"}},
		{"?sort=price_asc", []string{"Gold Band", "Rope Chain", "Platinum Solitaire"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, productNames(env.listProducts(t, tt.query)))
		})
	}
}

func TestProduct_InvalidFilters(t *testing.T) {
	env := newTestEnv(t)

	for _, query := range []string{"?channel=mail", "?sort=random", "?minPrice=abc", "?maxPrice=-5", "?featured=maybe"} {
		w := env.do(t, http.MethodGet, "/api/products"+query, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestProduct_UpdateIgnoresCategoryObject(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCategory(t, map[string]any{"name": "Rings"})
	p := env.createProduct(t, map[string]any{"name": "Band", "price": 100, "categoryId": c.ID})

	w := env.do(t, http.MethodPut, idPath("/api/products", p.ID, ""), map[string]any{
		"price":    150,
		"category": map[string]any{"name": "Hacked"},
	}, env.token)
	assertStatusCode(t, w, http.StatusOK)

	var updated model.Product
	unmarshalData(t, w, &updated)
	assert.InDelta(t, 150.0, updated.Price, 0.001)
	assert.Equal(t, "band", updated.Slug)
	require.NotNil(t, updated.Category)
	assert.Equal(t, "Rings", updated.Category.Name)
}

func TestProduct_MultipartImagesAppended(t *testing.T) {
	env := newTestEnv(t)

	w := env.doMultipart(t, http.MethodPost, "/api/products",
		map[string]string{"name": "Pendant", "price": "300", "images": `["https://cdn.example.com/keep.jpg"]`},
		map[string][]byte{"images": pngBytes(t)},
		env.token)
	assertStatusCode(t, w, http.StatusCreated)

	var p model.Product
	unmarshalData(t, w, &p)
	require.Len(t, p.Images, 2)
	assert.Equal(t, "https://cdn.example.com/keep.jpg", p.Images[0])
	assert.Contains(t, p.Images[1], "/uploads/products/")
}

func TestReviews_PublicSubmissionNeedsApproval(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct(t, map[string]any{"name": "Band", "price": 100})

	w := env.do(t, http.MethodPost, "/api/reviews", map[string]any{
		"productId": p.ID,
		"name":      "Meera",
		"email":     "Meera@Example.com",
		"rating":    5,
		"comment":   "<b>Stunning</b> ring",
	}, "")
	assertStatusCode(t, w, http.StatusCreated)

	var rv model.Review
	resp := unmarshalData(t, w, &rv)
	assert.Equal(t, "Thank you! Your review will be published once approved.", resp.Message)
	assert.False(t, rv.IsActive)
	assert.Equal(t, "meera@example.com", rv.Email)
	assert.Equal(t, "Stunning ring", rv.Comment)

	reviewsPath := idPath("/api/products", p.ID, "/reviews")
	var reviews []model.Review
	unmarshalData(t, env.do(t, http.MethodGet, reviewsPath, nil, ""), &reviews)
	assert.Empty(t, reviews)

	w = env.do(t, http.MethodPatch, idPath("/api/reviews", rv.ID, "/toggle"), nil, env.token)
	assertStatusCode(t, w, http.StatusOK)

	w = env.do(t, http.MethodGet, reviewsPath, nil, "")
	assertStatusCode(t, w, http.StatusOK)
	resp = unmarshalData(t, w, &reviews)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Meera", reviews[0].Name)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
}

func TestReviews_SubmitValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/reviews", map[string]any{
		"productId": 424242,
		"name":      "",
		"rating":    9,
		"comment":   "ok",
	}, "")
	assertStatusCode(t, w, http.StatusBadRequest)

	fields := decodeEnvelope(t, w).Errors
	assert.Equal(t, "product does not exist", fields["productId"])
	assert.Equal(t, "name is required", fields["name"])
	assert.Equal(t, "rating must be at most 5", fields["rating"])
}

func TestReviews_SubmitForInactiveProduct(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct(t, map[string]any{"name": "Hidden", "price": 100, "isActive": false})

	w := env.do(t, http.MethodPost, "/api/reviews", map[string]any{
		"productId": p.ID, "name": "Ann", "rating": 4, "comment": "Nice",
	}, "")
	assertStatusCode(t, w, http.StatusBadRequest)
	assert.Equal(t, "product does not exist", decodeEnvelope(t, w).Errors["productId"])
}

func TestReviews_ProductReviewsOfMissingProduct(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/products/999/reviews", nil, "")
	assertStatusCode(t, w, http.StatusNotFound)
}

func TestReviews_AdminCreateAndFilter(t *testing.T) {
	env := newTestEnv(t)
	a := env.createProduct(t, map[string]any{"name": "A", "price": 1})
	b := env.createProduct(t, map[string]any{"name": "B", "price": 1})

	for _, id := range []int64{a.ID, b.ID} {
		w := env.do(t, http.MethodPost, "/api/reviews", map[string]any{
			"productId": id, "name": "Staff", "rating": 5, "comment": "Imported", "isActive": true,
		}, env.token)
		assertStatusCode(t, w, http.StatusCreated)
	}

	var reviews []model.Review
	unmarshalData(t, env.do(t, http.MethodGet, "/api/reviews?productId="+strconv.FormatInt(b.ID, 10), nil, ""), &reviews)
	require.Len(t, reviews, 1)
	assert.Equal(t, b.ID, reviews[0].ProductID)

	w := env.do(t, http.MethodGet, "/api/reviews?productId=abc", nil, "")
	assertStatusCode(t, w, http.StatusBadRequest)
}

func TestReviews_EmailHiddenFromPublic(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct(t, map[string]any{"name": "Solitaire", "price": 900})

	w := env.do(t, http.MethodPost, "/api/reviews", map[string]any{
		"productId": p.ID, "name": "Ravi", "email": "ravi@example.com",
		"rating": 5, "comment": "Perfect", "isActive": true,
	}, env.token)
	assertStatusCode(t, w, http.StatusCreated)
	var rv model.Review
	unmarshalData(t, w, &rv)

	for _, path := range []string{
		"/api/reviews",
		idPath("/api/reviews", rv.ID, ""),
		idPath("/api/products", p.ID, "/reviews"),
	} {
		w := env.do(t, http.MethodGet, path, nil, "")
		assertStatusCode(t, w, http.StatusOK)
		assert.Contains(t, w.Body.String(), "Ravi", path)
		assert.NotContains(t, w.Body.String(), "ravi@example.com", path)
		assert.NotContains(t, w.Body.String(), `"email"`, path)
	}

	w = env.do(t, http.MethodGet, "/api/reviews/admin/all", nil, env.token)
	assertStatusCode(t, w, http.StatusOK)
	assert.Contains(t, w.Body.String(), "ravi@example.com")

	w = env.do(t, http.MethodGet, idPath("/api/reviews", rv.ID, ""), nil, env.token)
	assertStatusCode(t, w, http.StatusOK)
	assert.Contains(t, w.Body.String(), "ravi@example.com")
}

func TestPopups_Current(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	create := func(body map[string]any) {
		t.Helper()
		w := env.do(t, http.MethodPost, "/api/popups", body, env.token)
		assertStatusCode(t, w, http.StatusCreated)
	}
	create(map[string]any{"title": "Everywhere"})
	create(map[string]any{"title": "Home only", "pages": []string{"home"}})
	create(map[string]any{"title": "Upcoming", "startsAt": now.Add(24 * time.Hour).Format(time.RFC3339)})
	create(map[string]any{
		"title":    "Running",
		"startsAt": now.Add(-time.Hour).Format(time.RFC3339),
		"endsAt":   now.Add(time.Hour).Format(time.RFC3339),
	})
	create(map[string]any{"title": "Off", "isActive": false})

	titles := func(query string) []string {
		w := env.do(t, http.MethodGet, "/api/popups/current"+query, nil, "")
		assertStatusCode(t, w, http.StatusOK)
		var popups []model.Popup
		unmarshalData(t, w, &popups)
		out := make([]string, len(popups))
		for i, p := range popups {
			out[i] = p.Title
		}
		return out
	}

	assert.ElementsMatch(t, []string{"Everywhere", "Home only", "Running"}, titles(""))
	assert.ElementsMatch(t, []string{"Everywhere", "Home only", "Running"}, titles("?page=home"))
	assert.ElementsMatch(t, []string{"Everywhere", "Running"}, titles("?page=shop"))
}

func TestPopups_CurrentWithOffsetTimes(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	east := time.FixedZone("UTC+5", 5*60*60)
	west := time.FixedZone("UTC-5", -5*60*60)

	startsAt := now.Add(-time.Hour).Truncate(time.Second)
	w := env.do(t, http.MethodPost, "/api/popups", map[string]any{
		"title":    "Festive",
		"startsAt": startsAt.In(east).Format(time.RFC3339),
		"endsAt":   now.Add(time.Hour).In(west).Format(time.RFC3339),
	}, env.token)
	assertStatusCode(t, w, http.StatusCreated)
	var created model.Popup
	unmarshalData(t, w, &created)
	require.NotNil(t, created.StartsAt)
	assert.True(t, created.StartsAt.Equal(startsAt))

	w = env.do(t, http.MethodGet, "/api/popups/current", nil, "")
	assertStatusCode(t, w, http.StatusOK)
	var popups []model.Popup
	unmarshalData(t, w, &popups)
	require.Len(t, popups, 1)
	assert.Equal(t, "Festive", popups[0].Title)
}

func TestPopups_WindowValidation(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	w := env.do(t, http.MethodPost, "/api/popups", map[string]any{
		"title":    "Backwards",
		"startsAt": now.Add(time.Hour).Format(time.RFC3339),
		"endsAt":   now.Format(time.RFC3339),
	}, env.token)
	assertStatusCode(t, w, http.StatusBadRequest)
	assert.Equal(t, "endsAt must be after startsAt", decodeEnvelope(t, w).Errors["endsAt"])

	w = env.do(t, http.MethodPost, "/api/popups", map[string]any{
		"title":  "Stale",
		"endsAt": now.Add(-time.Hour).Format(time.RFC3339),
	}, env.token)
	assertStatusCode(t, w, http.StatusBadRequest)
	assert.Equal(t, "endsAt is in the past", decodeEnvelope(t, w).Errors["endsAt"])

	w = env.do(t, http.MethodPost, "/api/popups", map[string]any{
		"title":        "Slow",
		"delaySeconds": 7200,
	}, env.token)
	assertStatusCode(t, w, http.StatusBadRequest)
	assert.Contains(t, decodeEnvelope(t, w).Errors, "delaySeconds")
}
