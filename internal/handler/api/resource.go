// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gemcraft/gemcms/internal/cache"
	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/storage"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/util"
)

// entity is a pointer to a curated model.
type entity[T any] interface {
	*T
	GetID() int64
	Active() bool
}

// Children describes an ordered child list that is replaced as a whole.
type Children[T any] struct {
	Key string // json key of the list

	// FilePrefix names multipart file fields "<prefix><index>" that set the
	// image of the child at index.
	FilePrefix string

	// Replace deletes the stored children and inserts the parent's list.
	Replace store.TxFunc[T]
}

// childImageKey is the json key of a child's image.
const childImageKey = "imageUrl"

// Resource serves the standard operations of one curated entity:
// public and admin lists, get, create, update, toggle and delete.
type Resource[T any, PT entity[T]] struct {
	h *Handler

	Name  string // URL segment and cache namespace, e.g. "ring-customizations"
	Label string // Singular name used in messages
	Repo  *store.Repository[T]

	ImageFields []string // json keys holding one image URL; the first also accepts the "image" file field
	ImageLists  []string // json keys holding a list of image URLs; uploads are appended
	Children    *Children[T]
	RichText    []string // json keys sanitized as HTML
	ReadOnly    []string // Association keys ignored on write

	// Prepare runs after decoding and before validation. It may fill derived
	// fields and returns field errors. id is 0 on create.
	Prepare func(ctx context.Context, m *T, id int64) (map[string]string, error)

	// Redact clears fields anonymous callers must not see. It runs on public
	// lists and on Get without an admin.
	Redact func(m *T)

	// Filter adds query-string filters to public lists.
	Filter func(r *http.Request, opts *store.ListOptions) error

	// Submit serves anonymous POST requests. Without it creating requires an admin.
	Submit http.HandlerFunc

	PublicMeta bool               // Public lists always carry pagination meta
	Inactive   bool               // Rows created without isActive start hidden
	Related    []string           // Other cached resources a write invalidates
	Extra      func(r chi.Router) // Extra routes; the admin is loaded when a token is sent
}

// cachedList is a public list response as stored in the cache.
type cachedList struct {
	Data json.RawMessage `json:"data"`
	Meta *Meta           `json:"meta,omitempty"`
}

// Mount registers the resource routes under /<Name>.
func (res *Resource[T, PT]) Mount(r chi.Router, requireAdmin, optionalAdmin func(http.Handler) http.Handler) {
	r.Route("/"+res.Name, func(r chi.Router) {
		r.Get("/", res.List)
		r.With(requireAdmin).Get("/admin/all", res.AdminList)
		r.With(optionalAdmin).Get("/{id}", res.Get)
		if res.Submit != nil {
			r.With(optionalAdmin).Post("/", res.createOrSubmit)
		} else {
			r.With(requireAdmin).Post("/", res.Create)
		}
		r.With(requireAdmin).Put("/{id}", res.Update)
		r.With(requireAdmin).Patch("/{id}/toggle", res.Toggle)
		r.With(requireAdmin).Delete("/{id}", res.Delete)
		if res.Extra != nil {
			res.Extra(r.With(optionalAdmin))
		}
	})
}

// List handles GET /api/<name>
// Public: active rows in display order.
func (res *Resource[T, PT]) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts := store.ListOptions{ActiveOnly: true, Search: r.URL.Query().Get("search")}
	if res.Filter != nil {
		if err := res.Filter(r, &opts); err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
	}
	page, paged := parsePagination(r)
	opts.Page, opts.PerPage = page.Page, page.Limit
	withMeta := paged || res.PublicMeta

	out, err := cache.Remember(ctx, res.h.cache, res.Name, cacheVariant(r), func() (*cachedList, error) {
		rows, total, err := res.Repo.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		if res.Redact != nil {
			for i := range rows {
				res.Redact(&rows[i])
			}
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return nil, err
		}
		out := &cachedList{Data: data}
		if withMeta {
			out.Meta = buildPaginationResponse(total, page)
		}
		return out, nil
	})
	if err != nil {
		res.h.WriteStoreError(w, r, err, res.Label)
		return
	}

	WriteSuccess(w, out.Data, out.Meta)
}

// AdminList handles GET /api/<name>/admin/all
// Requires admin: every row, optionally filtered by ?active=true|false.
func (res *Resource[T, PT]) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{Search: q.Get("search")}
	if raw := q.Get("active"); raw != "" {
		active, err := parseBool(raw)
		if err != nil {
			WriteBadRequest(w, "Invalid active filter")
			return
		}
		opts.Filters = map[string]any{"is_active": active}
	}
	page, _ := parsePagination(r)
	opts.Page, opts.PerPage = page.Page, page.Limit

	rows, total, err := res.Repo.List(r.Context(), opts)
	if err != nil {
		res.h.WriteStoreError(w, r, err, res.Label)
		return
	}

	WriteSuccess(w, rows, buildPaginationResponse(total, page))
}

// Get handles GET /api/<name>/{id}
// Public: inactive rows are only visible to admins.
func (res *Resource[T, PT]) Get(w http.ResponseWriter, r *http.Request) {
	activeOnly := middleware.GetAdmin(r) == nil
	m, ok := requireEntityByID(res.h, w, r, res.Label, func(id int64) (*T, error) {
		return res.Repo.Get(r.Context(), id, activeOnly)
	})
	if !ok {
		return
	}
	if activeOnly && res.Redact != nil {
		res.Redact(m)
	}
	WriteSuccess(w, m, nil)
}

// createOrSubmit lets admins create rows and everyone else submit them.
func (res *Resource[T, PT]) createOrSubmit(w http.ResponseWriter, r *http.Request) {
	if middleware.GetAdmin(r) != nil {
		res.Create(w, r)
		return
	}
	res.Submit(w, r)
}

// Create handles POST /api/<name>
// Requires admin. Accepts JSON or multipart bodies.
func (res *Resource[T, PT]) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, files, err := res.h.readPayload(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	p.strip(protectedKeys...)
	p.strip(res.ReadOnly...)
	if !p.has("isActive") {
		p["isActive"] = !res.Inactive
	}

	m, saved, ok := res.build(w, r, p, files, 0)
	if !ok {
		return
	}

	var after []store.TxFunc[T]
	if res.Children != nil {
		after = append(after, res.Children.Replace)
	}
	if err := res.Repo.Create(ctx, m, after...); err != nil {
		storage.DeleteAll(ctx, res.h.storage, saved...)
		res.h.WriteStoreError(w, r, err, res.Label)
		return
	}
	res.invalidate(ctx)

	id := PT(m).GetID()
	slog.Info(res.Label+" created", append([]any{"id", id, "category", "content"}, adminAttrs(r)...)...)

	created, err := res.Repo.Get(ctx, id, false)
	if err != nil {
		res.h.WriteStoreError(w, r, err, res.Label)
		return
	}
	WriteCreated(w, created, capitalizeFirst(res.Label)+" created successfully")
}

// Update handles PUT /api/<name>/{id}
// Requires admin. Fields not sent keep their values; a child list that is
// sent replaces the stored one.
func (res *Resource[T, PT]) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	existing, ok := requireEntityByID(res.h, w, r, res.Label, func(id int64) (*T, error) {
		return res.Repo.Get(ctx, id, false)
	})
	if !ok {
		return
	}
	id := PT(existing).GetID()

	p, files, err := res.h.readPayload(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	p.strip(protectedKeys...)
	p.strip(res.ReadOnly...)

	current, err := toPayload(existing)
	if err != nil {
		res.h.writeInternal(w, r, err, "Failed to update "+res.Label)
		return
	}
	current.strip(res.ReadOnly...)
	before := res.imageURLs(current)

	replaceChildren := res.Children != nil && (p.has(res.Children.Key) || hasChildFiles(files, res.Children))

	merged := maps.Clone(current)
	maps.Copy(merged, p)

	m, saved, ok := res.build(w, r, merged, files, id)
	if !ok {
		return
	}

	var after []store.TxFunc[T]
	if replaceChildren {
		after = append(after, res.Children.Replace)
	}
	if err := res.Repo.Update(ctx, m, after...); err != nil {
		storage.DeleteAll(ctx, res.h.storage, saved...)
		res.h.WriteStoreError(w, r, err, res.Label)
		return
	}
	res.invalidate(ctx)

	updated, err := res.Repo.Get(ctx, id, false)
	if err != nil {
		res.h.WriteStoreError(w, r, err, res.Label)
		return
	}

	if now, err := toPayload(updated); err == nil {
		storage.DeleteAll(ctx, res.h.storage, res.owned(orphaned(before, res.imageURLs(now)))...)
	}

	slog.Info(res.Label+" updated", append([]any{"id", id, "category", "content"}, adminAttrs(r)...)...)
	WriteMessage(w, capitalizeFirst(res.Label)+" updated successfully", updated)
}

// build stores uploads, decodes, prepares and validates a model from p.
// On failure the response is written, stored uploads are removed and ok
// is false. saved lists the URLs of stored uploads.
func (res *Resource[T, PT]) build(w http.ResponseWriter, r *http.Request, p payload, files map[string][]*multipart.FileHeader, id int64) (m *T, saved []string, ok bool) {
	ctx := r.Context()

	fail := func() (*T, []string, bool) {
		storage.DeleteAll(ctx, res.h.storage, saved...)
		return nil, nil, false
	}

	saved, err := res.saveUploads(ctx, p, files)
	if err != nil {
		if fields := uploadFieldError(err); fields != nil {
			WriteValidationError(w, fields)
		} else {
			res.h.writeInternal(w, r, err, "Failed to store upload")
		}
		return fail()
	}

	for _, key := range res.RichText {
		if s, isString := p[key].(string); isString {
			p[key] = util.SanitizeHTML(s)
		}
	}

	m = new(T)
	if err := decodeInto(p, m); err != nil {
		WriteValidationError(w, decodeErrors(err))
		return fail()
	}

	fields := map[string]string{}
	if res.Prepare != nil {
		extra, err := res.Prepare(ctx, m, id)
		if err != nil {
			res.h.WriteStoreError(w, r, err, res.Label)
			return fail()
		}
		maps.Copy(fields, extra)
	}
	for k, v := range res.h.validateStruct(m) {
		if _, exists := fields[k]; !exists {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		WriteValidationError(w, fields)
		return fail()
	}

	return m, saved, true
}

// Toggle handles PATCH /api/<name>/{id}/toggle
// Requires admin. Flips the active flag only.
func (res *Resource[T, PT]) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid "+res.Label+" ID")
		return
	}

	m, err := res.Repo.Toggle(ctx, id)
	if err != nil {
		res.h.WriteStoreError(w, r, err, res.Label)
		return
	}
	res.invalidate(ctx)

	state := "deactivated"
	if PT(m).Active() {
		state = "activated"
	}
	slog.Info(res.Label+" "+state, append([]any{"id", id, "category", "content"}, adminAttrs(r)...)...)
	WriteMessage(w, capitalizeFirst(res.Label)+" "+state+" successfully", m)
}

// Delete handles DELETE /api/<name>/{id}
// Requires admin. Stored images of the row and its children are removed.
func (res *Resource[T, PT]) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteBadRequest(w, "Invalid "+res.Label+" ID")
		return
	}

	deleted, err := res.Repo.Delete(ctx, id)
	if err != nil {
		res.h.WriteStoreError(w, r, err, res.Label)
		return
	}
	res.invalidate(ctx)

	if p, err := toPayload(deleted); err == nil {
		storage.DeleteAll(ctx, res.h.storage, res.owned(res.imageURLs(p))...)
	}

	slog.Info(res.Label+" deleted", append([]any{"id", id, "category", "content"}, adminAttrs(r)...)...)
	WriteMessage(w, capitalizeFirst(res.Label)+" deleted successfully", map[string]int64{"id": id})
}

func (res *Resource[T, PT]) invalidate(ctx context.Context) {
	res.h.cache.InvalidateResource(ctx, res.Name)
	for _, name := range res.Related {
		res.h.cache.InvalidateResource(ctx, name)
	}
}

// uploadError is a client error in the uploaded files.
type uploadError struct {
	field string
	err   error
}

func (e *uploadError) Error() string { return e.field + ": " + e.err.Error() }
func (e *uploadError) Unwrap() error { return e.err }

// uploadFieldError returns field messages for client upload errors and
// nil for server failures.
func uploadFieldError(err error) map[string]string {
	var ue *uploadError
	if !errors.As(err, &ue) {
		return nil
	}
	msg := ue.err.Error()
	switch {
	case errors.Is(ue.err, storage.ErrTooLarge):
		msg = "file is too large"
	case errors.Is(ue.err, storage.ErrUnsupportedType):
		msg = "file must be a JPEG, PNG, GIF, WebP or SVG image"
	case errors.Is(ue.err, storage.ErrEmptyFile):
		msg = "file is empty"
	}
	return map[string]string{ue.field: msg}
}

// isClientUploadError reports whether err was caused by the uploaded file.
func isClientUploadError(err error) bool {
	return errors.Is(err, storage.ErrTooLarge) ||
		errors.Is(err, storage.ErrUnsupportedType) ||
		errors.Is(err, storage.ErrEmptyFile) ||
		errors.Is(err, storage.ErrInvalidResource)
}

// saveUploads stores every file of the request under uploads/<name>/ and
// points the matching payload keys at the stored URLs.
func (res *Resource[T, PT]) saveUploads(ctx context.Context, p payload, files map[string][]*multipart.FileHeader) ([]string, error) {
	var saved []string

	put := func(field string, fh *multipart.FileHeader) (string, error) {
		obj, err := saveFile(ctx, res.h.storage, res.Name, fh)
		if err != nil {
			if isClientUploadError(err) {
				return "", &uploadError{field: field, err: err}
			}
			return "", err
		}
		saved = append(saved, obj.URL)
		return obj.URL, nil
	}

	for _, field := range slices.Sorted(maps.Keys(files)) {
		headers := files[field]
		if len(headers) == 0 {
			continue
		}

		target := field
		if field == "image" && len(res.ImageFields) > 0 {
			target = res.ImageFields[0]
		}

		switch {
		case slices.Contains(res.ImageFields, target):
			url, err := put(target, headers[0])
			if err != nil {
				return saved, err
			}
			p[target] = url

		case slices.Contains(res.ImageLists, target):
			list := stringList(p[target])
			for _, fh := range headers {
				url, err := put(target, fh)
				if err != nil {
					return saved, err
				}
				list = append(list, url)
			}
			p[target] = list

		case res.Children != nil && strings.HasPrefix(field, res.Children.FilePrefix):
			key := res.Children.Key
			index, err := strconv.Atoi(strings.TrimPrefix(field, res.Children.FilePrefix))
			if err != nil {
				return saved, &uploadError{field: field, err: errors.New("invalid index")}
			}
			items, err := p.listOf(key)
			if err != nil {
				return saved, &uploadError{field: key, err: err}
			}
			if index < 0 || index >= len(items) {
				return saved, &uploadError{field: field, err: fmt.Errorf("no %s entry at index %d", key, index)}
			}
			child, isMap := items[index].(map[string]any)
			if !isMap {
				return saved, &uploadError{field: key, err: errors.New("entries must be objects")}
			}
			url, err := put(field, headers[0])
			if err != nil {
				return saved, err
			}
			child[childImageKey] = url
			p[key] = items

		default:
			slog.Debug("ignoring unexpected upload field", "field", field, "resource", res.Name)
		}
	}
	return saved, nil
}

// imageURLs lists every image URL held by p.
func (res *Resource[T, PT]) imageURLs(p payload) []string {
	var urls []string
	for _, key := range res.ImageFields {
		if s, ok := p[key].(string); ok && s != "" {
			urls = append(urls, s)
		}
	}
	for _, key := range res.ImageLists {
		urls = append(urls, stringList(p[key])...)
	}
	if res.Children != nil {
		items, _ := p.listOf(res.Children.Key)
		for _, item := range items {
			if child, ok := item.(map[string]any); ok {
				if s, ok := child[childImageKey].(string); ok && s != "" {
					urls = append(urls, s)
				}
			}
		}
	}
	return urls
}

func hasChildFiles[T any](files map[string][]*multipart.FileHeader, c *Children[T]) bool {
	for field := range files {
		if strings.HasPrefix(field, c.FilePrefix) {
			return true
		}
	}
	return false
}

// saveFile stores one uploaded file.
func saveFile(ctx context.Context, s storage.Storage, resource string, fh *multipart.FileHeader) (*storage.Object, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.Save(ctx, resource, fh.Filename, f)
}

// owned keeps the urls stored under the resource's own upload folder.
// Other uploads may still be referenced elsewhere.
func (res *Resource[T, PT]) owned(urls []string) []string {
	prefix := res.h.storage.URL(res.Name) + "/"
	var out []string
	for _, u := range urls {
		if strings.HasPrefix(u, prefix) {
			out = append(out, u)
		}
	}
	return out
}

// orphaned returns the URLs in before that are not in after.
func orphaned(before, after []string) []string {
	var out []string
	for _, u := range before {
		if !slices.Contains(after, u) {
			out = append(out, u)
		}
	}
	return out
}

// stringList converts a payload value to a list of non-empty strings.
func stringList(v any) []string {
	var out []string
	switch v := v.(type) {
	case string:
		if v = strings.TrimSpace(v); v == "" {
			return nil
		}
		if strings.HasPrefix(v, "[") {
			_ = json.Unmarshal([]byte(v), &out)
			return out
		}
		return []string{v}
	case []string:
		return v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// cacheVariant is the cache key suffix for a public list request.
func cacheVariant(r *http.Request) string {
	return r.URL.Query().Encode()
}
