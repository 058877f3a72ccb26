// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/storage"
)

// uploadFields are the multipart fields accepted by Upload, in order of preference.
var uploadFields = []string{"file", "image", "upload"}

// Upload handles POST /api/uploads/{resource}
// Requires admin. Stores a single image under uploads/<resource>/ and
// returns its URL; used by the rich-text editor.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	_, files, err := h.readPayload(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	var field string
	for _, name := range uploadFields {
		if len(files[name]) > 0 {
			field = name
			break
		}
	}
	if field == "" {
		WriteValidationError(w, map[string]string{"file": "file is required"})
		return
	}

	obj, err := saveFile(r.Context(), h.storage, resource, files[field][0])
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidResource):
			WriteBadRequest(w, "Invalid upload resource")
		case isClientUploadError(err):
			WriteValidationError(w, uploadFieldError(&uploadError{field: "file", err: err}))
		default:
			h.writeInternal(w, r, err, "Failed to store upload")
		}
		return
	}

	slog.Info("file uploaded", append([]any{"key", obj.Key, "size", obj.Size, "category", model.EventCategoryContent}, adminAttrs(r)...)...)
	WriteCreated(w, obj, "File uploaded successfully")
}
