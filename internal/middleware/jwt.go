// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gemcraft/gemcms/internal/auth"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyAdmin holds the authenticated *model.Admin.
const ContextKeyAdmin ContextKey = "admin"

// AdminLoader loads the admin behind a token.
type AdminLoader interface {
	Get(ctx context.Context, id int64) (*model.Admin, error)
}

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// bearerToken extracts the token from the Authorization header.
// ok is false when the header is missing; err is set when it is malformed.
func bearerToken(r *http.Request) (token string, ok bool, err error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false, nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", true, errors.New("invalid Authorization header format, use: Bearer <token>")
	}
	return strings.TrimSpace(parts[1]), true, nil
}

// authenticate resolves the admin for a request. It returns a status and
// message describing the failure when the admin cannot be resolved.
func authenticate(r *http.Request, tokens TokenParser, admins AdminLoader) (*model.Admin, int, string) {
	raw, present, err := bearerToken(r)
	if !present {
		return nil, http.StatusUnauthorized, "Not authorized, no token"
	}
	if err != nil {
		return nil, http.StatusUnauthorized, err.Error()
	}

	claims, err := tokens.Parse(raw)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, http.StatusUnauthorized, "Not authorized, token expired"
		}
		return nil, http.StatusUnauthorized, "Not authorized, token failed"
	}

	admin, err := admins.Get(r.Context(), claims.AdminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, http.StatusUnauthorized, "Not authorized, admin no longer exists"
		}
		slog.Error("failed to load admin for token", "error", err, "admin_id", claims.AdminID)
		return nil, http.StatusInternalServerError, "Failed to validate token"
	}
	return admin, 0, ""
}

// JWTAuth creates middleware that requires a valid bearer token and loads
// the admin it was issued to into the request context.
func JWTAuth(tokens TokenParser, admins AdminLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, status, msg := authenticate(r, tokens, admins)
			if admin == nil {
				code := CodeUnauthorized
				if status == http.StatusInternalServerError {
					code = CodeInternal
				}
				WriteAPIError(w, status, code, msg)
				return
			}
			next.ServeHTTP(w, WithAdmin(r, admin))
		})
	}
}

// OptionalJWTAuth adds the admin to the context when a valid token is sent
// and otherwise serves the request anonymously.
func OptionalJWTAuth(tokens TokenParser, admins AdminLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if admin, _, _ := authenticate(r, tokens, admins); admin != nil {
				r = WithAdmin(r, admin)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithAdmin returns a copy of r carrying admin.
func WithAdmin(r *http.Request, admin *model.Admin) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ContextKeyAdmin, admin))
}

// GetAdmin retrieves the authenticated admin from the request context.
// Returns nil for anonymous requests.
func GetAdmin(r *http.Request) *model.Admin {
	admin, _ := r.Context().Value(ContextKeyAdmin).(*model.Admin)
	return admin
}

// RequireRole creates middleware that only lets admins with one of roles through.
// This should be used after JWTAuth middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin := GetAdmin(r)
			if admin == nil {
				WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Not authorized")
				return
			}
			for _, role := range roles {
				if admin.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			slog.Warn("admin lacks required role", "admin_id", admin.ID, "role", admin.Role, "path", r.URL.Path)
			WriteAPIError(w, http.StatusForbidden, CodeForbidden, "Not authorized for this action")
		})
	}
}
