// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gemcraft/gemcms/internal/auth"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
)

const testSecret = "test-secret-with-enough-length-for-hs256!"

type fakeAdmins map[int64]*model.Admin

func (f fakeAdmins) Get(_ context.Context, id int64) (*model.Admin, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, store.ErrNotFound
}

type failingAdmins struct{}

func (failingAdmins) Get(context.Context, int64) (*model.Admin, error) {
	return nil, errors.New("db down")
}

func newTestAdmin(id int64, role string) *model.Admin {
	a := &model.Admin{Username: "admin", Role: role}
	a.ID = id
	return a
}

func issue(t *testing.T, tm *auth.TokenManager, a *model.Admin) string {
	t.Helper()
	tok, _, err := tm.Issue(a)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}

func TestJWTAuth(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Hour, "gemcms")
	admin := newTestAdmin(1, model.RoleAdmin)
	admins := fakeAdmins{1: admin}
	valid := issue(t, tm, admin)
	ghost := issue(t, tm, newTestAdmin(99, model.RoleAdmin))
	expired := issue(t, auth.NewTokenManager(testSecret, -time.Minute, "gemcms"), admin)

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized},
		{"deleted admin", "Bearer " + ghost, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *model.Admin
			h := JWTAuth(tm, admins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetAdmin(r)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode == http.StatusOK && seen != admin {
				t.Error("admin was not stored in the request context")
			}
		})
	}
}

func TestJWTAuthLoaderFailure(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Hour, "gemcms")
	h := JWTAuth(tm, failingAdmins{})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tm, newTestAdmin(1, model.RoleAdmin)))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestOptionalJWTAuth(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Hour, "gemcms")
	admin := newTestAdmin(1, model.RoleAdmin)

	var seen *model.Admin
	h := OptionalJWTAuth(tm, fakeAdmins{1: admin})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAdmin(r)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/heroes", nil))
	if rr.Code != http.StatusOK || seen != nil {
		t.Fatalf("anonymous: status=%d admin=%v", rr.Code, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/heroes", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || seen != nil {
		t.Fatalf("bad token: status=%d admin=%v", rr.Code, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/heroes", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tm, admin))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != admin {
		t.Error("valid token should attach the admin")
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(model.RoleSuperAdmin)(okHandler())

	tests := []struct {
		name     string
		admin    *model.Admin
		wantCode int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"admin", newTestAdmin(2, model.RoleAdmin), http.StatusForbidden},
		{"super admin", newTestAdmin(1, model.RoleSuperAdmin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admins", nil)
			if tt.admin != nil {
				req = WithAdmin(req, tt.admin)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}
