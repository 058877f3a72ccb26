// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/auth"
	"github.com/gemcraft/gemcms/internal/cache"
	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/storage"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/testutil"
	"github.com/gemcraft/gemcms/internal/version"
)

const testPassword = "correct-horse-battery"

// testEnv is a fully wired API over a temporary SQLite database.
type testEnv struct {
	h          *Handler
	router     chi.Router
	db         *gorm.DB
	tokens     *auth.TokenManager
	uploadsDir string
	superAdmin *model.Admin
	token      string // bearer token of superAdmin
}

type testEnvOption func(*Config)

func withLoginProtection(lp *middleware.LoginProtection) testEnvOption {
	return func(c *Config) { c.LoginProtection = lp }
}

func withoutCache() testEnvOption {
	return func(c *Config) { c.Cache = nil }
}

func newTestEnv(t *testing.T, opts ...testEnvOption) *testEnv {
	t.Helper()

	db := testutil.TestDB(t)

	uploadsDir := t.TempDir()
	local, err := storage.NewLocalStorage(uploadsDir, "")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	tokens := auth.NewTokenManager(strings.Repeat("k", 32), time.Hour, "gemcms-test")
	mem := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = mem.Close() })

	lp := middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		IPRateLimit:       100,
		IPBurst:           100,
		MaxFailedAttempts: 3,
		LockoutDuration:   time.Minute,
		AttemptWindow:     time.Minute,
	})
	t.Cleanup(lp.Stop)

	cfg := Config{
		DB:              db,
		Tokens:          tokens,
		Storage:         storage.NewUploader(local, storage.NewImagePipeline(1<<20, 0)),
		Cache:           cache.NewManager(mem, "memory", time.Minute),
		LoginProtection: lp,
		MaxUploadSize:   1 << 20,
		LeadRateLimit:   100,
		LeadBurst:       100,
		Version:         version.Info{Version: "v0.1.0", GitCommit: "abc1234"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := NewHandler(cfg)
	r := chi.NewRouter()
	r.Mount("/api", h.Routes())

	env := &testEnv{h: h, router: r, db: db, tokens: tokens, uploadsDir: uploadsDir}
	env.superAdmin = env.createAdmin(t, "owner", "owner@example.com", model.RoleSuperAdmin)
	env.token = env.tokenFor(t, env.superAdmin)
	return env
}

// createAdmin stores an admin whose password is testPassword.
func (e *testEnv) createAdmin(t *testing.T, username, email, role string) *model.Admin {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	a := &model.Admin{Name: username, Username: username, Email: email, PasswordHash: string(hash), Role: role}
	if err := store.NewAdminStore(e.db).Create(context.Background(), a); err != nil {
		t.Fatalf("creating admin: %v", err)
	}
	return a
}

func (e *testEnv) tokenFor(t *testing.T, a *model.Admin) string {
	t.Helper()
	token, _, err := e.tokens.Issue(a)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token
}

// do sends a JSON request through the router. body may be nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// doMultipart sends a multipart form. files maps field names to file contents.
func (e *testEnv) doMultipart(t *testing.T, method, path string, fields map[string]string, files map[string][]byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing field: %v", err)
		}
	}
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("writing form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// envelope is the decoded response body with raw data.
type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
	Meta    *Meta             `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", w.Body.String(), err)
	}
	return env
}

// unmarshalData decodes the data field of the response into v.
func unmarshalData(t *testing.T, w *httptest.ResponseRecorder, v any) envelope {
	t.Helper()
	env := decodeEnvelope(t, w)
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to unmarshal data %s: %v", env.Data, err)
	}
	return env
}

func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d; want %d; body: %s", w.Code, want, w.Body.String())
	}
}

// requestWithURLParams adds chi URL parameters to a request.
func requestWithURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// pngBytes returns a small encoded PNG.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := range 4 {
		for y := range 3 {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: 120, B: uint8(y * 80), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}
