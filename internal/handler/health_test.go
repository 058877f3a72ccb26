// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemcraft/gemcms/internal/cache"
	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/testutil"
	"github.com/gemcraft/gemcms/internal/version"
)

func newHealthHandler(t *testing.T) *HealthHandler {
	t.Helper()
	return NewHealthHandler(testutil.TestDB(t), t.TempDir(), version.Info{Version: "v1.2.3", GitCommit: "abc1234"})
}

func breakDatabase(t *testing.T, h *HealthHandler) {
	t.Helper()
	require.NoError(t, store.Close(h.db))
}

type healthCall struct {
	path  string
	admin bool
}

// serve runs the handler for p and decodes the JSON body into out.
func serve(t *testing.T, fn http.HandlerFunc, p healthCall, out any) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, p.path, nil)
	if p.admin {
		r = middleware.WithAdmin(r, &model.Admin{Base: model.Base{ID: 1}, Username: "admin", Role: model.RoleSuperAdmin})
	}
	w := httptest.NewRecorder()
	fn(w, r)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	return w
}

func TestHealth_Anonymous(t *testing.T) {
	h := newHealthHandler(t)

	for _, path := range []string{"/health", "/health?verbose=true"} {
		var body map[string]any
		w := serve(t, h.Health, healthCall{path: path}, &body)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{"status": StatusHealthy}, body, path)
	}
}

func TestHealth_Admin(t *testing.T) {
	h := newHealthHandler(t)

	var report HealthStatus
	w := serve(t, h.Health, healthCall{path: "/health", admin: true}, &report)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "v1.2.3", report.Version)
	assert.False(t, report.Timestamp.IsZero())
	assert.Equal(t, StatusHealthy, report.Checks["database"].Status)
	assert.Contains(t, report.Checks, "disk")
	assert.NotContains(t, report.Checks, "cache")
	assert.Nil(t, report.System)

	serve(t, h.Health, healthCall{path: "/health?verbose=true", admin: true}, &report)
	require.NotNil(t, report.System)
	assert.NotEmpty(t, report.System.GoVersion)
	assert.Positive(t, report.System.NumCPU)
}

func TestHealth_CacheCheck(t *testing.T) {
	mc := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	h := newHealthHandler(t).WithCache(cache.NewManager(mc, "memory", time.Minute))

	var report HealthStatus
	serve(t, h.Health, healthCall{path: "/health", admin: true}, &report)

	assert.Equal(t, Check{Status: StatusHealthy, Message: "memory", Latency: report.Checks["cache"].Latency}, report.Checks["cache"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := newHealthHandler(t)
	breakDatabase(t, h)

	var public HealthStatusPublic
	w := serve(t, h.Health, healthCall{path: "/health"}, &public)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, StatusDegraded, public.Status)

	var report HealthStatus
	w = serve(t, h.Health, healthCall{path: "/health", admin: true}, &report)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, StatusUnhealthy, report.Checks["database"].Status)
	assert.NotEmpty(t, report.Checks["database"].Message)
}

func TestLiveness(t *testing.T) {
	h := newHealthHandler(t)
	breakDatabase(t, h)

	var body map[string]string
	w := serve(t, h.Liveness, healthCall{path: "/health/live"}, &body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", body["status"])
}

func TestReadiness(t *testing.T) {
	h := newHealthHandler(t)

	var body map[string]string
	w := serve(t, h.Readiness, healthCall{path: "/health/ready"}, &body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "ready"}, body)

	breakDatabase(t, h)

	body = nil
	w = serve(t, h.Readiness, healthCall{path: "/health/ready"}, &body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, map[string]string{"status": "not_ready"}, body)

	body = nil
	serve(t, h.Readiness, healthCall{path: "/health/ready", admin: true}, &body)
	assert.Equal(t, "not_ready", body["status"])
	assert.NotEmpty(t, body["message"])
}

func TestCheckDiskSpace(t *testing.T) {
	h := newHealthHandler(t)

	dirs := map[string]string{
		"existing":      t.TempDir(),
		"missing":       filepath.Join(t.TempDir(), "nonexistent"),
		"not local":     "",
		"handler's own": h.uploadsDir,
	}
	for name, dir := range dirs {
		h.uploadsDir = dir
		assert.Equal(t, StatusHealthy, h.checkDiskSpace().Status, name)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		0:          "0 B",
		500:        "500 B",
		1023:       "1023 B",
		1024:       "1.00 KB",
		1536:       "1.50 KB",
		1 << 20:    "1.00 MB",
		1572864:    "1.50 MB",
		1 << 30:    "1.00 GB",
		1610612736: "1.50 GB",
		5 << 40:    "5120.00 GB",
	}
	for n, want := range tests {
		assert.Equal(t, want, formatBytes(n), "formatBytes(%d)", n)
	}
}

func TestNewHealthHandler(t *testing.T) {
	before := time.Now()
	h := NewHealthHandler(nil, "/tmp/uploads", version.Info{})

	assert.Equal(t, "/tmp/uploads", h.uploadsDir)
	assert.False(t, h.StartTime().Before(before))
}
