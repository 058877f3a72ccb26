// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides HTTP handlers that live outside the /api router.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/cache"
	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/version"
)

// Health states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const (
	checkTimeout  = 2 * time.Second
	minFreeUpload = 100 << 20
)

// HealthHandler serves the /health endpoints.
type HealthHandler struct {
	db         *gorm.DB
	uploadsDir string
	cache      *cache.Manager
	version    version.Info
	startTime  time.Time
}

// NewHealthHandler creates a health handler. uploadsDir is empty when
// uploads go to S3.
func NewHealthHandler(db *gorm.DB, uploadsDir string, v version.Info) *HealthHandler {
	return &HealthHandler{db: db, uploadsDir: uploadsDir, version: v, startTime: time.Now()}
}

// WithCache adds a check of the response cache backend.
func (h *HealthHandler) WithCache(m *cache.Manager) *HealthHandler {
	h.cache = m
	return h
}

// StartTime returns when the handler was created.
func (h *HealthHandler) StartTime() time.Time {
	return h.startTime
}

// HealthStatusPublic is all anonymous callers see.
type HealthStatusPublic struct {
	Status string `json:"status"`
}

// HealthStatus is the detailed report shown to admins.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check is the result of one dependency check.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

func (c Check) ok() bool {
	return c.Status == StatusHealthy
}

// SystemInfo describes the running process.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	NumCPU       int    `json:"num_cpus"`
	MemAlloc     string `json:"mem_alloc"`
	MemSys       string `json:"mem_sys"`
}

// runChecks checks every dependency and folds the results into one state.
func (h *HealthHandler) runChecks(ctx context.Context) (map[string]Check, string) {
	checks := map[string]Check{
		"database": h.checkDatabase(ctx),
		"disk":     h.checkDiskSpace(),
	}
	if h.cache != nil {
		checks["cache"] = h.checkCache(ctx)
	}

	overall := StatusHealthy
	for _, c := range checks {
		if !c.ok() {
			overall = StatusDegraded
		}
	}
	return checks, overall
}

// Health handles GET /health. Anonymous callers get the overall state only;
// the route runs behind OptionalJWTAuth so admins get the full report.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks, overall := h.runChecks(r.Context())

	code := http.StatusOK
	if overall != StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	if middleware.GetAdmin(r) == nil {
		writeJSON(w, code, HealthStatusPublic{Status: overall})
		return
	}

	report := HealthStatus{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version.Version,
		Checks:    checks,
	}
	if r.URL.Query().Get("verbose") == "true" {
		report.System = systemInfo()
	}
	writeJSON(w, code, report)
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready. Only the database gates readiness.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	db := h.checkDatabase(r.Context())
	if db.ok() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	body := map[string]string{"status": "not_ready"}
	if middleware.GetAdmin(r) != nil {
		body["message"] = db.Message
	}
	writeJSON(w, http.StatusServiceUnavailable, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// timed runs fn under checkTimeout and reports how long it took.
func timed(ctx context.Context, okMessage string, fn func(context.Context) error) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	latency := time.Since(start).String()
	if err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error(), Latency: latency}
	}
	return Check{Status: StatusHealthy, Message: okMessage, Latency: latency}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	return timed(ctx, "Connected", func(ctx context.Context) error {
		return store.Ping(ctx, h.db)
	})
}

func (h *HealthHandler) checkCache(ctx context.Context) Check {
	return timed(ctx, h.cache.Backend(), h.cache.Ping)
}

// checkDiskSpace reports free space on the uploads volume.
func (h *HealthHandler) checkDiskSpace() Check {
	if h.uploadsDir == "" {
		return Check{Status: StatusHealthy, Message: "Uploads are not stored locally"}
	}
	if _, err := os.Stat(h.uploadsDir); os.IsNotExist(err) {
		return Check{Status: StatusHealthy, Message: "Uploads directory does not exist yet"}
	}

	var fs syscall.Statfs_t
	if err := syscall.Statfs(h.uploadsDir, &fs); err != nil {
		return Check{Status: StatusUnhealthy, Message: "Failed to check disk space: " + err.Error()}
	}

	free := fs.Bavail * uint64(fs.Bsize)
	if free < minFreeUpload {
		return Check{Status: StatusDegraded, Message: "Low disk space: " + formatBytes(free) + " available"}
	}
	return Check{Status: StatusHealthy, Message: formatBytes(free) + " available"}
}

func systemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     formatBytes(m.Alloc),
		MemSys:       formatBytes(m.Sys),
	}
}

// formatBytes renders n with a binary unit, e.g. "1.50 MB".
func formatBytes(n uint64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n) / 1024
	for _, unit := range []string{"KB", "MB"} {
		if value < 1024 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.2f GB", value)
}
