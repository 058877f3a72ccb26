// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for JWT authentication,
// role checks, rate limiting and response hardening.
package middleware

import (
	"encoding/json"
	"net/http"
)

// APIError is the JSON error envelope written by middleware. It matches the
// shape the API handlers use for failures.
type APIError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Error codes written by middleware.
const (
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeRateLimited  = "rate_limit_exceeded"
	CodeTimeout      = "timeout"
	CodeInternal     = "internal_error"
)

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIError{Message: message, Error: code})
}
