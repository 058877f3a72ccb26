// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"fmt"
	"net/http"
	"strings"
)

// SecurityHeadersConfig lists the headers added to every response. Empty
// values are omitted.
type SecurityHeadersConfig struct {
	ContentSecurityPolicy string
	// StrictTransportSecurity stays empty in development so browsers do not
	// pin localhost to HTTPS.
	StrictTransportSecurity string
	FrameOptions            string
	ReferrerPolicy          string
	PermissionsPolicy       string
	// CrossOriginResourcePolicy is "cross-origin" so the storefront can
	// embed uploaded images.
	CrossOriginResourcePolicy string
}

// apiCSP allows nothing but images: the API only ever serves JSON and
// uploaded files.
var apiCSP = []string{
	"default-src 'none'",
	"img-src 'self' data:",
	"base-uri 'none'",
	"form-action 'none'",
	"frame-ancestors 'none'",
}

var deniedFeatures = []string{"browsing-topics", "camera", "geolocation", "microphone", "payment", "usb"}

// DefaultSecurityHeadersConfig returns headers for a JSON API that also
// serves uploaded images.
func DefaultSecurityHeadersConfig(isDev bool) SecurityHeadersConfig {
	cfg := SecurityHeadersConfig{
		ContentSecurityPolicy:     strings.Join(apiCSP, "; "),
		FrameOptions:              "DENY",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		PermissionsPolicy:         denyFeatures(deniedFeatures...),
		CrossOriginResourcePolicy: "cross-origin",
	}
	if !isDev {
		cfg.StrictTransportSecurity = hsts(365*24*60*60, true)
	}
	return cfg
}

func hsts(maxAge int, subdomains bool) string {
	v := fmt.Sprintf("max-age=%d", maxAge)
	if subdomains {
		v += "; includeSubDomains"
	}
	return v
}

// denyFeatures builds a Permissions-Policy disabling each feature.
func denyFeatures(features ...string) string {
	parts := make([]string, len(features))
	for i, f := range features {
		parts[i] = f + "=()"
	}
	return strings.Join(parts, ", ")
}

// SecurityHeaders sets the configured headers before calling next.
func SecurityHeaders(cfg SecurityHeadersConfig) func(http.Handler) http.Handler {
	headers := [][2]string{{"X-Content-Type-Options", "nosniff"}}
	for _, kv := range [][2]string{
		{"Content-Security-Policy", cfg.ContentSecurityPolicy},
		{"Strict-Transport-Security", cfg.StrictTransportSecurity},
		{"X-Frame-Options", cfg.FrameOptions},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Permissions-Policy", cfg.PermissionsPolicy},
		{"Cross-Origin-Resource-Policy", cfg.CrossOriginResourcePolicy},
	} {
		if kv[1] != "" {
			headers = append(headers, kv)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range headers {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}
