// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides slug generation, HTML sanitising and safe path
// helpers shared by the API handlers and storage backends.
package util

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds generated slugs.
const MaxSlugLength = 200

// maxSlugSuffix bounds the numeric suffixes UniqueSlug tries.
const maxSlugSuffix = 1000

// Slugify turns a title into a URL slug: "Über Rings & Bands" becomes
// "uber-rings-bands". Marks are stripped, other scripts transliterated,
// and every run of other characters becomes one hyphen. Apostrophes are
// dropped so "Queen's Ring" keeps "queens".
func Slugify(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(stripMarks, s)
	s = strings.ToLower(unidecode.Unidecode(s))

	var b strings.Builder
	b.Grow(len(s))
	gap := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if gap && b.Len() > 0 {
				b.WriteByte('-')
			}
			gap = false
			b.WriteRune(r)
		case r == '\'':
		default:
			gap = true
		}
		if b.Len() >= MaxSlugLength {
			break
		}
	}

	out := b.String()
	if len(out) > MaxSlugLength {
		out = out[:MaxSlugLength]
	}
	return strings.TrimRight(out, "-")
}

// IsValidSlug reports whether s is lowercase ASCII words joined by single
// hyphens and no longer than MaxSlugLength.
func IsValidSlug(s string) bool {
	if s == "" || len(s) > MaxSlugLength {
		return false
	}
	for _, word := range strings.Split(s, "-") {
		if word == "" {
			return false
		}
		for i := 0; i < len(word); i++ {
			c := word[i]
			if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
				return false
			}
		}
	}
	return true
}

// UniqueSlug returns base, or base-N for the lowest N >= 2 that exists
// reports as free.
func UniqueSlug(ctx context.Context, base string, exists func(ctx context.Context, slug string) (bool, error)) (string, error) {
	if base == "" {
		base = "item"
	}
	for n := 1; n < maxSlugSuffix; n++ {
		candidate := base
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free slug for %q", base)
}
