// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned when a storage key or path escapes its base.
var ErrUnsafePath = errors.New("unsafe path")

// FileExt returns the lower-cased extension of the base name of filename,
// ignoring any directory components the client sent.
func FileExt(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == ".." || base == "/" {
		return ""
	}
	return strings.ToLower(filepath.Ext(base))
}

// CleanKey normalizes a slash-separated storage key such as
// "products/1f0c.jpg". Absolute keys and keys that climb out of the root
// are rejected.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrUnsafePath
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrUnsafePath
	}
	return cleaned, nil
}

// SafeJoinPath resolves key below basePath and verifies the result stays
// within basePath (with a trailing separator so /uploads-other does not
// match /uploads).
func SafeJoinPath(basePath, key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	absBase, err := filepath.Abs(filepath.Clean(basePath))
	if err != nil {
		return "", err
	}
	absTarget := filepath.Join(absBase, filepath.FromSlash(cleaned))

	if absTarget != absBase && !strings.HasPrefix(absTarget, absBase+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return absTarget, nil
}
