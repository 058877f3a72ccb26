// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gemcraft/gemcms/internal/util"
)

// UploadsRoute is the URL path the local backend is served under.
const UploadsRoute = "/uploads"

// LocalStorage keeps files below a directory served at UploadsRoute.
type LocalStorage struct {
	dir     string
	baseURL string // e.g. https://api.example.com, may be empty
}

// NewLocalStorage creates a LocalStorage rooted at dir. baseURL prefixes
// generated URLs; when empty URLs are root-relative.
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &LocalStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the root directory.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Put writes data to key, creating parent directories.
func (s *LocalStorage) Put(_ context.Context, key string, data []byte, _ string) error {
	target, err := util.SafeJoinPath(s.dir, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial image
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming file: %w", err)
	}
	return nil
}

// Remove deletes key. Missing files are not an error.
func (s *LocalStorage) Remove(_ context.Context, key string) error {
	target, err := util.SafeJoinPath(s.dir, key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns the public URL of key.
func (s *LocalStorage) URL(key string) string {
	return s.baseURL + UploadsRoute + "/" + key
}

// KeyFromURL accepts both absolute URLs under baseURL and root-relative
// /uploads/... paths.
func (s *LocalStorage) KeyFromURL(rawURL string) (string, bool) {
	p := rawURL
	if s.baseURL != "" && strings.HasPrefix(rawURL, s.baseURL+"/") {
		p = strings.TrimPrefix(rawURL, s.baseURL)
	} else if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return "", false
	}

	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	rest, ok := strings.CutPrefix(p, UploadsRoute+"/")
	if !ok {
		return "", false
	}
	key, err := util.CleanKey(rest)
	if err != nil {
		return "", false
	}
	return key, true
}
