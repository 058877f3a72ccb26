// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package storage saves uploaded images on the local disk or in S3 and
// resolves their public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"

	"github.com/google/uuid"
)

// Upload errors.
var (
	ErrTooLarge        = errors.New("file is too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidResource = errors.New("invalid upload resource")
	ErrEmptyFile       = errors.New("file is empty")
)

// Object describes a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// Backend is where file bytes live.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
	// URL returns the public URL of key.
	URL(key string) string
	// KeyFromURL returns the key behind a URL this backend produced. ok is
	// false for foreign URLs, which callers must leave alone.
	KeyFromURL(rawURL string) (key string, ok bool)
}

// Storage saves and deletes uploaded images.
type Storage interface {
	Save(ctx context.Context, resource, filename string, r io.Reader) (*Object, error)
	Delete(ctx context.Context, url string) error
	URL(key string) string
}

var resourcePattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Uploader runs uploads through the image pipeline and writes them to a backend.
type Uploader struct {
	backend  Backend
	pipeline *ImagePipeline
	newName  func() string
}

// NewUploader creates an Uploader.
func NewUploader(backend Backend, pipeline *ImagePipeline) *Uploader {
	return &Uploader{
		backend:  backend,
		pipeline: pipeline,
		newName:  func() string { return uuid.NewString() },
	}
}

// Save validates and processes the upload, then stores it as
// <resource>/<uuid><ext>.
func (u *Uploader) Save(ctx context.Context, resource, filename string, r io.Reader) (*Object, error) {
	if !resourcePattern.MatchString(resource) {
		return nil, ErrInvalidResource
	}

	img, err := u.pipeline.Process(r, filename)
	if err != nil {
		return nil, err
	}

	key := path.Join(resource, u.newName()+img.Ext)
	if err := u.backend.Put(ctx, key, img.Data, img.ContentType); err != nil {
		return nil, fmt.Errorf("storing %s: %w", key, err)
	}

	slog.Debug("upload stored", "key", key, "size", len(img.Data), "content_type", img.ContentType)

	return &Object{
		Key:         key,
		URL:         u.backend.URL(key),
		Size:        int64(len(img.Data)),
		ContentType: img.ContentType,
		Width:       img.Width,
		Height:      img.Height,
	}, nil
}

// Delete removes the file behind url. URLs that do not belong to the
// backend, such as external image links, are ignored.
func (u *Uploader) Delete(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	key, ok := u.backend.KeyFromURL(url)
	if !ok {
		return nil
	}
	if err := u.backend.Remove(ctx, key); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL of key.
func (u *Uploader) URL(key string) string {
	return u.backend.URL(key)
}

// DeleteAll removes every url, logging failures instead of returning them.
// Used after a database write has committed, when the response must not fail.
func DeleteAll(ctx context.Context, s Storage, urls ...string) {
	for _, url := range urls {
		if err := s.Delete(ctx, url); err != nil {
			slog.Warn("failed to delete stored file", "url", url, "error", err, "category", "content")
		}
	}
}
