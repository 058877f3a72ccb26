// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/model"
)

// AdminStore persists dashboard accounts.
type AdminStore struct {
	db *gorm.DB
}

// NewAdminStore creates an AdminStore.
func NewAdminStore(db *gorm.DB) *AdminStore {
	return &AdminStore{db: db}
}

// Get returns the admin with the given id.
func (s *AdminStore) Get(ctx context.Context, id int64) (*model.Admin, error) {
	var a model.Admin
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, TranslateError(err)
	}
	return &a, nil
}

// GetByLogin returns the admin whose email or username equals login.
// Emails compare case-insensitively.
func (s *AdminStore) GetByLogin(ctx context.Context, login string) (*model.Admin, error) {
	login = strings.TrimSpace(login)
	var a model.Admin
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ? OR username = ?", strings.ToLower(login), login).
		First(&a).Error
	if err != nil {
		return nil, TranslateError(err)
	}
	return &a, nil
}

// List returns every admin, newest first.
func (s *AdminStore) List(ctx context.Context) ([]model.Admin, error) {
	admins := make([]model.Admin, 0)
	if err := s.db.WithContext(ctx).Order(OrderNewest).Find(&admins).Error; err != nil {
		return nil, TranslateError(err)
	}
	return admins, nil
}

// Count returns the number of admins.
func (s *AdminStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Admin{}).Count(&n).Error; err != nil {
		return 0, TranslateError(err)
	}
	return n, nil
}

// CountByRole returns the number of admins with role.
func (s *AdminStore) CountByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Admin{}).Where("role = ?", role).Count(&n).Error; err != nil {
		return 0, TranslateError(err)
	}
	return n, nil
}

// Taken reports which of email and username are already used.
func (s *AdminStore) Taken(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Admin{}).
		Where("LOWER(email) = ?", strings.ToLower(email)).Count(&n).Error; err != nil {
		return false, false, TranslateError(err)
	}
	emailTaken = n > 0

	if err := s.db.WithContext(ctx).Model(&model.Admin{}).
		Where("username = ?", username).Count(&n).Error; err != nil {
		return false, false, TranslateError(err)
	}
	usernameTaken = n > 0
	return emailTaken, usernameTaken, nil
}

// Create inserts a new admin. Email is stored lower-cased.
func (s *AdminStore) Create(ctx context.Context, a *model.Admin) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Username = strings.TrimSpace(a.Username)
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("creating admin: %w", TranslateError(err))
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (s *AdminStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res := s.db.WithContext(ctx).Model(&model.Admin{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful login.
func (s *AdminStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return TranslateError(s.db.WithContext(ctx).Model(&model.Admin{}).
		Where("id = ?", id).UpdateColumn("last_login_at", at).Error)
}

// Delete removes an admin.
func (s *AdminStore) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.Admin{}, id)
	if res.Error != nil {
		return TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
