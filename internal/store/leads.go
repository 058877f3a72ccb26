// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/model"
)

// LeadStore persists storefront leads.
type LeadStore struct {
	*Repository[model.Lead]
}

// NewLeadStore creates a LeadStore.
func NewLeadStore(db *gorm.DB) *LeadStore {
	return &LeadStore{
		Repository: NewRepository[model.Lead](db,
			WithOrder(OrderNewest),
			WithSearch("name", "email", "phone"),
		),
	}
}

// SetStatus changes the status of a lead.
func (s *LeadStore) SetStatus(ctx context.Context, id int64, status string) (*model.Lead, error) {
	res := s.db.WithContext(ctx).Model(&model.Lead{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id, false)
}

// PurgeClosed deletes closed leads last updated before cutoff.
func (s *LeadStore) PurgeClosed(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.LeadStatusClosed, cutoff.UTC()).
		Delete(&model.Lead{})
	if res.Error != nil {
		return 0, fmt.Errorf("purging leads: %w", TranslateError(res.Error))
	}
	return res.RowsAffected, nil
}
