package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/model"
)

// PopupStore adds display-window queries to the popup repository.
type PopupStore struct {
	*Repository[model.Popup]
}

// NewPopupStore creates a PopupStore.
func NewPopupStore(db *gorm.DB) *PopupStore {
	return &PopupStore{Repository: NewRepository[model.Popup](db, WithSearch("title"))}
}

// Current returns the active popups whose window contains now.
func (s *PopupStore) Current(ctx context.Context, now time.Time) ([]model.Popup, error) {
	now = now.UTC()
	popups, _, err := s.List(ctx, ListOptions{
		ActiveOnly: true,
		Scopes: []Scope{func(db *gorm.DB) *gorm.DB {
			return db.Where("(starts_at IS NULL OR starts_at <= ?) AND (ends_at IS NULL OR ends_at >= ?)", now, now)
		}},
	})
	return popups, err
}

// DeactivateExpired turns off active popups whose window ended before now.
func (s *PopupStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	res := s.db.WithContext(ctx).Model(&model.Popup{}).
		Where("is_active = ? AND ends_at IS NOT NULL AND ends_at < ?", true, now).
		Update("is_active", false)
	return res.RowsAffected, TranslateError(res.Error)
}
