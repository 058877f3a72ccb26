package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/model"
)

// EventStore persists event log records.
type EventStore struct {
	*Repository[model.EventLog]
}

// NewEventStore creates an EventStore.
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{
		Repository: NewRepository[model.EventLog](db,
			WithOrder(OrderNewest),
			WithSearch("message"),
		),
	}
}

// Add inserts an event without opening a transaction.
func (s *EventStore) Add(ctx context.Context, e *model.EventLog) error {
	return TranslateError(s.db.WithContext(ctx).Create(e).Error)
}

// DeleteBefore removes events older than cutoff.
func (s *EventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&model.EventLog{})
	return res.RowsAffected, TranslateError(res.Error)
}
