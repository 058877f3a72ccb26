package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTransaction runs fn in a transaction, committing when it returns nil.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// ReplaceChildren deletes every child of parentID and inserts children in
// their place. The new rows get fresh primary keys.
func ReplaceChildren[C any](tx *gorm.DB, foreignKey string, parentID int64, children []C) error {
	if err := tx.Where(foreignKey+" = ?", parentID).Delete(new(C)).Error; err != nil {
		return fmt.Errorf("deleting children: %w", TranslateError(err))
	}
	if len(children) == 0 {
		return nil
	}
	if err := tx.Create(&children).Error; err != nil {
		return fmt.Errorf("creating children: %w", TranslateError(err))
	}
	return nil
}
