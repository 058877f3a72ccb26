package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/model"
)

// HeroStore keeps at most one hero active.
type HeroStore struct {
	*Repository[model.Hero]
}

// NewHeroStore creates a HeroStore.
func NewHeroStore(db *gorm.DB) *HeroStore {
	return &HeroStore{Repository: NewRepository[model.Hero](db, WithExclusiveActive(), WithSearch("title"))}
}

// Activate makes id the only active hero.
func (s *HeroStore) Activate(ctx context.Context, id int64) (*model.Hero, error) {
	return s.SetActive(ctx, id, true)
}

// ActiveHero returns the active hero.
func (s *HeroStore) ActiveHero(ctx context.Context) (*model.Hero, error) {
	return s.First(ctx, ListOptions{ActiveOnly: true, Order: "updated_at DESC, id DESC"})
}
