// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Orderings used by repositories.
const (
	OrderCurated = "sort_order ASC, created_at DESC, id DESC"
	OrderNewest  = "created_at DESC, id DESC"
)

// Scope narrows a query.
type Scope = func(*gorm.DB) *gorm.DB

// ListOptions controls List, Count and First.
type ListOptions struct {
	ActiveOnly bool           // Only rows with is_active = true
	Search     string         // Case-insensitive match against the search columns
	Filters    map[string]any // column = value
	Scopes     []Scope
	Page       int // 1-based; ignored when PerPage is 0
	PerPage    int // 0 returns every row
	Order      string
}

// MaxPage is the highest page a list query reads.
const MaxPage = 100000

// Offset returns the row offset for the requested page. Pages beyond
// MaxPage read MaxPage.
func (o ListOptions) Offset() int {
	if o.Page < 1 {
		return 0
	}
	return (min(o.Page, MaxPage) - 1) * o.PerPage
}

// TxFunc runs inside the transaction of a write, after the row itself was written.
type TxFunc[T any] func(tx *gorm.DB, m *T) error

type preload struct {
	name  string
	order string
}

// Repository is generic CRUD over one model.
type Repository[T any] struct {
	db        *gorm.DB
	order     string
	search    []string
	preloads  []preload
	exclusive bool
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*repoConfig)

type repoConfig struct {
	order     string
	search    []string
	preloads  []preload
	exclusive bool
}

// WithOrder sets the default ordering.
func WithOrder(order string) RepositoryOption {
	return func(c *repoConfig) { c.order = order }
}

// WithSearch sets the columns matched by ListOptions.Search.
func WithSearch(columns ...string) RepositoryOption {
	return func(c *repoConfig) { c.search = columns }
}

// WithPreload loads an association on every read, ordered by order.
func WithPreload(association, order string) RepositoryOption {
	return func(c *repoConfig) { c.preloads = append(c.preloads, preload{association, order}) }
}

// WithExclusiveActive keeps at most one row active: any write that leaves a
// row active deactivates every other row in the same transaction.
func WithExclusiveActive() RepositoryOption {
	return func(c *repoConfig) { c.exclusive = true }
}

// NewRepository creates a repository for T.
func NewRepository[T any](db *gorm.DB, opts ...RepositoryOption) *Repository[T] {
	cfg := repoConfig{order: OrderCurated}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Repository[T]{
		db:        db,
		order:     cfg.order,
		search:    cfg.search,
		preloads:  cfg.preloads,
		exclusive: cfg.exclusive,
	}
}

// DB returns the underlying connection.
func (r *Repository[T]) DB() *gorm.DB {
	return r.db
}

func (r *Repository[T]) query(ctx context.Context, opts ListOptions) *gorm.DB {
	q := r.db.WithContext(ctx).Model(new(T))
	if opts.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	for col, val := range opts.Filters {
		q = q.Where(clause.Eq{Column: clause.Column{Name: col}, Value: val})
	}
	if term := strings.TrimSpace(opts.Search); term != "" && len(r.search) > 0 {
		like := "%" + strings.ToLower(term) + "%"
		conds := make([]string, len(r.search))
		args := make([]any, len(r.search))
		for i, col := range r.search {
			conds[i] = "LOWER(" + col + ") LIKE ?"
			args[i] = like
		}
		q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	for _, scope := range opts.Scopes {
		q = q.Scopes(scope)
	}
	return q
}

func (r *Repository[T]) withPreloads(q *gorm.DB) *gorm.DB {
	for _, p := range r.preloads {
		order := p.order
		q = q.Preload(p.name, func(db *gorm.DB) *gorm.DB {
			if order == "" {
				return db
			}
			return db.Order(order)
		})
	}
	return q
}

// List returns the matching rows and the total count before paging.
func (r *Repository[T]) List(ctx context.Context, opts ListOptions) ([]T, int64, error) {
	q := r.query(ctx, opts)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting rows: %w", TranslateError(err))
	}

	order := opts.Order
	if order == "" {
		order = r.order
	}
	q = r.withPreloads(q).Order(order)
	if opts.PerPage > 0 {
		q = q.Offset(opts.Offset()).Limit(opts.PerPage)
	}

	rows := make([]T, 0)
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("listing rows: %w", TranslateError(err))
	}
	return rows, total, nil
}

// Count returns the number of matching rows.
func (r *Repository[T]) Count(ctx context.Context, opts ListOptions) (int64, error) {
	var total int64
	if err := r.query(ctx, opts).Count(&total).Error; err != nil {
		return 0, TranslateError(err)
	}
	return total, nil
}

// First returns the first matching row in repository order.
func (r *Repository[T]) First(ctx context.Context, opts ListOptions) (*T, error) {
	order := opts.Order
	if order == "" {
		order = r.order
	}
	m := new(T)
	if err := r.withPreloads(r.query(ctx, opts)).Order(order).First(m).Error; err != nil {
		return nil, TranslateError(err)
	}
	return m, nil
}

// Get returns the row with the given id.
func (r *Repository[T]) Get(ctx context.Context, id int64, activeOnly bool) (*T, error) {
	m := new(T)
	q := r.withPreloads(r.db.WithContext(ctx))
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.First(m, id).Error; err != nil {
		return nil, TranslateError(err)
	}
	return m, nil
}

// Exists reports whether a row with column = value exists, ignoring excludeID.
func (r *Repository[T]) Exists(ctx context.Context, column string, value any, excludeID int64) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(new(T)).Where(clause.Eq{Column: clause.Column{Name: column}, Value: value})
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, TranslateError(err)
	}
	return n > 0, nil
}

// Create inserts m and runs after inside the same transaction.
func (r *Repository[T]) Create(ctx context.Context, m *T, after ...TxFunc[T]) error {
	return WithTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(m).Error; err != nil {
			return TranslateError(err)
		}
		return r.afterWrite(tx, m, after)
	})
}

// Update writes every column of m and runs after inside the same transaction.
func (r *Repository[T]) Update(ctx context.Context, m *T, after ...TxFunc[T]) error {
	return WithTransaction(ctx, r.db, func(tx *gorm.DB) error {
		res := tx.Model(m).Select("*").Omit(clause.Associations, "id", "created_at").Updates(m)
		if res.Error != nil {
			return TranslateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return r.afterWrite(tx, m, after)
	})
}

func (r *Repository[T]) afterWrite(tx *gorm.DB, m *T, after []TxFunc[T]) error {
	for _, fn := range after {
		if err := fn(tx, m); err != nil {
			return err
		}
	}
	if r.exclusive && isActive(m) {
		if err := deactivateOthers[T](tx, idOf(m)); err != nil {
			return err
		}
	}
	return nil
}

// Toggle flips is_active and returns the updated row.
func (r *Repository[T]) Toggle(ctx context.Context, id int64) (*T, error) {
	m := new(T)
	err := WithTransaction(ctx, r.db, func(tx *gorm.DB) error {
		res := tx.Model(new(T)).Where("id = ?", id).
			Update("is_active", gorm.Expr("NOT is_active"))
		if res.Error != nil {
			return TranslateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := r.withPreloads(tx).First(m, id).Error; err != nil {
			return TranslateError(err)
		}
		if r.exclusive && isActive(m) {
			return deactivateOthers[T](tx, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SetActive sets is_active on one row. With WithExclusiveActive, activating
// a row deactivates the others.
func (r *Repository[T]) SetActive(ctx context.Context, id int64, active bool) (*T, error) {
	m := new(T)
	err := WithTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.First(m, id).Error; err != nil {
			return TranslateError(err)
		}
		if err := tx.Model(m).Update("is_active", active).Error; err != nil {
			return TranslateError(err)
		}
		if r.exclusive && active {
			return deactivateOthers[T](tx, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id, false)
}

// Delete removes the row with its has-many children and returns what was
// deleted so callers can release stored files.
func (r *Repository[T]) Delete(ctx context.Context, id int64) (*T, error) {
	m := new(T)
	err := WithTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := r.withPreloads(tx).First(m, id).Error; err != nil {
			return TranslateError(err)
		}
		if err := tx.Select(clause.Associations).Delete(m).Error; err != nil {
			return TranslateError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func deactivateOthers[T any](tx *gorm.DB, id int64) error {
	err := tx.Model(new(T)).
		Where("id <> ? AND is_active = ?", id, true).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("deactivating other rows: %w", TranslateError(err))
	}
	return nil
}

func isActive(m any) bool {
	a, ok := m.(interface{ Active() bool })
	return ok && a.Active()
}

func idOf(m any) int64 {
	if e, ok := m.(interface{ GetID() int64 }); ok {
		return e.GetID()
	}
	return 0
}
