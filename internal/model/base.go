// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the gorm models behind the storefront content API:
// marketing entities, products and reviews, admins, leads and event logs.
package model

import "time"

// Base holds the identity and timestamp columns shared by every table.
type Base struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetID returns the primary key.
func (b *Base) GetID() int64 {
	return b.ID
}

// Ordered holds the visibility flag and manual ordering key of curated content.
// Inactive rows stay manageable by admins but are hidden from public endpoints.
type Ordered struct {
	IsActive  bool `gorm:"not null" json:"isActive"`
	SortOrder int  `gorm:"not null" json:"sortOrder" validate:"gte=0"`
}

// Active reports whether the row is publicly visible.
func (o *Ordered) Active() bool {
	return o.IsActive
}

// SetActive sets the visibility flag.
func (o *Ordered) SetActive(active bool) {
	o.IsActive = active
}
