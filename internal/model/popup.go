// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"slices"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Popup is a timed storefront modal.
type Popup struct {
	Base
	Ordered
	Title        string                      `json:"title" validate:"required,max=200"`
	Content      string                      `json:"content"`
	ImageURL     string                      `json:"imageUrl" validate:"max=500"`
	ButtonText   string                      `json:"buttonText" validate:"max=100"`
	ButtonLink   string                      `json:"buttonLink" validate:"max=500"`
	DelaySeconds int                         `gorm:"not null" json:"delaySeconds" validate:"gte=0,lte=3600"`
	StartsAt     *time.Time                  `json:"startsAt"`
	EndsAt       *time.Time                  `json:"endsAt"`
	Pages        datatypes.JSONSlice[string] `json:"pages"` // Empty means every page
}

func (Popup) TableName() string { return "popups" }

// BeforeSave stores the window in UTC. SQLite compares timestamps as text,
// so mixed offsets would order wrongly.
func (p *Popup) BeforeSave(*gorm.DB) error {
	p.StartsAt = utc(p.StartsAt)
	p.EndsAt = utc(p.EndsAt)
	return nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// InWindow reports whether t falls inside the popup's display window.
func (p *Popup) InWindow(t time.Time) bool {
	if p.StartsAt != nil && t.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && t.After(*p.EndsAt) {
		return false
	}
	return true
}

// ShowsOn reports whether the popup targets the given storefront page.
func (p *Popup) ShowsOn(page string) bool {
	if len(p.Pages) == 0 || page == "" {
		return true
	}
	return slices.Contains(p.Pages, page) || slices.Contains(p.Pages, "*")
}
