// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "gorm.io/datatypes"

// Metal types offered in the catalog.
const (
	MetalGold      = "gold"
	MetalWhiteGold = "white_gold"
	MetalRoseGold  = "rose_gold"
	MetalPlatinum  = "platinum"
	MetalSilver    = "silver"
)

// Product is a catalog item with jewelry attributes and optional SEO fields.
type Product struct {
	Base
	Ordered
	Name             string    `json:"name" validate:"required,max=200"`
	Slug             string    `gorm:"uniqueIndex" json:"slug" validate:"max=220"`
	SKU              string    `json:"sku" validate:"max=64"`
	Description      string    `json:"description"`
	ShortDescription string    `json:"shortDescription" validate:"max=500"`
	CategoryID       *int64    `json:"categoryId"`
	Category         *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty" validate:"-"`

	Price        float64  `json:"price" validate:"gte=0"`
	ComparePrice *float64 `json:"comparePrice" validate:"omitempty,gte=0"`

	Metal       string   `json:"metal" validate:"max=50"`
	MetalPurity string   `json:"metalPurity" validate:"max=20"`
	MetalColor  string   `json:"metalColor" validate:"max=50"`
	Weight      *float64 `json:"weight" validate:"omitempty,gte=0"`

	DiamondShape   string   `json:"diamondShape" validate:"max=50"`
	DiamondCarat   *float64 `json:"diamondCarat" validate:"omitempty,gte=0"`
	DiamondColor   string   `json:"diamondColor" validate:"max=10"`
	DiamondClarity string   `json:"diamondClarity" validate:"max=10"`
	DiamondCut     string   `json:"diamondCut" validate:"max=50"`
	Certification  string   `json:"certification" validate:"max=100"`

	ImageURL string                      `json:"imageUrl" validate:"max=500"`
	Images   datatypes.JSONSlice[string] `json:"images"`

	IsFeatured       bool `gorm:"not null" json:"isFeatured"`
	IsNewArrival     bool `gorm:"not null" json:"isNewArrival"`
	IsBestSeller     bool `gorm:"not null" json:"isBestSeller"`
	AvailableOnline  bool `gorm:"not null" json:"availableOnline"`
	AvailableInStore bool `gorm:"not null" json:"availableInStore"`
	AvailableOnOrder bool `gorm:"not null" json:"availableOnOrder"`

	MetaTitle       string `json:"metaTitle" validate:"max=200"`
	MetaDescription string `json:"metaDescription" validate:"max=500"`
	MetaKeywords    string `json:"metaKeywords" validate:"max=500"`
}

func (Product) TableName() string { return "products" }

// Review is a customer review of a product. Public submissions start
// unapproved; approval is the review's active flag.
type Review struct {
	Base
	Ordered
	ProductID int64    `gorm:"not null;index" json:"productId" validate:"required,gt=0"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty" validate:"-"`
	Name      string   `json:"name" validate:"required,max=150"`
	Email     string   `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Rating    int      `json:"rating" validate:"min=1,max=5"`
	Title     string   `json:"title" validate:"max=200"`
	Comment   string   `json:"comment" validate:"required,max=5000"`
}

func (Review) TableName() string { return "reviews" }

// HideContact clears the reviewer's email before a review is shown publicly.
func (r *Review) HideContact() {
	r.Email = ""
}
