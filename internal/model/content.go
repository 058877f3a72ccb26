// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Banner is a promotional strip shown on storefront pages.
type Banner struct {
	Base
	Ordered
	Title          string `json:"title" validate:"required,max=200"`
	Subtitle       string `json:"subtitle" validate:"max=300"`
	Description    string `json:"description"`
	ImageURL       string `json:"imageUrl" validate:"max=500"`
	MobileImageURL string `json:"mobileImageUrl" validate:"max=500"`
	ButtonText     string `json:"buttonText" validate:"max=100"`
	ButtonLink     string `json:"buttonLink" validate:"max=500"`
	Position       string `json:"position" validate:"max=50"`
}

func (Banner) TableName() string { return "banners" }

// Hero is the home page hero section. At most one hero is active at a time.
type Hero struct {
	Base
	Ordered
	Title       string `json:"title" validate:"required,max=200"`
	Subtitle    string `json:"subtitle" validate:"max=300"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
	VideoURL    string `json:"videoUrl" validate:"max=500"`
	ButtonText  string `json:"buttonText" validate:"max=100"`
	ButtonLink  string `json:"buttonLink" validate:"max=500"`
}

func (Hero) TableName() string { return "heroes" }

// Category groups products.
type Category struct {
	Base
	Ordered
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `gorm:"uniqueIndex" json:"slug" validate:"max=120"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
}

func (Category) TableName() string { return "categories" }

// Service describes an in-store service such as resizing or engraving.
type Service struct {
	Base
	Ordered
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
	Icon        string `json:"icon" validate:"max=100"`
	Link        string `json:"link" validate:"max=500"`
}

func (Service) TableName() string { return "services" }

// Quote is a featured quotation.
type Quote struct {
	Base
	Ordered
	Text        string `json:"text" validate:"required"`
	Author      string `json:"author" validate:"max=150"`
	Designation string `json:"designation" validate:"max=150"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
}

func (Quote) TableName() string { return "quotes" }

// Testimonial is a customer statement with an optional photo or video.
type Testimonial struct {
	Base
	Ordered
	Name        string `json:"name" validate:"required,max=150"`
	Designation string `json:"designation" validate:"max=150"`
	Location    string `json:"location" validate:"max=150"`
	Message     string `json:"message" validate:"required"`
	Rating      int    `json:"rating" validate:"min=1,max=5"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
	VideoURL    string `json:"videoUrl" validate:"max=500"`
}

func (Testimonial) TableName() string { return "testimonials" }

// FAQ is a question and answer pair.
type FAQ struct {
	Base
	Ordered
	Question string `json:"question" validate:"required,max=500"`
	Answer   string `json:"answer" validate:"required"`
	Category string `json:"category" validate:"max=100"`
}

func (FAQ) TableName() string { return "faqs" }

// Culture describes a regional wedding jewelry tradition.
type Culture struct {
	Base
	Ordered
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
	Region      string `json:"region" validate:"max=100"`
}

func (Culture) TableName() string { return "cultures" }

// RingCustomization is one option in the ring configurator.
type RingCustomization struct {
	Base
	Ordered
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
	Step        int    `json:"step" validate:"gte=0"`
	OptionType  string `json:"optionType" validate:"max=50"`
}

func (RingCustomization) TableName() string { return "ring_customizations" }

// DiamondCertification describes a grading authority.
type DiamondCertification struct {
	Base
	Ordered
	Title          string `json:"title" validate:"required,max=200"`
	Description    string `json:"description"`
	ImageURL       string `json:"imageUrl" validate:"max=500"`
	Authority      string `json:"authority" validate:"max=100"`
	CertificateURL string `json:"certificateUrl" validate:"max=500"`
}

func (DiamondCertification) TableName() string { return "diamond_certifications" }

// WeddingPlanner is a wedding planning guide entry.
type WeddingPlanner struct {
	Base
	Ordered
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
	Phase       string `json:"phase" validate:"max=100"`
	Link        string `json:"link" validate:"max=500"`
}

func (WeddingPlanner) TableName() string { return "wedding_planners" }
