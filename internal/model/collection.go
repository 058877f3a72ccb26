// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// CelebrationProcess is an ordered list of steps describing a celebration.
// Steps are replaced as a whole on every update that sends them.
type CelebrationProcess struct {
	Base
	Ordered
	Title       string                   `json:"title" validate:"required,max=200"`
	Subtitle    string                   `json:"subtitle" validate:"max=300"`
	Description string                   `json:"description"`
	ImageURL    string                   `json:"imageUrl" validate:"max=500"`
	Steps       []CelebrationProcessStep `gorm:"foreignKey:ProcessID;constraint:OnDelete:CASCADE" json:"steps" validate:"dive"`
}

func (CelebrationProcess) TableName() string { return "celebration_processes" }

// CelebrationProcessStep is one step of a CelebrationProcess.
type CelebrationProcessStep struct {
	Base
	ProcessID   int64  `gorm:"not null;index" json:"processId"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
	StepNumber  int    `json:"stepNumber" validate:"gte=0"`
}

func (CelebrationProcessStep) TableName() string { return "celebration_process_steps" }

// Gallery is a titled set of images.
// Items are replaced as a whole on every update that sends them.
type Gallery struct {
	Base
	Ordered
	Title         string        `json:"title" validate:"required,max=200"`
	Description   string        `json:"description"`
	Category      string        `json:"category" validate:"max=100"`
	CoverImageURL string        `json:"coverImageUrl" validate:"max=500"`
	Items         []GalleryItem `gorm:"foreignKey:GalleryID;constraint:OnDelete:CASCADE" json:"items" validate:"dive"`
}

func (Gallery) TableName() string { return "galleries" }

// GalleryItem is one image of a Gallery.
type GalleryItem struct {
	Base
	GalleryID int64  `gorm:"not null;index" json:"galleryId"`
	Title     string `json:"title" validate:"max=200"`
	Caption   string `json:"caption" validate:"max=500"`
	ImageURL  string `json:"imageUrl" validate:"max=500"`
	SortOrder int    `gorm:"not null" json:"sortOrder"`
}

func (GalleryItem) TableName() string { return "gallery_items" }
