// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lead statuses.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusClosed    = "closed"
)

// Lead is a storefront "cart" submission: contact details plus the items
// the visitor was interested in. There is no checkout.
type Lead struct {
	Base
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Phone   string         `json:"phone"`
	Message string         `json:"message"`
	Items   datatypes.JSON `json:"items"`
	Status  string         `json:"status"`
	Source  string         `json:"source"`
	IP      string         `json:"-"`
}

func (Lead) TableName() string { return "leads" }

// BeforeSave fills the defaults of the NOT NULL columns.
func (l *Lead) BeforeSave(*gorm.DB) error {
	if len(l.Items) == 0 {
		l.Items = datatypes.JSON("[]")
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	return nil
}

// LeadItem is one entry of Lead.Items.
type LeadItem struct {
	ProductID int64   `json:"productId,omitempty"`
	Name      string  `json:"name" validate:"required,max=200"`
	SKU       string  `json:"sku,omitempty" validate:"max=64"`
	Quantity  int     `json:"quantity" validate:"min=1,max=1000"`
	Price     float64 `json:"price,omitempty" validate:"gte=0"`
}

// ValidLeadStatus reports whether status is a known lead status.
func ValidLeadStatus(status string) bool {
	switch status {
	case LeadStatusNew, LeadStatusContacted, LeadStatusClosed:
		return true
	}
	return false
}
