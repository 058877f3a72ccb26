// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"

	"gorm.io/datatypes"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth    = "auth"
	EventCategoryContent = "content"
	EventCategoryAdmin   = "admin"
	EventCategoryLead    = "lead"
	EventCategorySystem  = "system"
	EventCategoryCache   = "cache"
)

// EventLog is a persisted log record.
type EventLog struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	Level     string         `json:"level"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	AdminID   *int64         `json:"adminId,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (EventLog) TableName() string { return "event_logs" }
