// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Admin roles.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
)

// Admin is a dashboard account.
type Admin struct {
	Base
	Name         string     `json:"name"`
	Username     string     `gorm:"uniqueIndex" json:"username"`
	Email        string     `gorm:"uniqueIndex" json:"email"`
	PasswordHash string     `json:"-"` // Never expose in JSON
	Role         string     `json:"role"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

func (Admin) TableName() string { return "admins" }

// IsSuperAdmin returns true if the admin may manage other admins.
func (a *Admin) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}

// ValidRole reports whether role is a known admin role.
func ValidRole(role string) bool {
	return role == RoleSuperAdmin || role == RoleAdmin
}
