// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gemcraft/gemcms/internal/auth"
	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
)

// LoginRequest is the body of POST /api/auth/login. Login may be an email
// or a username; email and username are accepted as aliases.
type LoginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// identifier returns the login name the admin typed.
func (req LoginRequest) identifier() string {
	for _, s := range []string{req.Login, req.Email, req.Username} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Admin     *model.Admin `json:"admin"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin super_admin"`
}

// ChangePasswordRequest is the body of PUT /api/auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Login handles POST /api/auth/login
// Failed attempts count against the login name; too many lock it for a while.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientIP := middleware.ClientIP(r)

	p, _, err := h.readPayload(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	var req LoginRequest
	if err := decodeInto(p, &req); err != nil {
		WriteValidationError(w, decodeErrors(err))
		return
	}

	login := req.identifier()
	fields := map[string]string{}
	if login == "" {
		fields["login"] = "email or username is required"
	}
	if req.Password == "" {
		fields["password"] = "password is required"
	}
	if len(fields) > 0 {
		WriteValidationError(w, fields)
		return
	}

	if locked, remaining := h.login.IsAccountLocked(login); locked {
		slog.Warn("login attempt on locked account", "login", login, "ip", clientIP, "category", model.EventCategoryAuth)
		middleware.WriteAPIError(w, http.StatusTooManyRequests, middleware.CodeRateLimited, middleware.LockoutMessage(remaining))
		return
	}

	admin, err := h.admins.GetByLogin(ctx, login)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.writeInternal(w, r, err, "Login failed")
		return
	}

	valid := false
	if admin != nil {
		valid, err = auth.CheckPassword(req.Password, admin.PasswordHash)
		if err != nil {
			slog.Error("password check error", "error", err, "admin_id", admin.ID)
		}
	}

	if !valid {
		// Unknown logins count as failures too so lockout does not reveal which accounts exist.
		slog.Warn("login failed", "login", login, "ip", clientIP, "category", model.EventCategoryAuth)
		if locked, lockDuration := h.login.RecordFailedAttempt(login); locked {
			slog.Warn("account locked due to failed attempts", "login", login, "duration", lockDuration.String(), "category", model.EventCategoryAuth)
			middleware.WriteAPIError(w, http.StatusTooManyRequests, middleware.CodeRateLimited, middleware.LockoutMessage(lockDuration))
			return
		}
		msg := "Invalid credentials"
		if remaining := h.login.GetRemainingAttempts(login); remaining > 0 && remaining <= 3 {
			msg = "Invalid credentials, " + pluralAttempts(remaining) + " remaining before the account is locked"
		}
		middleware.WriteAPIError(w, http.StatusUnauthorized, middleware.CodeUnauthorized, msg)
		return
	}

	h.login.RecordSuccessfulLogin(login)

	if auth.NeedsRehash(admin.PasswordHash) {
		if newHash, err := auth.HashPassword(req.Password); err == nil {
			if err := h.admins.UpdatePassword(ctx, admin.ID, newHash); err != nil {
				slog.Error("failed to re-hash password", "error", err, "admin_id", admin.ID)
			} else {
				slog.Info("password re-hashed with updated cost", "admin_id", admin.ID)
			}
		}
	}

	now := h.now()
	if err := h.admins.TouchLastLogin(ctx, admin.ID, now); err != nil {
		slog.Error("failed to update last login time", "error", err, "admin_id", admin.ID)
	}
	admin.LastLoginAt = &now

	token, expiresAt, err := h.tokens.Issue(admin)
	if err != nil {
		h.writeInternal(w, r, err, "Failed to issue token")
		return
	}

	slog.Info("admin logged in", "admin_id", admin.ID, "admin", admin.Username, "ip", clientIP, "category", model.EventCategoryAuth)
	WriteMessage(w, "Login successful", LoginResponse{Token: token, ExpiresAt: expiresAt, Admin: admin})
}

func pluralAttempts(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return strconv.Itoa(n) + " attempts"
}

// Me handles GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, middleware.GetAdmin(r), nil)
}

// ChangePassword handles PUT /api/auth/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin := middleware.GetAdmin(r)

	p, _, err := h.readPayload(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	var req ChangePasswordRequest
	if err := decodeInto(p, &req); err != nil {
		WriteValidationError(w, decodeErrors(err))
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		WriteValidationError(w, fields)
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		WriteValidationError(w, map[string]string{"newPassword": err.Error()})
		return
	}

	ok, err := auth.CheckPassword(req.CurrentPassword, admin.PasswordHash)
	if err != nil {
		h.writeInternal(w, r, err, "Failed to change password")
		return
	}
	if !ok {
		WriteValidationError(w, map[string]string{"currentPassword": "current password is incorrect"})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.writeInternal(w, r, err, "Failed to change password")
		return
	}
	if err := h.admins.UpdatePassword(ctx, admin.ID, hash); err != nil {
		h.WriteStoreError(w, r, err, "admin")
		return
	}

	slog.Info("admin changed password", "admin_id", admin.ID, "category", model.EventCategoryAuth)
	WriteMessage(w, "Password updated successfully", nil)
}

// Register handles POST /api/auth/register
// Requires super admin.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, _, err := h.readPayload(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	var req RegisterRequest
	if err := decodeInto(p, &req); err != nil {
		WriteValidationError(w, decodeErrors(err))
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	if req.Role == "" {
		req.Role = model.RoleAdmin
	}

	fields := h.validateStruct(req)
	if fields == nil {
		fields = map[string]string{}
	}
	if _, exists := fields["username"]; !exists && !usernamePattern.MatchString(req.Username) {
		fields["username"] = "username may only contain letters, digits, dots, dashes and underscores"
	}
	if _, exists := fields["password"]; !exists {
		if err := auth.ValidatePassword(req.Password); err != nil {
			fields["password"] = err.Error()
		}
	}
	if len(fields) == 0 {
		emailTaken, usernameTaken, err := h.admins.Taken(ctx, req.Email, req.Username)
		if err != nil {
			h.writeInternal(w, r, err, "Failed to create admin")
			return
		}
		if emailTaken {
			fields["email"] = "email is already registered"
		}
		if usernameTaken {
			fields["username"] = "username is already taken"
		}
	}
	if len(fields) > 0 {
		WriteValidationError(w, fields)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeInternal(w, r, err, "Failed to create admin")
		return
	}
	admin := &model.Admin{
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := h.admins.Create(ctx, admin); err != nil {
		h.WriteStoreError(w, r, err, "admin")
		return
	}

	slog.Info("admin created", append([]any{"new_admin_id", admin.ID, "username", admin.Username, "role", admin.Role, "category", model.EventCategoryAdmin}, adminAttrs(r)...)...)
	WriteCreated(w, admin, "Admin created successfully")
}

// ListAdmins handles GET /api/admins
// Requires super admin.
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.admins.List(r.Context())
	if err != nil {
		h.WriteStoreError(w, r, err, "admin")
		return
	}
	WriteSuccess(w, admins, nil)
}

// DeleteAdmin handles DELETE /api/admins/{id}
// Requires super admin. Admins cannot delete themselves, and the last
// super admin cannot be deleted.
func (h *Handler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current := middleware.GetAdmin(r)

	target, ok := requireEntityByID(h, w, r, "admin", func(id int64) (*model.Admin, error) {
		return h.admins.Get(ctx, id)
	})
	if !ok {
		return
	}

	if target.ID == current.ID {
		WriteBadRequest(w, "You cannot delete your own account")
		return
	}
	if target.IsSuperAdmin() {
		n, err := h.admins.CountByRole(ctx, model.RoleSuperAdmin)
		if err != nil {
			h.writeInternal(w, r, err, "Failed to delete admin")
			return
		}
		if n <= 1 {
			WriteBadRequest(w, "Cannot delete the last super admin")
			return
		}
	}

	if err := h.admins.Delete(ctx, target.ID); err != nil {
		h.WriteStoreError(w, r, err, "admin")
		return
	}

	slog.Info("admin deleted", append([]any{"deleted_admin_id", target.ID, "username", target.Username, "category", model.EventCategoryAdmin}, adminAttrs(r)...)...)
	WriteMessage(w, "Admin deleted successfully", map[string]int64{"id": target.ID})
}
