// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gemcraft/gemcms/internal/auth"
	"github.com/gemcraft/gemcms/internal/config"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closer, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		v, err := store.MigrationStatus(cmd.Context(), db)
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
		slog.Info("database is up to date", "version", v)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default super admin on an empty database",
	Long: `seed creates a super admin from GEMCMS_ADMIN_EMAIL, GEMCMS_ADMIN_USERNAME
and GEMCMS_ADMIN_PASSWORD when no admin exists. A random password is
generated and logged once when GEMCMS_ADMIN_PASSWORD is empty.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closer, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		return store.Seed(cmd.Context(), db, seedAdmin(cfg))
	},
}

var newAdmin struct {
	name     string
	username string
	email    string
	password string
	role     string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closer, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		a, err := buildAdmin(newAdmin.name, newAdmin.username, newAdmin.email, newAdmin.password, newAdmin.role)
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		if err := createAdmin(cmd.Context(), store.NewAdminStore(db), a); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s %q (id %d)\n", a.Role, a.Username, a.ID)
		return nil
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&newAdmin.name, "name", "", "display name (defaults to the username)")
	f.StringVar(&newAdmin.username, "username", "", "login name")
	f.StringVar(&newAdmin.email, "email", "", "email address")
	f.StringVar(&newAdmin.password, "password", "", "password, at least 8 characters")
	f.StringVar(&newAdmin.role, "role", model.RoleAdmin, "admin or super_admin")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}

func seedAdmin(cfg *config.Config) store.SeedAdmin {
	return store.SeedAdmin{
		Email:    cfg.AdminEmail,
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
	}
}

// buildAdmin validates the flags and hashes the password.
func buildAdmin(name, username, email, password, role string) (*model.Admin, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" {
		return nil, errors.New("username and email are required")
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("role must be %q or %q", model.RoleAdmin, model.RoleSuperAdmin)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	if name = strings.TrimSpace(name); name == "" {
		name = username
	}
	return &model.Admin{Name: name, Username: username, Email: email, PasswordHash: hash, Role: role}, nil
}

func createAdmin(ctx context.Context, admins *store.AdminStore, a *model.Admin) error {
	emailTaken, usernameTaken, err := admins.Taken(ctx, a.Email, a.Username)
	if err != nil {
		return err
	}
	switch {
	case emailTaken:
		return fmt.Errorf("email %q is already registered", a.Email)
	case usernameTaken:
		return fmt.Errorf("username %q is already taken", a.Username)
	}
	if err := admins.Create(ctx, a); err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}
	slog.Info("admin created", "id", a.ID, "username", a.Username, "role", a.Role, "category", model.EventCategoryAdmin)
	return nil
}
