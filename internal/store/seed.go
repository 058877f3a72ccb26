package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/auth"
	"github.com/gemcraft/gemcms/internal/model"
)

// DefaultAdminName is the display name of the seeded account.
const DefaultAdminName = "Administrator"

// SeedAdmin describes the account created on an empty database.
type SeedAdmin struct {
	Email    string
	Username string
	Password string // Generated and logged once when empty
}

// Seed creates the first super admin when no admin exists.
func Seed(ctx context.Context, db *gorm.DB, admin SeedAdmin) error {
	admins := NewAdminStore(db)

	n, err := admins.Count(ctx)
	if err != nil {
		return fmt.Errorf("checking for admin user: %w", err)
	}
	if n > 0 {
		slog.Info("admin user already exists, skipping seed")
		return nil
	}

	password := admin.Password
	generated := password == ""
	if generated {
		if password, err = randomPassword(); err != nil {
			return err
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	a := &model.Admin{
		Name:         DefaultAdminName,
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: hash,
		Role:         model.RoleSuperAdmin,
	}
	if err := admins.Create(ctx, a); err != nil {
		return err
	}

	attrs := []any{"id", a.ID, "email", a.Email, "username", a.Username}
	if generated {
		attrs = append(attrs, "password", password)
	}
	slog.Info("created default admin user", attrs...)
	return nil
}

func randomPassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
