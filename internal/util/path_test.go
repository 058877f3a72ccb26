// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestFileExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ring.JPG", ".jpg"},
		{"../../etc/passwd.png", ".png"},
		{`C:\Users\me\photo.webp`, ".webp"},
		{"noext", ""},
		{"..", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FileExt(tt.in); got != tt.want {
			t.Errorf("FileExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "products/a.jpg", want: "products/a.jpg"},
		{in: "products//a.jpg", want: "products/a.jpg"},
		{in: "products/./a.jpg", want: "products/a.jpg"},
		{in: `products\a.jpg`, want: "products/a.jpg"},
		{in: "products/../banners/a.jpg", want: "banners/a.jpg"},
		{in: "", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
		{in: "../secret", wantErr: true},
		{in: "products/../../secret", wantErr: true},
		{in: "..", wantErr: true},
		{in: ".", wantErr: true},
	}

	for _, tt := range tests {
		got, err := CleanKey(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsafePath) {
				t.Errorf("CleanKey(%q) error = %v, want ErrUnsafePath", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("CleanKey(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestSafeJoinPath(t *testing.T) {
	base := t.TempDir()

	got, err := SafeJoinPath(base, "products/a.jpg")
	if err != nil {
		t.Fatalf("SafeJoinPath() error = %v", err)
	}
	absBase, _ := filepath.Abs(base)
	if want := filepath.Join(absBase, "products", "a.jpg"); got != want {
		t.Errorf("SafeJoinPath() = %q, want %q", got, want)
	}

	for _, key := range []string{"../a.jpg", "/etc/passwd", "products/../../a.jpg"} {
		if _, err := SafeJoinPath(base, key); err == nil {
			t.Errorf("SafeJoinPath(%q) should fail", key)
		}
	}
}
