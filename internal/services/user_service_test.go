package services

import (
	"context"
	"errors"
	"testing"
)

func TestVerifyPasswordCollapsesFailures(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	svc := NewUserService(db)
	ctx := context.Background()

	if err := svc.VerifyPassword(ctx, user.ID, testPassword); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}

	cases := map[string]func() error{
		"wrong password": func() error { return svc.VerifyPassword(ctx, user.ID, "nope") },
		"empty password": func() error { return svc.VerifyPassword(ctx, user.ID, "") },
		"unknown user":   func() error { return svc.VerifyPassword(ctx, "missing-id", testPassword) },
	}
	for name, fn := range cases {
		if err := fn(); !errors.Is(err, ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", name, err)
		}
	}

	if err := db.Model(user).Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate user: %v", err)
	}
	if err := svc.VerifyPassword(ctx, user.ID, testPassword); !errors.Is(err, ErrForbidden) {
		t.Errorf("inactive account: expected ErrForbidden, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	svc := NewUserService(db)
	ctx := context.Background()

	got, err := svc.Authenticate(ctx, user.Email, testPassword)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("wrong account resolved")
	}

	if _, err := svc.Authenticate(ctx, user.Email, "nope"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "who@example.com", testPassword); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}
