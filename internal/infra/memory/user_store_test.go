package memory

import (
	"context"
	"errors"
	"testing"

	"quiztake-service/internal/domain"
)

func TestUserStoreCreateAndFind(t *testing.T) {
	store := NewUserStore()
	ctx := context.Background()

	user := &domain.User{ID: "u1", Username: "alice", Password: "secret"}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &domain.User{ID: "u2", Username: "alice"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	got, err := store.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != "u1" || got.Password != "secret" {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, err := store.FindByUsername(ctx, "nobody"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserStoreLoginTokens(t *testing.T) {
	store := NewUserStore()
	ctx := context.Background()

	if err := store.Create(ctx, &domain.User{ID: "u1", Username: "alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.SetLoginToken(ctx, "u1", "tok-1"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	got, err := store.FindByLoginToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("find by token: %v", err)
	}
	if got.ID != "u1" {
		t.Fatalf("unexpected user %+v", got)
	}

	// A fresh login replaces the old token.
	if err := store.SetLoginToken(ctx, "u1", "tok-2"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if _, err := store.FindByLoginToken(ctx, "tok-1"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected stale token rejected, got %v", err)
	}
	if _, err := store.FindByLoginToken(ctx, "tok-2"); err != nil {
		t.Fatalf("find by new token: %v", err)
	}

	if err := store.SetLoginToken(ctx, "missing", "tok"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
