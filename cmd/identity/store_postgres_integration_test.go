package identity

import (
	"context"
	"testing"
	"time"

	"huddle/cmd/internal/db/dbtest"
)

// Integration tests are opt-in and require HUDDLE_DATABASE_URL.

func mustNewPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	pool := dbtest.OpenPool(t)
	schema := dbtest.FreshSchema(t, pool)

	s, err := NewPostgresStore(pool, WithSchema(schema), WithPasswordHasher(testHasher()))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPostgresStore_CreateUser_ConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := mustNewPostgresStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := s.CreateUser(ctx, CreateUserInput{
		Email:    "User@Example.com",
		Name:     "First",
		Role:     RoleUser,
		Password: "very-strong-password-11",
	})
	if err != nil {
		t.Fatalf("create user 1: %v", err)
	}

	_, err = s.CreateUser(ctx, CreateUserInput{
		Email:    "user@example.COM",
		Name:     "Second",
		Role:     RoleUser,
		Password: "very-strong-password-12",
	})
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestPostgresStore_LookupAndDelete(t *testing.T) {
	t.Parallel()

	s := mustNewPostgresStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u, err := s.CreateUser(ctx, CreateUserInput{
		Email:    "a@x.com",
		Name:     "Alice",
		Role:     RoleAdmin,
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Email != "a@x.com" || got.Role != RoleAdmin || got.Name != "Alice" {
		t.Fatalf("unexpected user: %+v", got)
	}

	ua, err := s.GetUserAuthByEmail(ctx, "  A@X.COM ")
	if err != nil {
		t.Fatalf("get auth by email: %v", err)
	}
	if ua.User.ID != u.ID || ua.PasswordHash == "" || ua.PasswordHash == "secret123" {
		t.Fatalf("unexpected auth row: id=%s hash_len=%d", ua.User.ID, len(ua.PasswordHash))
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetUserByID(ctx, u.ID); !IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := s.DeleteUser(ctx, u.ID); !IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
