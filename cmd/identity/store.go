package identity

import (
	"context"
	"strings"
	"time"
)

// User is a Huddle account as seen by the rest of the system.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	CreatedAt time.Time
}

// UserAuth pairs a user with its encoded password hash. Only the login path reads it.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a signup request. Password is plain text and is
// hashed by the store before anything is persisted.
type CreateUserInput struct {
	Email    string
	Name     string
	Role     Role
	Password string
	Now      time.Time
}

// PasswordHasher turns a plain password into an encoded hash, enforcing policy.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Store is the account persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
	DeleteUser(ctx context.Context, id string) error
}

// prepareUser validates in, hashes the password and allocates an id.
func prepareUser(op string, in CreateUserInput, hasher PasswordHasher) (User, string, error) {
	if hasher == nil {
		return User{}, "", invalid(op, "nil password hasher")
	}

	email := strings.TrimSpace(in.Email)
	if !ValidEmail(email) {
		return User{}, "", invalid(op, "invalid email")
	}
	name := NormalizeName(in.Name)
	if name == "" {
		return User{}, "", invalid(op, "name is required")
	}
	role, ok := ParseRole(string(in.Role))
	if !ok {
		return User{}, "", invalid(op, "role must be USER or ADMIN")
	}

	hash, err := hasher.Hash(in.Password)
	if err != nil {
		return User{}, "", invalid(op, err.Error())
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := NewULID(now)
	if err != nil {
		return User{}, "", err
	}

	return User{
		ID:        id,
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: now.UTC(),
	}, hash, nil
}
