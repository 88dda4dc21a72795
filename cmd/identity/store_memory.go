package identity

import (
	"context"
	"strings"
	"sync"

	"huddle/cmd/identity/ids"
)

// MemoryStore keeps accounts in process memory. Used in dev mode and tests.
type MemoryStore struct {
	hasher PasswordHasher

	mu      sync.RWMutex
	byID    map[string]UserAuth
	byEmail map[string]string // email_norm -> id
}

// NewMemoryStore returns an empty MemoryStore hashing with hasher.
func NewMemoryStore(hasher PasswordHasher) *MemoryStore {
	return &MemoryStore{
		hasher:  hasher,
		byID:    make(map[string]UserAuth),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	u, hash, err := prepareUser(op, in, s.hasher)
	if err != nil {
		return User{}, err
	}
	norm := NormalizeEmail(u.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[norm]; exists {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	s.byID[u.ID] = UserAuth{User: u, PasswordHash: hash}
	s.byEmail[norm] = u.ID
	return u, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	id = strings.TrimSpace(id)
	if !ids.Valid(id) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ua, ok := s.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return ua.User, nil
}

func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	return s.byID[id], nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	const op = "identity.DeleteUser"
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ua, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	delete(s.byID, ua.User.ID)
	delete(s.byEmail, NormalizeEmail(ua.User.Email))
	return nil
}
