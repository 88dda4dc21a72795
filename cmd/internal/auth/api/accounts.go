package authapi

import (
	"context"

	"huddle/cmd/identity"
	"huddle/cmd/internal/auth/session"
)

// Accounts adapts an identity.Store to the session layer's account lookups.
type Accounts struct {
	store identity.Store
}

// NewAccounts wraps store.
func NewAccounts(store identity.Store) Accounts {
	return Accounts{store: store}
}

func (a Accounts) LookupByEmail(ctx context.Context, email string) (session.Account, error) {
	ua, err := a.store.GetUserAuthByEmail(ctx, email)
	if err != nil {
		return session.Account{}, mapAccountErr(err)
	}
	acct := toAccount(ua.User)
	acct.PasswordHash = ua.PasswordHash
	return acct, nil
}

func (a Accounts) LookupByID(ctx context.Context, id string) (session.Account, error) {
	u, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		return session.Account{}, mapAccountErr(err)
	}
	return toAccount(u), nil
}

func toAccount(u identity.User) session.Account {
	return session.Account{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func mapAccountErr(err error) error {
	// Malformed lookups (bad email syntax) read as an unknown account too.
	if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
		return session.ErrAccountNotFound
	}
	return err
}
