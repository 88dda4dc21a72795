package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"huddle/cmd/identity/ids"
	"huddle/cmd/security/token"
)

// Session mirrors one persisted refresh session.
type Session struct {
	ID             string
	UserID         string
	CredentialHash string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	SupersededBy   *string
}

// Live reports whether s is unrevoked and unexpired at now.
func (s Session) Live(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// NewSession describes a session to create. The caller allocates ID with
// NewSessionID because the refresh token embeds it before it is hashed.
type NewSession struct {
	ID             string
	UserID         string
	CredentialHash string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

func (n NewSession) validate() error {
	switch {
	case strings.TrimSpace(n.ID) == "":
		return fmt.Errorf("session: empty id")
	case strings.TrimSpace(n.UserID) == "":
		return fmt.Errorf("session: empty user id")
	case len(n.CredentialHash) != 64:
		return fmt.Errorf("session: credential hash must be 64 hex chars")
	case !n.ExpiresAt.After(n.CreatedAt):
		return fmt.Errorf("session: expires_at must be after created_at")
	}
	return nil
}

func (n NewSession) record() Session {
	return Session{
		ID:             n.ID,
		UserID:         n.UserID,
		CredentialHash: strings.ToLower(n.CredentialHash),
		CreatedAt:      n.CreatedAt.UTC(),
		ExpiresAt:      n.ExpiresAt.UTC(),
	}
}

// RotateOutcome describes what Rotate did. It is populated on
// ErrSessionInvalid too, so callers can observe reuse detection.
type RotateOutcome struct {
	Predecessor   Session
	SuccessorID   string
	ReuseDetected bool
	// RevokedCount is the number of sessions revoked by reuse handling.
	RevokedCount int64
}

// Store persists refresh sessions. Every backend makes Rotate atomic.
type Store interface {
	// Create inserts a session. An id already in use yields ErrSessionExists.
	Create(ctx context.Context, in NewSession) (string, error)

	// Find loads a session or returns ErrSessionNotFound.
	Find(ctx context.Context, sessionID string) (Session, error)

	// Revoke sets revoked_at (and superseded_by when successorID is given)
	// only where unset. Revoking twice is not an error.
	Revoke(ctx context.Context, now time.Time, sessionID string, successorID *string) error

	// Rotate revokes oldID and creates successor in one step, only if oldID
	// is live and presentedHash matches its stored hash.
	Rotate(ctx context.Context, now time.Time, oldID, presentedHash string, successor NewSession) (RotateOutcome, error)

	// DeleteAllForUser hard-deletes every session of userID.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

// NewSessionID allocates a ULID session id.
func NewSessionID(now time.Time) (string, error) {
	return ids.NewULID(now)
}

// StoreOption configures behavior shared by every backend.
type StoreOption func(*storeOptions)

type storeOptions struct {
	revokeOnReuse bool
}

func defaultStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{revokeOnReuse: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithRevokeOnReuse controls whether presenting a superseded refresh token
// revokes all of the user's live sessions (default true).
func WithRevokeOnReuse(on bool) StoreOption {
	return func(o *storeOptions) { o.revokeOnReuse = on }
}

// checkRotatable decides whether prev may be rotated into successor.
//
// Reuse is only reported when the presented hash matches, so a forged token
// naming someone else's session id cannot trigger mass revocation.
func checkRotatable(prev Session, now time.Time, presentedHash string, successor NewSession) (reuse bool, err error) {
	if !token.EqualHex64(prev.CredentialHash, presentedHash) {
		return false, ErrSessionInvalid
	}
	if prev.UserID != successor.UserID {
		return false, ErrSessionInvalid
	}
	if prev.SupersededBy != nil {
		return true, ErrSessionInvalid
	}
	if !prev.Live(now) {
		return false, ErrSessionInvalid
	}
	return false, nil
}

func cloneSession(s Session) Session {
	out := s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		out.RevokedAt = &t
	}
	if s.SupersededBy != nil {
		id := *s.SupersededBy
		out.SupersededBy = &id
	}
	return out
}
