package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"huddle/cmd/security/token"
)

// Account is the slice of a user record the session layer needs.
type Account struct {
	ID           string
	Email        string
	Name         string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

// Accounts resolves users. Both lookups return ErrAccountNotFound for a
// missing user.
type Accounts interface {
	LookupByEmail(ctx context.Context, email string) (Account, error)
	LookupByID(ctx context.Context, id string) (Account, error)
}

// PasswordVerifier checks a plain password against an encoded hash.
type PasswordVerifier interface {
	Verify(encodedHash, password string) (bool, error)
}

// Issued is the result of issuing or rotating a session.
type Issued struct {
	UserID       string
	SessionID    string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// LoginResult carries the authenticated account alongside its tokens.
type LoginResult struct {
	Account Account
	Issued  Issued
}

// LogoutResult reports what a best-effort logout did. Skipped holds the
// reason nothing was revoked; it is informational and never fatal.
type LogoutResult struct {
	Revoked   bool
	SessionID string
	Skipped   error
}

// Service orchestrates login, refresh and logout over a Codec and a Store.
type Service struct {
	codec     *Codec
	store     Store
	accounts  Accounts
	passwords PasswordVerifier
	hasher    token.Hasher
	log       *slog.Logger

	// dummyHash is verified against when the account is unknown so that
	// both failure paths cost one password verification.
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTokenHasher sets how refresh tokens are hashed before storage.
func WithTokenHasher(h token.Hasher) ServiceOption {
	return func(s *Service) { s.hasher = h }
}

// WithDummyHash sets the encoded hash used on the unknown-account path.
func WithDummyHash(encoded string) ServiceOption {
	return func(s *Service) { s.dummyHash = encoded }
}

// NewService wires the orchestrator. All four collaborators are required.
func NewService(codec *Codec, store Store, accounts Accounts, passwords PasswordVerifier, opts ...ServiceOption) (*Service, error) {
	if codec == nil || store == nil || accounts == nil || passwords == nil {
		return nil, fmt.Errorf("%w: session service requires codec, store, accounts and password verifier", ErrConfig)
	}
	s := &Service{
		codec:     codec,
		store:     store,
		accounts:  accounts,
		passwords: passwords,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Codec exposes the token codec for request authentication.
func (s *Service) Codec() *Codec { return s.codec }

// Login checks credentials and opens a new session.
func (s *Service) Login(ctx context.Context, now time.Time, email, password string) (LoginResult, error) {
	acct, err := s.accounts.LookupByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			if s.dummyHash != "" {
				_, _ = s.passwords.Verify(s.dummyHash, password)
			}
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	ok, err := s.passwords.Verify(acct.PasswordHash, password)
	if err != nil {
		// Corrupt stored hash: same answer as a wrong password.
		s.log.Warn("auth.login.verify.fail", "user_id", acct.ID, "err", err)
		return LoginResult{}, ErrInvalidCredentials
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	issued, err := s.open(ctx, now, acct)
	if err != nil {
		return LoginResult{}, err
	}
	acct.PasswordHash = ""
	return LoginResult{Account: acct, Issued: issued}, nil
}

func (s *Service) open(ctx context.Context, now time.Time, acct Account) (Issued, error) {
	access, accessExp, err := s.codec.IssueAccess(acct.ID, acct.Role, now)
	if err != nil {
		return Issued{}, err
	}
	next, err := s.newSession(now, acct)
	if err != nil {
		return Issued{}, err
	}
	if _, err := s.store.Create(ctx, next.row); err != nil {
		return Issued{}, err
	}
	return Issued{
		UserID:       acct.ID,
		SessionID:    next.row.ID,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: next.token,
		RefreshExp:   next.exp,
	}, nil
}

type pendingSession struct {
	row   NewSession
	token string
	exp   time.Time
}

// newSession allocates an id, mints the refresh token naming it and hashes it.
func (s *Service) newSession(now time.Time, acct Account) (pendingSession, error) {
	id, err := NewSessionID(now)
	if err != nil {
		return pendingSession{}, err
	}
	refresh, exp, err := s.codec.IssueRefresh(acct.ID, acct.Role, id, now)
	if err != nil {
		return pendingSession{}, err
	}
	return pendingSession{
		row: NewSession{
			ID:             id,
			UserID:         acct.ID,
			CredentialHash: s.hasher.Hash(refresh),
			CreatedAt:      now,
			ExpiresAt:      exp,
		},
		token: refresh,
		exp:   exp,
	}, nil
}

// Refresh rotates the session named by refreshToken and returns new tokens.
//
// Token problems collapse to ErrInvalidToken; session problems surface as
// ErrSessionNotFound or ErrSessionInvalid. No session is created on failure.
func (s *Service) Refresh(ctx context.Context, now time.Time, refreshToken string) (Issued, error) {
	claims, err := s.codec.Verify(refreshToken, now)
	if err != nil {
		return Issued{}, ErrInvalidToken
	}
	if AssertKind(claims, KindRefresh) != nil {
		return Issued{}, ErrInvalidToken
	}
	if claims.SessionID() == "" || claims.UserID() == "" {
		return Issued{}, ErrInvalidToken
	}

	acct, err := s.accounts.LookupByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Issued{}, ErrSessionInvalid
		}
		return Issued{}, err
	}

	next, err := s.newSession(now, acct)
	if err != nil {
		return Issued{}, err
	}

	out, err := s.store.Rotate(ctx, now, claims.SessionID(), s.hasher.Hash(refreshToken), next.row)
	if out.ReuseDetected {
		s.log.Warn("auth.refresh.reuse_detected",
			"session_id", claims.SessionID(),
			"user_id", out.Predecessor.UserID,
			"revoked", out.RevokedCount,
		)
		return Issued{}, ReuseError{SessionID: claims.SessionID(), UserID: out.Predecessor.UserID, Revoked: out.RevokedCount}
	}
	if err != nil {
		return Issued{}, err
	}

	access, accessExp, err := s.codec.IssueAccess(acct.ID, acct.Role, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		UserID:       acct.ID,
		SessionID:    next.row.ID,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: next.token,
		RefreshExp:   next.exp,
	}, nil
}

// Logout revokes the session named by refreshToken if it can. It never fails;
// the reason for doing nothing is reported in LogoutResult.Skipped.
func (s *Service) Logout(ctx context.Context, now time.Time, refreshToken string) LogoutResult {
	if strings.TrimSpace(refreshToken) == "" {
		return LogoutResult{Skipped: ErrInvalidToken}
	}

	claims, err := s.codec.Verify(refreshToken, now)
	if err != nil {
		return LogoutResult{Skipped: err}
	}
	if AssertKind(claims, KindRefresh) != nil || claims.SessionID() == "" {
		return LogoutResult{Skipped: ErrInvalidToken}
	}

	sid := claims.SessionID()
	row, err := s.store.Find(ctx, sid)
	if err != nil {
		return LogoutResult{SessionID: sid, Skipped: err}
	}
	// Knowing a session id is not enough; the caller must hold its token.
	if !s.hasher.Matches(refreshToken, row.CredentialHash) {
		return LogoutResult{SessionID: sid, Skipped: ErrSessionInvalid}
	}
	if err := s.store.Revoke(ctx, now, sid, nil); err != nil {
		return LogoutResult{SessionID: sid, Skipped: err}
	}
	return LogoutResult{Revoked: true, SessionID: sid}
}

// DeleteUserSessions hard-deletes every session of userID, used when the
// account itself is removed.
func (s *Service) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrAccountNotFound
	}
	return s.store.DeleteAllForUser(ctx, userID)
}
