package session

import (
	"errors"
	"fmt"
)

// Token verification.
var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("malformed token")
	ErrWrongTokenKind   = errors.New("wrong token kind")
)

// Orchestration and storage.
var (
	// ErrInvalidCredentials covers both an unknown account and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned by Refresh for any refresh token that fails
	// verification, has the wrong kind or lacks sub/jti.
	ErrInvalidToken = errors.New("invalid token")

	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionInvalid covers revoked, expired, superseded and hash-mismatched sessions.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrSessionExists is returned when Create or Rotate is given an id already in use.
	ErrSessionExists = errors.New("session already exists")

	ErrAccountNotFound = errors.New("account not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// ReuseError is returned by Refresh when a superseded refresh token was
// presented again. It matches ErrSessionInvalid under errors.Is.
type ReuseError struct {
	SessionID string
	UserID    string
	// Revoked is how many live sessions of UserID were revoked in response.
	Revoked int64
}

func (e ReuseError) Error() string {
	return fmt.Sprintf("%s: refresh token reuse on session %s", ErrSessionInvalid, e.SessionID)
}

func (e ReuseError) Unwrap() error { return ErrSessionInvalid }
