package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// maxTokenLen bounds input before any parsing work.
const maxTokenLen = 8192

// Claims is the JWT payload for both token kinds. Refresh tokens carry the
// session id in jti (RegisteredClaims.ID).
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
	Kind Kind   `json:"kind"`
}

// UserID returns the subject.
func (c Claims) UserID() string { return c.Subject }

// SessionID returns the jti; empty for access tokens.
func (c Claims) SessionID() string { return c.ID }

// Expiry returns exp, or the zero time if absent.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// CodecConfig is everything a Codec needs. The key is copied on construction.
type CodecConfig struct {
	Issuer     string
	SigningKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ClockSkew  time.Duration
}

// Codec issues and verifies HS256 tokens. It is safe for concurrent use and
// holds no state besides its configuration.
type Codec struct {
	issuer     string
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	skew       time.Duration
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.SigningKey) < MinSigningKeyBytes {
		return nil, fmt.Errorf("%w: signing key must be at least %d bytes", ErrConfig, MinSigningKeyBytes)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: empty issuer", ErrConfig)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ClockSkew < 0 {
		return nil, fmt.Errorf("%w: ttl and skew must be positive", ErrConfig)
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	return &Codec{
		issuer:     cfg.Issuer,
		key:        key,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		skew:       cfg.ClockSkew,
	}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess mints an access token for userID.
func (c *Codec) IssueAccess(userID, role string, now time.Time) (string, time.Time, error) {
	return c.issue(userID, role, "", KindAccess, now, c.accessTTL)
}

// IssueRefresh mints a refresh token bound to sessionID through jti.
func (c *Codec) IssueRefresh(userID, role, sessionID string, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty session id", ErrMalformed)
	}
	return c.issue(userID, role, sessionID, KindRefresh, now, c.refreshTTL)
}

func (c *Codec) issue(userID, role, jti string, kind Kind, now time.Time, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty subject", ErrMalformed)
	}

	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
			ID:        jti,
		},
		Role: role,
		Kind: kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Time, nil
}

// Verify checks signature, issuer and expiry as of now. It does not check kind.
func (c *Codec) Verify(raw string, now time.Time) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxTokenLen {
		return Claims{}, ErrMalformed
	}

	// A fresh parser per call pins the time function to now.
	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.skew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var claims Claims
	_, err := p.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return Claims{}, ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	default:
		return Claims{}, ErrMalformed
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

// AssertKind returns ErrWrongTokenKind unless claims.Kind is want.
func AssertKind(claims Claims, want Kind) error {
	if claims.Kind != want {
		return ErrWrongTokenKind
	}
	return nil
}
