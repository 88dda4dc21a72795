package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// MinSigningKeyBytes is the shortest accepted HS256 key.
const MinSigningKeyBytes = 32

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// Issuer is the "iss" claim written into and required from every token.
	Issuer string

	// SigningKey is the HS256 secret. It is never read from a global.
	SigningKey []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// ClockSkew is the leeway applied to exp during verification.
	ClockSkew time.Duration

	// RevokeOnReuse revokes every live session of a user when a superseded
	// refresh token is presented again.
	RevokeOnReuse bool
}

// DefaultConfig returns defaults without a signing key.
func DefaultConfig() Config {
	return Config{
		Issuer:        "huddle",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		ClockSkew:     0,
		RevokeOnReuse: true,
	}
}

// Codec returns the codec subset of c.
func (c Config) Codec() CodecConfig {
	return CodecConfig{
		Issuer:     c.Issuer,
		SigningKey: c.SigningKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
		ClockSkew:  c.ClockSkew,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - HUDDLE_JWT_SECRET (at least 32 bytes)
//
// Optional:
//   - HUDDLE_JWT_ISSUER
//   - HUDDLE_JWT_ACCESS_TTL, HUDDLE_JWT_REFRESH_TTL, HUDDLE_JWT_CLOCK_SKEW (Go durations)
//   - HUDDLE_AUTH_REVOKE_ON_REUSE (bool)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("HUDDLE_JWT_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	durations := []struct {
		key       string
		dst       *time.Duration
		allowZero bool
	}{
		{"HUDDLE_JWT_ACCESS_TTL", &cfg.AccessTTL, false},
		{"HUDDLE_JWT_REFRESH_TTL", &cfg.RefreshTTL, false},
		{"HUDDLE_JWT_CLOCK_SKEW", &cfg.ClockSkew, true},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 || (parsed == 0 && !d.allowZero) {
			return Config{}, ErrConfig
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("HUDDLE_AUTH_REVOKE_ON_REUSE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.RevokeOnReuse = b
	}

	secret := os.Getenv("HUDDLE_JWT_SECRET")
	if len(secret) < MinSigningKeyBytes {
		return Config{}, ErrConfig
	}
	cfg.SigningKey = []byte(secret)

	if cfg.RefreshTTL < cfg.AccessTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
