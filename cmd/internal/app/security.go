package app

import (
	"errors"
	"fmt"

	"huddle/cmd/security/token"
)

// ValidateSecurityConfig enforces Huddle's security policy at startup.
//
// Under HUDDLE_REQUIRE_TOKEN_HMAC the refresh-token hasher must run in HMAC
// mode; there is no silent fallback to plain SHA-256.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// Measured in bytes: the key is used as raw bytes.
	if _, err := token.ParseHMACKey(cfg.TokenHMACKey, token.MinHMACKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: HUDDLE_REQUIRE_TOKEN_HMAC=true but HUDDLE_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return fmt.Errorf("security policy: HUDDLE_REQUIRE_TOKEN_HMAC=true but HUDDLE_TOKEN_HMAC_KEY is too short (min %d bytes)", token.MinHMACKeyBytes)
		default:
			return err
		}
	}
	if !tokenHasher(cfg).HMACEnabled() {
		return errors.New("security policy: HUDDLE_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return nil
}

// tokenHasher builds the refresh-token hasher. A missing or unusable key
// selects SHA-256, which ValidateSecurityConfig rejects under policy.
func tokenHasher(cfg Config) token.Hasher {
	key, err := token.ParseHMACKey(cfg.TokenHMACKey, token.MinHMACKeyBytes)
	if err != nil {
		return token.NewHasher(nil)
	}
	return token.NewHasher(key)
}
