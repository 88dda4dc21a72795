package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "HUDDLE_TOKEN_HMAC_KEY"

	// MinHMACKeyBytes is the minimum accepted HMAC key size.
	MinHMACKeyBytes = 32
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// ParseHMACKey trims raw and enforces a minimum byte length.
// Blank input -> ErrHMACKeyMissing; short input -> ErrHMACKeyTooShort.
func ParseHMACKey(raw string, minBytes int) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// Hasher hashes serialized refresh tokens for server-side storage.
// The zero value hashes with plain SHA-256.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher. A nil or empty key selects SHA-256 mode.
func NewHasher(key []byte) Hasher {
	if len(key) == 0 {
		return Hasher{}
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return Hasher{key: cp}
}

// HMACEnabled reports whether the hasher runs in HMAC mode.
func (h Hasher) HMACEnabled() bool { return len(h.key) > 0 }

// Hash returns the 64-char hex hash of tok.
func (h Hasher) Hash(tok string) string {
	if len(h.key) == 0 {
		return HashSHA256Hex(tok)
	}
	return HashHMACSHA256Hex(tok, h.key)
}

// Matches reports whether tok hashes to storedHex, in constant time.
func (h Hasher) Matches(tok, storedHex string) bool {
	return EqualHex64(h.Hash(tok), storedHex)
}

// EqualHex64 compares two 64-char hex strings in constant time.
// Either side having another length is a mismatch.
func EqualHex64(a, b string) bool {
	if len(a) != 64 || len(b) != 64 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(a)), []byte(strings.ToLower(b))) == 1
}
