// Package token provides refresh-credential hashing primitives for Huddle.
//
// It is the single source of truth for how a serialized refresh token is
// turned into the credential hash stored next to its session.
//
// Modes:
//   - SHA-256(token) when no HMAC key is configured (dev).
//   - HMAC-SHA256(token, key) when a key is configured; required in production
//     via HUDDLE_REQUIRE_TOKEN_HMAC.
//
// Output is always a 64-char lowercase hex string.
package token
