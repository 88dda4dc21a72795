// Package session implements Huddle's credential and session lifecycle.
//
// Access tokens are short-lived HS256 JWTs carrying the user id and role.
// Refresh tokens are JWTs whose jti names a persisted session; the session
// stores only a hash of the refresh token (HMAC-SHA256 when
// HUDDLE_TOKEN_HMAC_KEY is set, SHA-256 otherwise).
//
// Rotation is a single conditional step inside each Store backend: the old
// session is revoked and linked to its successor only if it is still live and
// its hash matches the presented token. Presenting a superseded token is
// treated as reuse.
//
// HTTP concerns (cookies, status codes) live in package authapi.
package session
