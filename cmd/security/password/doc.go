// Package password hashes and verifies account passwords for Huddle.
//
// New hashes are Argon2id in the PHC string format
// ($argon2id$v=19$m=..,t=..,p=..$salt$key). Verification also accepts bcrypt
// hashes ($2a$/$2b$/$2y$) carried over from the previous account system, so
// existing users keep their passwords until they are re-hashed.
//
// Hash strings are untrusted input during Verify: Argon2id parameters far
// above the configured ones are refused.
package password
