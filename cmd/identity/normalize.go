package identity

import (
	"net/mail"
	"strings"
)

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail accepts a bare RFC 5322 address ("a@x.com"), not a display-name form.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && at < len(s)-1
}

// NormalizeName trims surrounding whitespace.
func NormalizeName(s string) string {
	return strings.TrimSpace(s)
}
