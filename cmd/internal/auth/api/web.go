package authapi

import (
	"net/http"
	"strings"
	"time"

	"huddle/cmd/internal/auth/session"
)

// setSessionCookies writes the access and refresh cookies for issued.
func (h *Handler) setSessionCookies(w http.ResponseWriter, issued session.Issued) {
	h.setCookie(w, h.cfg.AccessCookieName, h.cfg.AccessCookiePath, issued.AccessToken, h.sessions.Codec().AccessTTL())
	h.setCookie(w, h.cfg.RefreshCookieName, h.cfg.RefreshCookiePath, issued.RefreshToken, h.sessions.Codec().RefreshTTL())
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	h.expireCookie(w, h.cfg.AccessCookieName, h.cfg.AccessCookiePath)
	h.expireCookie(w, h.cfg.RefreshCookieName, h.cfg.RefreshCookiePath)
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

func (h *Handler) setCookie(w http.ResponseWriter, name, path, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cfg.CookieDomain,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}
