package authapi

import (
	"net/http"
	"strings"
)

// Responder answers requests that lack or fail authorization. Browsers
// navigating to a page get a redirect to the login page; API clients get JSON.
type Responder struct {
	loginPath    string
	pagePrefixes []string
}

// NewResponder builds a Responder from cfg.
func NewResponder(cfg Config) *Responder {
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = DefaultConfig().LoginPath
	}
	return &Responder{loginPath: loginPath, pagePrefixes: cfg.PagePrefixes}
}

// Unauthenticated redirects interactive requests to the login page and
// answers everything else with 401 AUTH_401.
func (rs *Responder) Unauthenticated(w http.ResponseWriter, r *http.Request) {
	if rs.wantsRedirect(r) {
		http.Redirect(w, r, rs.loginPath, http.StatusFound)
		return
	}
	writeError(w, r, http.StatusUnauthorized, "AUTH_401", "authentication required")
}

// Forbidden answers 403 AUTH_403 regardless of the client kind.
func (rs *Responder) Forbidden(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusForbidden, "AUTH_403", "access denied")
}

func (rs *Responder) wantsRedirect(r *http.Request) bool {
	path := r.URL.Path
	if path == rs.loginPath {
		return true
	}
	for _, p := range rs.pagePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
