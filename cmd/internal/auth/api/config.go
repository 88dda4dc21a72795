package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls the auth HTTP surface: cookies, redirects and request limits.
type Config struct {
	AccessCookieName  string
	RefreshCookieName string
	AccessCookiePath  string
	RefreshCookiePath string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	// LoginPath is where interactive clients are sent when unauthenticated.
	LoginPath    string
	PagePrefixes []string

	TrustProxy   bool
	MaxBodyBytes int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		AccessCookieName:  "access_token",
		RefreshCookieName: "refresh_token",
		AccessCookiePath:  "/",
		RefreshCookiePath: "/auth",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
		LoginPath:         "/login",
		PagePrefixes:      []string{"/pages/", "/templates/"},
		MaxBodyBytes:      1 << 20, // 1 MiB
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		AccessCookieName:  envString("HUDDLE_AUTH_ACCESS_COOKIE_NAME", def.AccessCookieName),
		RefreshCookieName: envString("HUDDLE_AUTH_REFRESH_COOKIE_NAME", def.RefreshCookieName),
		AccessCookiePath:  def.AccessCookiePath,
		RefreshCookiePath: envString("HUDDLE_AUTH_REFRESH_COOKIE_PATH", def.RefreshCookiePath),
		CookieDomain:      envString("HUDDLE_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:      envBool("HUDDLE_AUTH_COOKIE_SECURE", def.CookieSecure),
		CookieSameSite:    parseSameSite(envString("HUDDLE_AUTH_COOKIE_SAMESITE", "lax")),
		LoginPath:         envString("HUDDLE_AUTH_LOGIN_PATH", def.LoginPath),
		PagePrefixes:      envList("HUDDLE_AUTH_PAGE_PREFIXES", def.PagePrefixes),
		TrustProxy:        envBool("HUDDLE_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("HUDDLE_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
	}

	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	if cfg.AccessCookieName == cfg.RefreshCookieName {
		cfg.AccessCookieName = def.AccessCookieName
		cfg.RefreshCookieName = def.RefreshCookieName
	}
	if !strings.HasPrefix(cfg.LoginPath, "/") {
		cfg.LoginPath = def.LoginPath
	}
	return cfg
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
