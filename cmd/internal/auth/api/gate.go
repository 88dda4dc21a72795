package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"huddle/cmd/identity"
	"huddle/cmd/internal/auth/session"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   identity.Role
}

// Source names where a credential was found.
type Source string

const (
	SourceNone   Source = "none"
	SourceHeader Source = "header"
	SourceCookie Source = "cookie"
)

// Resolution is the outcome of resolving a request's credential. Principal
// is nil when the request is anonymous; Err says why a presented credential
// was rejected.
type Resolution struct {
	Principal *Principal
	Err       error
	Source    Source
}

// TokenVerifier is the slice of session.Codec the gate needs.
type TokenVerifier interface {
	Verify(raw string, now time.Time) (session.Claims, error)
}

// Gate turns access tokens into principals. It never writes a response;
// RequireAuth and RequireRole decide what anonymous callers get.
type Gate struct {
	verifier  TokenVerifier
	cfg       Config
	responder *Responder
	metrics   *Metrics
	log       *slog.Logger
	now       func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateMetrics records resolutions in m.
func WithGateMetrics(m *Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// WithGateLogger sets the logger used for rejected credentials.
func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithGateClock overrides time.Now.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate builds a Gate over verifier.
func NewGate(verifier TokenVerifier, cfg Config, responder *Responder, opts ...GateOption) *Gate {
	if responder == nil {
		responder = NewResponder(cfg)
	}
	g := &Gate{
		verifier:  verifier,
		cfg:       cfg,
		responder: responder,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Resolve extracts and verifies the request's access token. The header wins
// over the cookie when both are present.
func (g *Gate) Resolve(r *http.Request) Resolution {
	raw, src := g.credential(r)
	if src == SourceNone {
		return Resolution{Source: SourceNone}
	}

	claims, err := g.verifier.Verify(raw, g.now().UTC())
	if err != nil {
		return Resolution{Err: err, Source: src}
	}
	if err := session.AssertKind(claims, session.KindAccess); err != nil {
		return Resolution{Err: err, Source: src}
	}
	return Resolution{
		Principal: &Principal{UserID: claims.UserID(), Role: identity.Role(claims.Role)},
		Source:    src,
	}
}

func (g *Gate) credential(r *http.Request) (string, Source) {
	if tok, ok := bearerToken(r); ok {
		return tok, SourceHeader
	}
	if c, err := r.Cookie(g.cfg.AccessCookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v, SourceCookie
		}
	}
	return "", SourceNone
}

// Middleware attaches the resolved principal, if any, to the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.Resolve(r)
		if res.Source == SourceNone {
			next.ServeHTTP(w, r)
			return
		}
		if res.Principal == nil {
			reason := rejectReason(res.Err)
			g.metrics.incGate(res.Source, reason)
			g.log.Debug("auth.gate.reject", "source", string(res.Source), "reason", reason, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}
		g.metrics.incGate(res.Source, "ok")
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), *res.Principal)))
	})
}

// RequireAuth sends anonymous callers to Responder.Unauthenticated.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			g.responder.Unauthenticated(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole is RequireAuth plus a role check answered with Responder.Forbidden.
func (g *Gate) RequireRole(role identity.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			g.responder.Unauthenticated(w, r)
			return
		}
		if p.Role != role {
			g.responder.Forbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, session.ErrExpired):
		return "expired"
	case errors.Is(err, session.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, session.ErrWrongTokenKind):
		return "wrong_kind"
	default:
		return "malformed"
	}
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached by Gate.Middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
