package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"huddle/cmd/identity"
	"huddle/cmd/internal/auth/session"
)

// Handler wires HTTP auth and account endpoints to the session service and
// the account store.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions *session.Service
	users    identity.Store
	gate     *Gate

	audit   *AuditLog
	metrics *Metrics
	now     func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithAudit records auth events in a.
func WithAudit(a *AuditLog) HandlerOption {
	return func(h *Handler) { h.audit = a }
}

// WithMetrics records auth outcomes in m.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, users identity.Store, gate *Gate, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil || users == nil || gate == nil {
		return nil, errors.New("auth: handler requires sessions, users and gate")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		users:    users,
		gate:     gate,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth and account routes onto mux. The gate's middleware must
// wrap mux for the authenticated routes to see a principal.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("POST /users", h.handleSignup)
	mux.Handle("GET /me", h.gate.RequireAuth(http.HandlerFunc(h.handleMe)))
	mux.Handle("GET /users/{id}", h.gate.RequireAuth(http.HandlerFunc(h.handleGetUser)))
	mux.Handle("DELETE /users/{id}", h.gate.RequireAuth(http.HandlerFunc(h.handleDeleteUser)))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "email and password are required")
		return
	}

	ctx := r.Context()
	now := h.now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	res, err := h.sessions.Login(ctx, now, email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			h.metrics.incLogin("invalid_credentials")
			h.audit.record(ctx, now, auditEvent{
				action:    "auth.login.failed",
				ip:        ip,
				userAgent: ua,
				meta:      map[string]any{"identifier": identity.NormalizeEmail(email)},
			})
			writeError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
			return
		}
		h.metrics.incLogin("error")
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "internal error")
		return
	}

	h.metrics.incLogin("success")
	h.audit.record(ctx, now, auditEvent{
		action:    "auth.login.success",
		userID:    res.Account.ID,
		sessionID: res.Issued.SessionID,
		ip:        ip,
		userAgent: ua,
	})

	h.setSessionCookies(w, res.Issued)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  res.Issued.AccessToken,
		RefreshToken: res.Issued.RefreshToken,
		User:         accountResponse(res.Account),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	// A missing cookie goes through the service like any unusable token.
	raw, _ := h.refreshTokenFromCookie(r)
	issued, err := h.sessions.Refresh(ctx, now, raw)
	if err != nil {
		var reuse session.ReuseError
		switch {
		case errors.As(err, &reuse):
			h.metrics.incRefresh("reuse_detected")
			h.audit.record(ctx, now, auditEvent{
				action:    "auth.refresh.reuse_detected",
				userID:    reuse.UserID,
				sessionID: reuse.SessionID,
				ip:        ip,
				userAgent: ua,
				meta:      map[string]any{"revoked": reuse.Revoked},
			})
		case errors.Is(err, session.ErrInvalidToken):
			h.metrics.incRefresh("invalid_token")
		case errors.Is(err, session.ErrSessionNotFound):
			h.metrics.incRefresh("session_not_found")
		case errors.Is(err, session.ErrSessionInvalid):
			h.metrics.incRefresh("session_invalid")
		default:
			h.metrics.incRefresh("error")
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "internal error")
			return
		}
		writeError(w, r, http.StatusUnauthorized, "INVALID_SESSION", "session is invalid or expired")
		return
	}

	h.metrics.incRefresh("success")
	h.audit.record(ctx, now, auditEvent{
		action:    "auth.refresh.success",
		userID:    issued.UserID,
		sessionID: issued.SessionID,
		ip:        ip,
		userAgent: ua,
	})

	h.setSessionCookies(w, issued)
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: issued.AccessToken})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now().UTC()

	raw, _ := h.refreshTokenFromCookie(r)
	res := h.sessions.Logout(ctx, now, raw)
	if res.Revoked {
		h.metrics.incLogout("revoked")
		h.audit.record(ctx, now, auditEvent{
			action:    "auth.logout",
			sessionID: res.SessionID,
			ip:        clientIP(r, h.cfg.TrustProxy),
			userAgent: strings.TrimSpace(r.UserAgent()),
		})
	} else {
		h.metrics.incLogout("skipped")
		h.log.Debug("auth.logout.skipped", "session_id", res.SessionID, "reason", res.Skipped)
	}

	h.clearSessionCookies(w)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	// Only an authenticated admin may mint another admin.
	if role, ok := identity.ParseRole(req.Role); ok && role == identity.RoleAdmin {
		if p, ok := PrincipalFrom(r.Context()); !ok || p.Role != identity.RoleAdmin {
			h.log.Warn("auth.signup.admin_denied", "ip", clientIP(r, h.cfg.TrustProxy))
			h.gate.responder.Forbidden(w, r)
			return
		}
	}

	u, err := h.users.CreateUser(r.Context(), identity.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Role:     identity.Role(req.Role),
		Password: req.Password,
		Now:      h.now().UTC(),
	})
	if err != nil {
		var op identity.OpError
		switch {
		case identity.IsConflict(err):
			writeError(w, r, http.StatusConflict, "CONFLICT", "email already registered")
		case errors.As(err, &op) && errors.Is(err, identity.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", op.Msg)
		default:
			h.log.Error("auth.signup.fail", "err", err)
			writeError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	u, err := h.users.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			// The token outlived its account.
			h.gate.responder.Unauthenticated(w, r)
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			writeError(w, r, http.StatusNotFound, "NOT_FOUND", "user not found")
			return
		}
		h.log.Error("users.get.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	id := r.PathValue("id")
	if p.UserID != id && p.Role != identity.RoleAdmin {
		h.gate.responder.Forbidden(w, r)
		return
	}

	ctx := r.Context()
	if _, err := h.users.GetUserByID(ctx, id); err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			writeError(w, r, http.StatusNotFound, "NOT_FOUND", "user not found")
			return
		}
		h.log.Error("users.delete.lookup.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "internal error")
		return
	}

	n, err := h.sessions.DeleteUserSessions(ctx, id)
	if err != nil {
		h.log.Error("users.delete.sessions.fail", "err", err, "user_id", id)
		writeError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "internal error")
		return
	}
	if err := h.users.DeleteUser(ctx, id); err != nil {
		if identity.IsNotFound(err) {
			writeError(w, r, http.StatusNotFound, "NOT_FOUND", "user not found")
			return
		}
		h.log.Error("users.delete.fail", "err", err, "user_id", id)
		writeError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "internal error")
		return
	}

	h.audit.record(ctx, h.now().UTC(), auditEvent{
		action: "users.deleted",
		userID: id,
		ip:     clientIP(r, h.cfg.TrustProxy),
		meta:   map[string]any{"by": p.UserID, "sessions_deleted": n},
	})
	if p.UserID == id {
		h.clearSessionCookies(w)
	}
	w.WriteHeader(http.StatusNoContent)
}
