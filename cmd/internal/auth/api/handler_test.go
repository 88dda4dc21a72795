package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"huddle/cmd/identity"
	"huddle/cmd/internal/auth/session"
)

func TestLoginRefreshLogout_Flow(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	ctx := context.Background()

	rr := f.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "a@x.com", Password: "secret123"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var login loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", login)
	}
	if login.User.ID != f.alice.ID || login.User.Role != "USER" {
		t.Fatalf("unexpected user: %+v", login.User)
	}

	access := cookieByName(rr, "access_token")
	refresh := cookieByName(rr, "refresh_token")
	if access == nil || refresh == nil {
		t.Fatalf("expected access and refresh cookies, got %v", rr.Result().Cookies())
	}
	if access.Path != "/" || refresh.Path != "/auth" {
		t.Fatalf("cookie paths: access=%q refresh=%q", access.Path, refresh.Path)
	}
	for _, c := range []*http.Cookie{access, refresh} {
		if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
			t.Fatalf("cookie %s flags: %+v", c.Name, c)
		}
	}
	if access.MaxAge != int((15*time.Minute)/time.Second) || refresh.MaxAge != int((24*time.Hour)/time.Second) {
		t.Fatalf("cookie max-age: access=%d refresh=%d", access.MaxAge, refresh.MaxAge)
	}
	if refresh.Value != login.RefreshToken {
		t.Fatalf("refresh cookie should carry the refresh token")
	}

	oldClaims, err := f.codec.Verify(login.RefreshToken, f.clock.Now())
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}

	f.clock.Advance(time.Minute)
	rr = f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", login.RefreshToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var refreshed refreshResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.AccessToken == login.AccessToken {
		t.Fatalf("expected a new access token")
	}
	newRefresh := cookieByName(rr, "refresh_token")
	if newRefresh == nil || newRefresh.Value == login.RefreshToken {
		t.Fatalf("expected a rotated refresh cookie")
	}
	newClaims, err := f.codec.Verify(newRefresh.Value, f.clock.Now())
	if err != nil {
		t.Fatalf("verify new refresh: %v", err)
	}

	prev, err := f.store.Find(ctx, oldClaims.SessionID())
	if err != nil {
		t.Fatalf("Find old session: %v", err)
	}
	if prev.SupersededBy == nil || *prev.SupersededBy != newClaims.SessionID() {
		t.Fatalf("old session should be superseded by %s, got %v", newClaims.SessionID(), prev.SupersededBy)
	}

	// The superseded token is dead.
	rr = f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", login.RefreshToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: status=%d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "INVALID_SESSION" || e.Path != "/auth/refresh" || e.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected error body: %+v", e)
	}

	rr = f.do(t, http.MethodPost, "/auth/logout", nil, withCookie("refresh_token", newRefresh.Value))
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: status=%d", rr.Code)
	}
	assertCookiesCleared(t, rr)
}

func TestRefresh_AuditRecordsUser(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	login := f.login(t, "a@x.com")

	f.clock.Advance(time.Minute)
	rr := f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", login.RefreshToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: status=%d body=%s", rr.Code, rr.Body.String())
	}

	for _, action := range []string{"auth.login.success", "auth.refresh.success"} {
		rows := f.audit.actions(action)
		if len(rows) != 1 {
			t.Fatalf("%s: %d audit rows", action, len(rows))
		}
		if rows[0][1] != f.alice.ID {
			t.Fatalf("%s: user_id=%v, want %s", action, rows[0][1], f.alice.ID)
		}
		if sid, _ := rows[0][2].(string); sid == "" {
			t.Fatalf("%s: missing session_id", action)
		}
	}
}

func TestRefresh_ExpiredToken(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	login := f.login(t, "a@x.com")
	claims, err := f.codec.Verify(login.RefreshToken, f.clock.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	f.clock.Advance(25 * time.Hour)
	rr := f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", login.RefreshToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if e := decodeError(t, rr); e.Code != "INVALID_SESSION" {
		t.Fatalf("code=%q", e.Code)
	}
	if got := rr.Result().Cookies(); len(got) != 0 {
		t.Fatalf("no cookies expected on failure, got %v", got)
	}
	prev, err := f.store.Find(context.Background(), claims.SessionID())
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if prev.SupersededBy != nil || prev.RevokedAt != nil {
		t.Fatalf("expired refresh must not touch the session: %+v", prev)
	}
}

func TestRefresh_MissingOrGarbageCookie(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	for name, mutate := range map[string]func(*http.Request){
		"missing": nil,
		"garbage": withCookie("refresh_token", "not-a-jwt"),
	} {
		rr := f.do(t, http.MethodPost, "/auth/refresh", nil, mutate)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status=%d", name, rr.Code)
		}
		if e := decodeError(t, rr); e.Code != "INVALID_SESSION" {
			t.Fatalf("%s: code=%q", name, e.Code)
		}
	}
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	login := f.login(t, "a@x.com")

	rr := f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", login.AccessToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestRefresh_ReuseRevokesAllSessions(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	first := f.login(t, "a@x.com")
	second := f.login(t, "a@x.com")

	rr := f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", first.RefreshToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("first refresh: status=%d", rr.Code)
	}
	rotated := cookieByName(rr, "refresh_token")

	rr = f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", first.RefreshToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("reuse: status=%d", rr.Code)
	}

	for name, tok := range map[string]string{"rotated": rotated.Value, "second": second.RefreshToken} {
		rr = f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", tok))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s session should be revoked after reuse, status=%d", name, rr.Code)
		}
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	wrong := f.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "a@x.com", Password: "not-the-password"}, nil)
	unknown := f.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "nobody@x.com", Password: "not-the-password"}, nil)

	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("status wrong=%d unknown=%d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("bodies differ:\n%s\n%s", wrong.Body.String(), unknown.Body.String())
	}
	if e := decodeError(t, wrong); e.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("code=%q", e.Code)
	}
	if len(wrong.Result().Cookies()) != 0 {
		t.Fatalf("failed login must not set cookies")
	}
}

func TestLogin_BadRequest(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "missing password", body: loginRequest{Email: "a@x.com"}},
		{name: "missing email", body: loginRequest{Password: "secret123"}},
		{name: "unknown field", body: map[string]string{"email": "a@x.com", "password": "secret123", "x": "y"}},
	}
	for _, tc := range tests {
		rr := f.do(t, http.MethodPost, "/auth/login", tc.body, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", tc.name, rr.Code)
		}
		if e := decodeError(t, rr); e.Code != "INVALID_REQUEST" {
			t.Fatalf("%s: code=%q", tc.name, e.Code)
		}
	}
}

func TestLogout_IsAlwaysOK(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	login := f.login(t, "a@x.com")

	for i := 0; i < 2; i++ {
		rr := f.do(t, http.MethodPost, "/auth/logout", nil, withCookie("refresh_token", login.RefreshToken))
		if rr.Code != http.StatusOK {
			t.Fatalf("logout #%d: status=%d", i+1, rr.Code)
		}
		assertCookiesCleared(t, rr)
	}

	rr := f.do(t, http.MethodPost, "/auth/logout", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout without cookie: status=%d", rr.Code)
	}
	assertCookiesCleared(t, rr)

	rr = f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", login.RefreshToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status=%d", rr.Code)
	}
}

func assertCookiesCleared(t *testing.T, rr interface {
	Result() *http.Response
}) {
	t.Helper()
	want := map[string]string{"access_token": "/", "refresh_token": "/auth"}
	got := rr.Result().Cookies()
	if len(got) != len(want) {
		t.Fatalf("expected %d cleared cookies, got %v", len(want), got)
	}
	for _, c := range got {
		path, ok := want[c.Name]
		if !ok {
			t.Fatalf("unexpected cookie %q", c.Name)
		}
		if c.Path != path || c.MaxAge >= 0 || c.Value != "" {
			t.Fatalf("cookie %s not cleared: %+v", c.Name, c)
		}
	}
}

func TestSignup(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/users", signupRequest{Email: "new@x.com", Password: "long-enough-1", Name: "New", Role: "USER"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("signup: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var u userResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.ID == "" || u.Email != "new@x.com" || u.Role != "USER" {
		t.Fatalf("unexpected user: %+v", u)
	}

	tests := []struct {
		name string
		req  signupRequest
		code int
		want string
	}{
		{name: "duplicate", req: signupRequest{Email: "NEW@x.com", Password: "long-enough-1", Name: "Dup", Role: "USER"}, code: http.StatusConflict, want: "CONFLICT"},
		{name: "bad email", req: signupRequest{Email: "nope", Password: "long-enough-1", Name: "X", Role: "USER"}, code: http.StatusBadRequest, want: "INVALID_REQUEST"},
		{name: "short password", req: signupRequest{Email: "s@x.com", Password: "short", Name: "X", Role: "USER"}, code: http.StatusBadRequest, want: "INVALID_REQUEST"},
		{name: "missing name", req: signupRequest{Email: "n@x.com", Password: "long-enough-1", Role: "USER"}, code: http.StatusBadRequest, want: "INVALID_REQUEST"},
		{name: "bad role", req: signupRequest{Email: "r@x.com", Password: "long-enough-1", Name: "X", Role: "ROOT"}, code: http.StatusBadRequest, want: "INVALID_REQUEST"},
	}
	for _, tc := range tests {
		rr := f.do(t, http.MethodPost, "/users", tc.req, nil)
		if rr.Code != tc.code {
			t.Fatalf("%s: status=%d body=%s", tc.name, rr.Code, rr.Body.String())
		}
		if e := decodeError(t, rr); e.Code != tc.want {
			t.Fatalf("%s: code=%q", tc.name, e.Code)
		}
	}
}

func TestSignup_AdminRoleRequiresAdmin(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	req := signupRequest{Email: "mallory@x.com", Password: "long-enough-1", Name: "Mallory", Role: "ADMIN"}
	for _, role := range []string{"ADMIN", "admin", " Admin "} {
		req.Role = role
		rr := f.do(t, http.MethodPost, "/users", req, nil)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("anonymous %q signup: status=%d body=%s", role, rr.Code, rr.Body.String())
		}
		if e := decodeError(t, rr); e.Code != "AUTH_403" {
			t.Fatalf("anonymous %q signup: code=%q", role, e.Code)
		}
	}
	if _, err := f.users.GetUserAuthByEmail(context.Background(), "mallory@x.com"); !identity.IsNotFound(err) {
		t.Fatalf("refused signup must not create an account, got %v", err)
	}

	// A plain user cannot escalate either, and so cannot delete others.
	alice := f.login(t, "a@x.com")
	req.Role = "ADMIN"
	rr := f.do(t, http.MethodPost, "/users", req, withBearer(alice.AccessToken))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("user signup of admin: status=%d", rr.Code)
	}
	rr = f.do(t, http.MethodDelete, "/users/"+f.bob.ID, nil, withBearer(alice.AccessToken))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("user delete of other: status=%d", rr.Code)
	}

	admin := f.login(t, "root@x.com")
	rr = f.do(t, http.MethodPost, "/users", req, withBearer(admin.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("admin signup of admin: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var u userResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Role != "ADMIN" {
		t.Fatalf("role=%q, want ADMIN", u.Role)
	}
}

func TestMe(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	login := f.login(t, "a@x.com")

	rr := f.do(t, http.MethodGet, "/me", nil, withBearer(login.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("bearer: status=%d", rr.Code)
	}
	var u userResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.ID != f.alice.ID {
		t.Fatalf("me=%s, want %s", u.ID, f.alice.ID)
	}

	rr = f.do(t, http.MethodGet, "/me", nil, withCookie("access_token", login.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("cookie: status=%d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/me", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status=%d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "AUTH_401" {
		t.Fatalf("code=%q", e.Code)
	}

	// A refresh token is not an access credential.
	rr = f.do(t, http.MethodGet, "/me", nil, withBearer(login.RefreshToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh as bearer: status=%d", rr.Code)
	}

	f.clock.Advance(16 * time.Minute)
	rr = f.do(t, http.MethodGet, "/me", nil, func(r *http.Request) {
		withBearer(login.AccessToken)(r)
		r.Header.Set("Accept", "text/html")
	})
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/login" {
		t.Fatalf("expired browser request: status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestGetUser(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	login := f.login(t, "a@x.com")

	rr := f.do(t, http.MethodGet, "/users/"+f.bob.ID, nil, withBearer(login.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	rr = f.do(t, http.MethodGet, "/users/01HZZZZZZZZZZZZZZZZZZZZZZZ", nil, withBearer(login.AccessToken))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing user: status=%d", rr.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	ctx := context.Background()

	alice := f.login(t, "a@x.com")
	bob := f.login(t, "b@x.com")
	admin := f.login(t, "root@x.com")

	rr := f.do(t, http.MethodDelete, "/users/"+f.bob.ID, nil, withBearer(alice.AccessToken))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("non-admin deleting another user: status=%d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "AUTH_403" {
		t.Fatalf("code=%q", e.Code)
	}

	rr = f.do(t, http.MethodDelete, "/users/"+f.alice.ID, nil, withBearer(alice.AccessToken))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("self delete: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if _, err := f.users.GetUserByID(ctx, f.alice.ID); !identity.IsNotFound(err) {
		t.Fatalf("alice should be gone, err=%v", err)
	}
	claims, err := f.codec.Verify(alice.RefreshToken, f.clock.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := f.store.Find(ctx, claims.SessionID()); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("alice's sessions should be deleted, err=%v", err)
	}

	rr = f.do(t, http.MethodDelete, "/users/"+f.bob.ID, nil, withBearer(admin.AccessToken))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("admin delete: status=%d", rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", bob.RefreshToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("deleted user's refresh: status=%d", rr.Code)
	}

	rr = f.do(t, http.MethodDelete, "/users/"+f.bob.ID, nil, withBearer(admin.AccessToken))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: status=%d", rr.Code)
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/auth/login", nil, nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestMetrics_CountOutcomes(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	login := f.login(t, "a@x.com")
	f.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "a@x.com", Password: "wrong-password"}, nil)
	f.do(t, http.MethodPost, "/auth/refresh", nil, withCookie("refresh_token", login.RefreshToken))
	f.do(t, http.MethodPost, "/auth/refresh", nil, nil)
	f.do(t, http.MethodPost, "/auth/logout", nil, nil)

	checks := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"huddle_auth_login_total", map[string]string{"result": "success"}, 1},
		{"huddle_auth_login_total", map[string]string{"result": "invalid_credentials"}, 1},
		{"huddle_auth_refresh_total", map[string]string{"result": "success"}, 1},
		{"huddle_auth_refresh_total", map[string]string{"result": "invalid_token"}, 1},
		{"huddle_auth_logout_total", map[string]string{"result": "skipped"}, 1},
	}
	for _, c := range checks {
		if got := f.counterValue(t, c.name, c.labels); got != c.want {
			t.Fatalf("%s%v=%v, want %v", c.name, c.labels, got, c.want)
		}
	}
}
