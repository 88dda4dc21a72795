package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"huddle/cmd/identity"
	"huddle/cmd/internal/auth/session"
	"huddle/cmd/security/password"
	"huddle/cmd/security/token"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type apiFixture struct {
	srv      http.Handler
	cfg      Config
	codec    *session.Codec
	store    *session.MemoryStore
	users    *identity.MemoryStore
	metrics  *Metrics
	audit    *recordingExecer
	reg      *prometheus.Registry
	clock    *testClock
	alice    identity.User
	bob      identity.User
	admin    identity.User
	password string
}

func cheapPasswords() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	codec, err := session.NewCodec(session.CodecConfig{
		Issuer:     "huddle-test",
		SigningKey: testSigningKey,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	pw := cheapPasswords()
	dummy, err := pw.Hash("dummy-password-for-timing-only")
	if err != nil {
		t.Fatalf("dummy hash: %v", err)
	}

	users := identity.NewMemoryStore(pw)
	store := session.NewMemoryStore()
	svc, err := session.NewService(codec, store, NewAccounts(users), pw,
		session.WithTokenHasher(token.NewHasher(nil)),
		session.WithDummyHash(dummy),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	cfg := DefaultConfig()
	gate := NewGate(codec, cfg, NewResponder(cfg), WithGateMetrics(metrics), WithGateClock(clock.Now))
	auditDB := &recordingExecer{}
	audit, err := NewAuditLog(auditDB, "", nil)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	h, err := NewHandler(nil, cfg, svc, users, gate, WithMetrics(metrics), WithAudit(audit), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	f := &apiFixture{
		srv:      gate.Middleware(mux),
		cfg:      cfg,
		codec:    codec,
		store:    store,
		users:    users,
		metrics:  metrics,
		audit:    auditDB,
		reg:      reg,
		clock:    clock,
		password: "secret123",
	}
	f.alice = f.createUser(t, "a@x.com", "Alice", identity.RoleUser)
	f.bob = f.createUser(t, "b@x.com", "Bob", identity.RoleUser)
	f.admin = f.createUser(t, "root@x.com", "Root", identity.RoleAdmin)
	return f
}

func (f *apiFixture) createUser(t *testing.T, email, name string, role identity.Role) identity.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), identity.CreateUserInput{
		Email:    email,
		Name:     name,
		Role:     role,
		Password: f.password,
		Now:      f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) login(t *testing.T, email string) loginResponse {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: f.password}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: status=%d body=%s", email, rr.Code, rr.Body.String())
	}
	var out loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return out
}

func withCookie(name, value string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func withBearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return out
}

func cookieByName(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// counterValue reads a counter from the fixture registry; 0 when absent.
func (f *apiFixture) counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
