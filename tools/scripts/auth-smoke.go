// Package main is a CI-friendly smoke test for the Huddle auth flow.
//
// It validates:
//   - signup (an existing account is fine)
//   - login sets both cookies
//   - GET /me with the access token
//   - refresh rotates the refresh cookie
//   - the superseded refresh token is rejected
//   - logout clears cookies and kills the session
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type smoke struct {
	base    string
	client  *http.Client
	verbose bool
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		email    = flag.String("email", "smoke@example.com", "Account email")
		password = flag.String("password", "smoke-password-1", "Account password")
		timeout  = flag.Duration("timeout", 5*time.Second, "Per-request timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	u, err := url.Parse(*baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fatalf("invalid -url %q", *baseURL)
	}

	s := &smoke{
		base:    strings.TrimRight(*baseURL, "/"),
		client:  &http.Client{Timeout: *timeout},
		verbose: *verbose,
	}

	status, _, _ := s.post("/users", map[string]string{
		"email": *email, "password": *password, "name": "Smoke", "role": "USER",
	}, nil)
	if status != http.StatusOK && status != http.StatusConflict {
		fatalf("signup: status %d", status)
	}

	status, body, res := s.post("/auth/login", map[string]string{"email": *email, "password": *password}, nil)
	if status != http.StatusOK {
		fatalf("login: status %d: %s", status, body)
	}
	var login struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	mustDecode(body, &login)
	refresh := mustCookie(res, "refresh_token")
	mustCookie(res, "access_token")

	status, body = s.get("/me", login.AccessToken)
	if status != http.StatusOK {
		fatalf("me: status %d: %s", status, body)
	}

	status, body, res = s.post("/auth/refresh", nil, refresh)
	if status != http.StatusOK {
		fatalf("refresh: status %d: %s", status, body)
	}
	rotated := mustCookie(res, "refresh_token")
	if rotated.Value == refresh.Value {
		fatalf("refresh: cookie was not rotated")
	}

	if status, _, _ = s.post("/auth/refresh", nil, refresh); status != http.StatusUnauthorized {
		fatalf("replayed refresh: want 401, got %d", status)
	}

	status, _, res = s.post("/auth/logout", nil, rotated)
	if status != http.StatusOK {
		fatalf("logout: status %d", status)
	}
	if c := mustCookie(res, "refresh_token"); c.MaxAge >= 0 {
		fatalf("logout: refresh cookie not cleared")
	}

	fmt.Println("auth smoke: ok")
}

func (s *smoke) post(path string, body any, cookie *http.Cookie) (int, []byte, *http.Response) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("encode %s: %v", path, err)
		}
		rd = bytes.NewReader(b)
	}
	req := s.request(http.MethodPost, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Cookies are Secure, so a jar would not replay them over plain http.
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return s.do(req)
}

func (s *smoke) get(path, bearer string) (int, []byte) {
	req := s.request(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	status, body, _ := s.do(req)
	return status, body
}

func (s *smoke) request(method, path string, body io.Reader) *http.Request {
	req, err := http.NewRequest(method, s.base+path, body)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	return req
}

func (s *smoke) do(req *http.Request) (int, []byte, *http.Response) {
	res, err := s.client.Do(req)
	if err != nil {
		fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer func() { _ = res.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		fatalf("%s %s: read body: %v", req.Method, req.URL.Path, err)
	}
	if s.verbose {
		fmt.Printf("%s %s -> %d %s\n", req.Method, req.URL.Path, res.StatusCode, bytes.TrimSpace(body))
	}
	return res.StatusCode, body, res
}

func mustCookie(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	fatalf("response to %s missing cookie %q", res.Request.URL.Path, name)
	return nil
}

func mustDecode(body []byte, v any) {
	if err := json.Unmarshal(body, v); err != nil {
		fatalf("decode %q: %v", body, err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "auth smoke: "+format+"\n", args...)
	os.Exit(1)
}
