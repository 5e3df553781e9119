// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/studygate/studygate/internal/config"
	"github.com/studygate/studygate/internal/models"
)

func testCSRFConfig() *config.CSRFConfig {
	return &config.CSRFConfig{
		TokenLifetime:       time.Hour,
		MaxTokensPerSession: 10,
		SweepInterval:       5 * time.Minute,
		CookieName:          "_csrf",
		SkipPaths:           []string{"/api/v1/auth/login"},
	}
}

func newTestProtector() *CSRFProtector {
	return NewCSRFProtector(testCSRFConfig(), []string{"http://localhost:8080"})
}

func newSessionRequest(method, path string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set("User-Agent", "test-browser/1.0")
	return r
}

func TestCSRFProtector_IssueAndVerify(t *testing.T) {
	p := newTestProtector()

	w := httptest.NewRecorder()
	token, err := p.IssueToken(w, newSessionRequest(http.MethodGet, "/api/v1/auth/csrf-token"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("token should not be empty")
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "_csrf" || cookies[0].Value != token {
		t.Fatalf("double-submit cookie not set correctly: %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("cookie should be HttpOnly")
	}
	if cookies[0].SameSite != http.SameSiteStrictMode {
		t.Error("cookie should be SameSite=Strict")
	}

	req := newSessionRequest(http.MethodPost, "/api/v1/units/u1")
	req.Header.Set("X-Csrf-Token", token)
	if err := p.VerifyToken(req); err != nil {
		t.Errorf("stored token should verify: %v", err)
	}
}

func TestCSRFProtector_TokenSources(t *testing.T) {
	p := newTestProtector()
	token, err := p.IssueToken(httptest.NewRecorder(), newSessionRequest(http.MethodGet, "/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Alternate header name.
	req := newSessionRequest(http.MethodPost, "/x")
	req.Header.Set("X-Xsrf-Token", token)
	if err := p.VerifyToken(req); err != nil {
		t.Errorf("X-Xsrf-Token header should be accepted: %v", err)
	}

	// Form field.
	req = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("_csrf="+token))
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "test-browser/1.0")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := p.VerifyToken(req); err != nil {
		t.Errorf("_csrf form field should be accepted: %v", err)
	}

	// Query parameter.
	req = newSessionRequest(http.MethodPost, "/x?_csrf="+token)
	if err := p.VerifyToken(req); err != nil {
		t.Errorf("_csrf query parameter should be accepted: %v", err)
	}
}

func TestCSRFProtector_DoubleSubmitFallback(t *testing.T) {
	p := newTestProtector()

	// A token unknown to the store still validates when it matches the
	// cookie (stateless deployment).
	req := newSessionRequest(http.MethodPost, "/x")
	req.Header.Set("X-Csrf-Token", "opaque-cookie-token")
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: "opaque-cookie-token"})
	if err := p.VerifyToken(req); err != nil {
		t.Errorf("cookie-matching token should verify: %v", err)
	}

	// Mismatched cookie fails.
	req = newSessionRequest(http.MethodPost, "/x")
	req.Header.Set("X-Csrf-Token", "one-value")
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: "different-value"})
	if err := p.VerifyToken(req); err == nil {
		t.Error("mismatched cookie should not verify")
	}
}

func TestCSRFProtector_MissingToken(t *testing.T) {
	p := newTestProtector()
	if err := p.VerifyToken(newSessionRequest(http.MethodPost, "/x")); err == nil {
		t.Error("request without a token should fail")
	}
}

func TestCSRFTokenStore_CapEvictsOldest(t *testing.T) {
	store := newCSRFTokenStore(time.Hour, 10)

	var first string
	for i := 0; i < 11; i++ {
		token, err := store.generate("session-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if i == 0 {
			first = token
		}
	}

	if n := store.count("session-1"); n != 10 {
		t.Errorf("expected exactly 10 tokens after cap eviction, got %d", n)
	}
	if store.valid("session-1", first) {
		t.Error("oldest token should have been evicted")
	}
}

func TestCSRFTokenStore_Expiry(t *testing.T) {
	store := newCSRFTokenStore(time.Hour, 10)

	base := time.Now()
	store.now = func() time.Time { return base }
	token, err := store.generate("session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !store.valid("session-1", token) {
		t.Fatal("fresh token should be valid")
	}

	store.now = func() time.Time { return base.Add(61 * time.Minute) }
	if store.valid("session-1", token) {
		t.Error("expired token should not be valid")
	}
}

func TestCSRFTokenStore_SweepRemovesExpiredAndEmptySessions(t *testing.T) {
	store := newCSRFTokenStore(time.Hour, 10)

	base := time.Now()
	store.now = func() time.Time { return base }
	if _, err := store.generate("stale"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	fresh, err := store.generate("fresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if removed := store.sweep(); removed != 1 {
		t.Errorf("expected 1 token removed, got %d", removed)
	}

	store.mu.Lock()
	_, staleExists := store.sessions["stale"]
	store.mu.Unlock()
	if staleExists {
		t.Error("session emptied by the sweep should be deleted")
	}
	if !store.valid("fresh", fresh) {
		t.Error("fresh token should survive the sweep")
	}
}

func TestCSRFMiddleware_OriginCheckedBeforeToken(t *testing.T) {
	p := newTestProtector()
	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// No Origin/Referer at all: rejected with the origin code even though
	// the token is also missing.
	req := newSessionRequest(http.MethodPost, "/api/v1/units/u1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Error != models.CodeCSRFInvalidOrigin {
		t.Errorf("error code = %q, want %q", resp.Error, models.CodeCSRFInvalidOrigin)
	}
}

func TestCSRFMiddleware_BadTokenAfterGoodOrigin(t *testing.T) {
	p := newTestProtector()
	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := newSessionRequest(http.MethodPost, "/api/v1/units/u1")
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("X-Csrf-Token", "bogus")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Error != models.CodeCSRFTokenInvalid {
		t.Errorf("error code = %q, want %q", resp.Error, models.CodeCSRFTokenInvalid)
	}
}

func TestCSRFMiddleware_SafeMethodsAndSkipPathsBypass(t *testing.T) {
	p := newTestProtector()
	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// GET bypasses entirely.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newSessionRequest(http.MethodGet, "/api/v1/units/u1"))
	if w.Code != http.StatusOK {
		t.Errorf("GET should bypass CSRF, got %d", w.Code)
	}

	// Login is on the skip-list even for POST.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newSessionRequest(http.MethodPost, "/api/v1/auth/login"))
	if w.Code != http.StatusOK {
		t.Errorf("skip-listed path should bypass CSRF, got %d", w.Code)
	}

	// Referer alone satisfies the origin requirement.
	token, err := p.IssueToken(httptest.NewRecorder(), newSessionRequest(http.MethodGet, "/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := newSessionRequest(http.MethodPost, "/api/v1/units/u1")
	req.Header.Set("Referer", "http://localhost:8080/units/u1")
	req.Header.Set("X-Csrf-Token", token)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid referer and token should pass, got %d", w.Code)
	}
}

func TestCSRFProtector_SessionsAreIsolated(t *testing.T) {
	p := newTestProtector()

	token, err := p.IssueToken(httptest.NewRecorder(), newSessionRequest(http.MethodGet, "/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same token presented from a different client fingerprint, without
	// the cookie: store lookup must miss.
	other := httptest.NewRequest(http.MethodPost, "/x", nil)
	other.RemoteAddr = "198.51.100.9:40000"
	other.Header.Set("User-Agent", "other-browser/2.0")
	other.Header.Set("X-Csrf-Token", token)
	if err := p.VerifyToken(other); err == nil {
		t.Error("token should not validate for a different session")
	}
}

func TestCSRFProtector_InvalidateSession(t *testing.T) {
	p := newTestProtector()

	token, err := p.IssueToken(httptest.NewRecorder(), newSessionRequest(http.MethodGet, "/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	p.InvalidateSession(w, newSessionRequest(http.MethodPost, "/logout"))

	req := newSessionRequest(http.MethodPost, "/x")
	req.Header.Set("X-Csrf-Token", token)
	if err := p.VerifyToken(req); err == nil {
		t.Error("tokens should be invalid after session invalidation")
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Error("invalidation should expire the cookie")
	}
}
