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

	"github.com/studygate/studygate/internal/models"
)

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Error("claims missing from context inside protected handler")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-User", claims.UserID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_ValidToken(t *testing.T) {
	mgr := NewJWTManager(testSecurityConfig())
	token, _, err := mgr.Issue(testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := RequireAuth(mgr)(protectedEcho(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-User"); got != "user-1" {
		t.Errorf("X-User = %q, want user-1", got)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	mgr := NewJWTManager(testSecurityConfig())

	expired := NewJWTManager(testSecurityConfig())
	past := time.Now().Add(-30 * 24 * time.Hour)
	expired.now = func() time.Time { return past }
	expiredToken, _, err := expired.Issue(testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	foreign := testSecurityConfig()
	foreign.SigningSecret = strings.Repeat("z", 48)
	foreignToken, _, err := NewJWTManager(foreign).Issue(testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not.a.token"},
		{"expired token", "Bearer " + expiredToken},
		{"wrong signature", "Bearer " + foreignToken},
	}

	handler := RequireAuth(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("protected handler should not run")
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestRequireAuth_ConfigErrorIs500(t *testing.T) {
	weak := testSecurityConfig()
	weak.SigningSecret = "short"
	handler := RequireAuth(NewJWTManager(weak))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("protected handler should not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), models.CodeConfigurationError) {
		t.Errorf("body should carry the configuration error code: %s", w.Body.String())
	}
}
