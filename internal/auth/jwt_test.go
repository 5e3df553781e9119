// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/studygate/studygate/internal/config"
	"github.com/studygate/studygate/internal/models"
)

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		SigningSecret: strings.Repeat("s", 48),
		TokenLifetime: 7 * 24 * time.Hour,
		TokenIssuer:   "studygate",
		TokenAudience: "studygate-web",
	}
}

func testUser() *models.User {
	return &models.User{
		ID:     "user-1",
		Email:  "a@b.com",
		Role:   models.RoleEditor,
		Active: true,
	}
}

func TestJWTManager_IssueAndVerify(t *testing.T) {
	mgr := NewJWTManager(testSecurityConfig())

	issuedAt := time.Now().Truncate(time.Second)
	mgr.now = func() time.Time { return issuedAt }

	token, expiresAt, err := mgr.Issue(testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := issuedAt.Add(7 * 24 * time.Hour); !expiresAt.Equal(want) {
		t.Errorf("expiry = %v, want issuedAt + 7 days (%v)", expiresAt, want)
	}

	claims, err := mgr.Verify(token)
	if err != nil {
		t.Fatalf("verification failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID)
	}
	if claims.Email != "a@b.com" {
		t.Errorf("Email = %q, want a@b.com", claims.Email)
	}
	if claims.Role != "editor" {
		t.Errorf("Role = %q, want editor", claims.Role)
	}
	if !claims.ExpiresAt.Time.Equal(issuedAt.Add(7 * 24 * time.Hour)) {
		t.Errorf("claims expiry = %v, want issuedAt + 7 days", claims.ExpiresAt.Time)
	}
}

func TestJWTManager_BadSignature(t *testing.T) {
	issuer := NewJWTManager(testSecurityConfig())
	token, _, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	otherCfg := testSecurityConfig()
	otherCfg.SigningSecret = strings.Repeat("x", 48)
	verifier := NewJWTManager(otherCfg)

	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenBadSignature) {
		t.Errorf("expected ErrTokenBadSignature, got %v", err)
	}
}

func TestJWTManager_ClaimMismatch(t *testing.T) {
	issuerCfg := testSecurityConfig()
	issuerCfg.TokenIssuer = "someone-else"
	token, _, err := NewJWTManager(issuerCfg).Issue(testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewJWTManager(testSecurityConfig()).Verify(token); !errors.Is(err, ErrTokenClaimMismatch) {
		t.Errorf("expected ErrTokenClaimMismatch for issuer mismatch, got %v", err)
	}

	audCfg := testSecurityConfig()
	audCfg.TokenAudience = "another-app"
	token, _, err = NewJWTManager(audCfg).Issue(testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewJWTManager(testSecurityConfig()).Verify(token); !errors.Is(err, ErrTokenClaimMismatch) {
		t.Errorf("expected ErrTokenClaimMismatch for audience mismatch, got %v", err)
	}
}

func TestJWTManager_Expired(t *testing.T) {
	mgr := NewJWTManager(testSecurityConfig())

	issuedAt := time.Now()
	mgr.now = func() time.Time { return issuedAt }
	token, _, err := mgr.Issue(testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mgr.now = func() time.Time { return issuedAt.Add(7*24*time.Hour + time.Minute) }
	if _, err := mgr.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTManager_GarbageToken(t *testing.T) {
	mgr := NewJWTManager(testSecurityConfig())
	if _, err := mgr.Verify("not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestJWTManager_SecretGuard(t *testing.T) {
	weak := testSecurityConfig()
	weak.SigningSecret = "short"
	mgr := NewJWTManager(weak)

	if err := mgr.CheckSecret(); !errors.Is(err, config.ErrSigningSecretWeak) {
		t.Errorf("expected ErrSigningSecretWeak, got %v", err)
	}
	if _, _, err := mgr.Issue(testUser()); !errors.Is(err, config.ErrSigningSecretWeak) {
		t.Errorf("Issue should fail with weak secret, got %v", err)
	}

	missing := testSecurityConfig()
	missing.SigningSecret = ""
	if err := NewJWTManager(missing).CheckSecret(); !errors.Is(err, config.ErrSigningSecretMissing) {
		t.Errorf("expected ErrSigningSecretMissing, got %v", err)
	}
}
