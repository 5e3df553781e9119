// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

// Package auth implements the authentication and request-integrity core:
// bearer token issuance and verification, login rate limiting, CSRF
// protection, and the login request handler.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/studygate/studygate/internal/config"
	"github.com/studygate/studygate/internal/models"
)

// Token verification errors. Mapping order follows actionability: a bad
// signature is reported before a claim mismatch, which is reported before
// expiry.
var (
	ErrTokenBadSignature  = errors.New("token signature invalid")
	ErrTokenClaimMismatch = errors.New("token issuer or audience mismatch")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
)

// Claims are the bearer token claims: identity, email, and role on top of
// the registered claim set.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies bearer tokens with HS256. The signing
// secret is fetched through the config guard on every call so a weak or
// missing secret surfaces as a configuration error instead of a silently
// weak token.
type JWTManager struct {
	cfg *config.SecurityConfig
	now func() time.Time
}

// NewJWTManager creates a token manager for the given security config.
func NewJWTManager(cfg *config.SecurityConfig) *JWTManager {
	return &JWTManager{cfg: cfg, now: time.Now}
}

// CheckSecret runs the secret guard without signing anything. The login
// handler calls this first so misconfiguration is rejected before any
// request processing.
func (m *JWTManager) CheckSecret() error {
	_, err := m.cfg.VerifiedSigningSecret()
	return err
}

// Issue creates a signed token for the user. Returns the token and its
// expiry time.
func (m *JWTManager) Issue(user *models.User) (string, time.Time, error) {
	secret, err := m.cfg.VerifiedSigningSecret()
	if err != nil {
		return "", time.Time{}, err
	}

	now := m.now()
	expiresAt := now.Add(m.cfg.TokenLifetime)

	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.TokenIssuer,
			Audience:  jwt.ClaimStrings{m.cfg.TokenAudience},
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify parses and validates a token. Verification fails closed: any parse
// or validation failure yields an error, never a partially trusted claim
// set. Signature is checked before issuer/audience binding, which is
// checked before expiry.
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	secret, err := m.cfg.VerifiedSigningSecret()
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.TokenIssuer),
		jwt.WithAudience(m.cfg.TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, mapTokenError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// mapTokenError converts jwt library errors to the package's sentinel
// errors in actionability order.
func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %s", ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %s", ErrTokenClaimMismatch, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %s", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}
}
