// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/studygate/studygate/internal/config"
	"github.com/studygate/studygate/internal/logging"
	"github.com/studygate/studygate/internal/models"
)

type contextKey string

// claimsContextKey carries verified bearer claims through the request
// context.
const claimsContextKey contextKey = "auth_claims"

// ClaimsFromContext returns the verified claims placed by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// ContextWithClaims returns a context carrying the given claims. Exposed
// for handler tests.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// RequireAuth returns middleware that demands a valid bearer token in the
// Authorization header. Verified claims are placed in the request context.
// Responses for missing, malformed, invalid, and expired tokens are all
// 401 with the same low-information message.
func RequireAuth(jwt *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				tokenVerifications.WithLabelValues("invalid").Inc()
				writeAuthError(w, http.StatusUnauthorized, models.CodeAuthenticationError,
					"Authentication required")
				return
			}

			claims, err := jwt.Verify(token)
			if err != nil {
				if errors.Is(err, config.ErrSigningSecretMissing) || errors.Is(err, config.ErrSigningSecretWeak) {
					tokenVerifications.WithLabelValues("config_error").Inc()
					logging.Error().Err(err).Msg("Token verification blocked by configuration")
					writeAuthError(w, http.StatusInternalServerError, models.CodeConfigurationError,
						"Configuration error")
					return
				}

				tokenVerifications.WithLabelValues(verifyOutcome(err)).Inc()
				writeAuthError(w, http.StatusUnauthorized, models.CodeAuthenticationError,
					"Invalid or expired token")
				return
			}

			tokenVerifications.WithLabelValues("success").Inc()
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// verifyOutcome maps a verification error to its metric label.
func verifyOutcome(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrTokenClaimMismatch):
		return "claim_mismatch"
	default:
		return "invalid"
	}
}

// writeAuthError writes an error envelope from auth middleware.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	respondError(w, status, code, message, nil)
}
