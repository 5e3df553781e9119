// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package authz

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/studygate/studygate/internal/auth"
	"github.com/studygate/studygate/internal/logging"
	"github.com/studygate/studygate/internal/models"
)

// Middleware enforces role permissions for routes. It must be mounted
// after auth.RequireAuth so claims are present in the request context.
type Middleware struct {
	enforcer *Enforcer
}

// NewMiddleware creates the authorization middleware.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// Require enforces that the authenticated role is allowed the given
// object/action pair.
func (m *Middleware) Require(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeForbidden(w, "Authentication required")
				return
			}

			allowed, err := m.enforcer.Enforce(claims.Role, object, action)
			if err != nil {
				logging.Error().Err(err).Msg("Authorization error")
				writeError(w, http.StatusInternalServerError, models.CodeInternalError,
					"Internal server error")
				return
			}
			if !allowed {
				logging.Warn().
					Str("role", claims.Role).
					Str("object", object).
					Str("action", action).
					Msg("Authorization denied")
				writeForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRequest enforces permissions derived from the request itself:
// the URL path as object and the HTTP method as action.
func (m *Middleware) RequireRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeForbidden(w, "Authentication required")
			return
		}

		allowed, err := m.enforcer.Enforce(claims.Role, r.URL.Path, r.Method)
		if err != nil {
			logging.Error().Err(err).Msg("Authorization error")
			writeError(w, http.StatusInternalServerError, models.CodeInternalError,
				"Internal server error")
			return
		}
		if !allowed {
			writeForbidden(w, "Insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, models.CodeAuthorizationError, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing useful to do if the client went away
	json.NewEncoder(w).Encode(&models.ErrorResponse{
		Success: false,
		Error:   code,
		Message: message,
	})
}
