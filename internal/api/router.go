// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

// Package api assembles the HTTP surface: routing, cross-cutting
// middleware, and the static upload file server.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studygate/studygate/internal/auth"
	"github.com/studygate/studygate/internal/authz"
	"github.com/studygate/studygate/internal/config"
	"github.com/studygate/studygate/internal/upload"
)

// Router wires handlers and middleware into the served handler.
type Router struct {
	cfg     *config.Config
	authH   *auth.Handler
	jwt     *auth.JWTManager
	csrf    *auth.CSRFProtector
	uploadH *upload.Handler
	authzMW *authz.Middleware
}

// NewRouter creates the router from its collaborators.
func NewRouter(cfg *config.Config, authH *auth.Handler, jwtMgr *auth.JWTManager, csrf *auth.CSRFProtector, uploadH *upload.Handler, authzMW *authz.Middleware) *Router {
	return &Router{
		cfg:     cfg,
		authH:   authH,
		jwt:     jwtMgr,
		csrf:    csrf,
		uploadH: uploadH,
		authzMW: authzMW,
	}
}

// Setup configures all routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(router.cfg.Security.AllowedOrigins))
	r.Use(SecurityHeaders)

	r.Get("/healthz", router.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Throttle(router.cfg.Server.ThrottlePerMinute))
		r.Use(router.csrf.Middleware)

		r.Route("/auth", func(r chi.Router) {
			// Login precedes CSRF token issuance and sits on the
			// protector's skip-list; its own limiter is stricter than the
			// group throttle.
			r.Post("/login", router.authH.Login)
			r.Get("/csrf-token", router.authH.CSRFToken)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(router.jwt))
				r.Post("/logout", router.authH.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(router.jwt))
			r.With(router.authzMW.Require("/api/v1/uploads", http.MethodPost)).
				Post("/uploads", router.uploadH.Upload)
		})
	})

	// Stored artifacts are served read-only under stable public URLs.
	uploadsDir := http.Dir(filepath.Clean(router.cfg.Upload.Dir))
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(uploadsFS{root: uploadsDir})))

	return r
}

// uploadsFS restricts the artifact file server to plain files: directory
// requests (which http.FileServer would answer with a listing) and
// dot-prefixed names (in-flight temp files) read as not found.
type uploadsFS struct {
	root http.FileSystem
}

func (u uploadsFS) Open(name string) (http.File, error) {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return nil, os.ErrNotExist
		}
	}

	f, err := u.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

// healthz reports liveness. Readiness is implicit: the process serves only
// after its stores opened.
func (router *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // HTTP response write errors are not recoverable
	w.Write([]byte(`{"status":"ok"}`))
}
