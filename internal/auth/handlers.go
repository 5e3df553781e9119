// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/studygate/studygate/internal/config"
	"github.com/studygate/studygate/internal/logging"
	"github.com/studygate/studygate/internal/models"
	"github.com/studygate/studygate/internal/store"
)

// maxLoginBodyBytes bounds the login request body.
const maxLoginBodyBytes = 1 << 20

// genericCredentialsMessage is the 401 message for every credential
// failure. Unknown-email and wrong-password responses must be identical so
// accounts cannot be enumerated.
const genericCredentialsMessage = "Invalid email or password"

// Handler orchestrates the login flow and the CSRF token endpoints.
type Handler struct {
	cfg     *config.Config
	jwt     *JWTManager
	users   store.UserStore
	limiter *LoginLimiter
	csrf    *CSRFProtector

	// verifyLimiter bounds concurrent bcrypt work so a login flood cannot
	// starve the process of CPU.
	verifyLimiter *rate.Limiter

	// dummyHash is compared against when the user does not exist, so the
	// not-found path costs the same as a real password check.
	dummyHash []byte
}

// NewHandler builds the auth handler. The dummy hash is precomputed once at
// the configured cost.
func NewHandler(cfg *config.Config, jwtMgr *JWTManager, users store.UserStore, csrf *CSRFProtector) (*Handler, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("studygate.dummy.comparison.v1"), cfg.Security.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("precompute dummy hash: %w", err)
	}

	return &Handler{
		cfg:           cfg,
		jwt:           jwtMgr,
		users:         users,
		limiter:       NewLoginLimiter(cfg.Security.LoginMaxAttempts, cfg.Security.LoginLockoutWindow),
		csrf:          csrf,
		verifyLimiter: rate.NewLimiter(rate.Limit(cfg.Security.VerifyRatePerSecond), cfg.Security.VerifyBurst),
		dummyHash:     dummy,
	}, nil
}

// Limiter exposes the login limiter for background cleanup.
func (h *Handler) Limiter() *LoginLimiter { return h.limiter }

// Login handles POST /api/v1/auth/login.
//
// Checkpoints run strictly in order: config check, input validation, rate
// limit, credential lookup, password verification, token issuance. A
// failure at any checkpoint rejects the request with its specific error
// kind; credential failures additionally record a rate-limiter failure for
// the email before responding.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(loginDuration)
	defer timer.ObserveDuration()

	// Config check comes first so a weak secret can never issue a token.
	if err := h.jwt.CheckSecret(); err != nil {
		loginAttempts.WithLabelValues("config_error").Inc()
		logging.Error().Err(err).Msg("Login blocked by configuration")
		respondError(w, http.StatusInternalServerError, models.CodeConfigurationError,
			"Configuration error", nil)
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		loginAttempts.WithLabelValues("validation_error").Inc()
		respondError(w, http.StatusBadRequest, models.CodeValidationError,
			"Request body must be JSON with email and password", nil)
		return
	}

	email, fieldErrs := ValidateLogin(body.Email, body.Password)
	if fieldErrs != nil {
		loginAttempts.WithLabelValues("validation_error").Inc()
		respondError(w, http.StatusBadRequest, models.CodeValidationError,
			"Invalid login request", fieldErrs)
		return
	}

	if allowed, remaining := h.limiter.Allowed(email); !allowed {
		loginAttempts.WithLabelValues("rate_limited").Inc()
		minutes := int(remaining.Minutes()) + 1
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(remaining.Seconds())+1))
		respondError(w, http.StatusTooManyRequests, models.CodeRateLimited,
			fmt.Sprintf("Too many login attempts. Try again in %d minutes", minutes), nil)
		return
	}

	user, err := h.users.FindActiveUserByEmail(r.Context(), email)
	switch {
	case errors.Is(err, store.ErrUnavailable):
		loginAttempts.WithLabelValues("upstream_error").Inc()
		respondError(w, http.StatusServiceUnavailable, models.CodeUpstreamUnavailable,
			"Service temporarily unavailable, please retry", nil)
		return

	case errors.Is(err, store.ErrNotFound):
		// Burn the same bcrypt cost as the real path before rejecting, so
		// unknown-email and wrong-password take comparable work.
		h.compareDummy(r, body.Password)
		h.rejectCredentials(w, email)
		return

	case err != nil:
		loginAttempts.WithLabelValues("internal_error").Inc()
		logging.Error().Err(err).Msg("User lookup failed")
		respondError(w, http.StatusInternalServerError, models.CodeInternalError,
			"Internal server error", nil)
		return
	}

	if err := h.verifyLimiter.Wait(r.Context()); err != nil {
		loginAttempts.WithLabelValues("internal_error").Inc()
		respondError(w, http.StatusInternalServerError, models.CodeInternalError,
			"Internal server error", nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
		h.rejectCredentials(w, email)
		return
	}

	h.limiter.Clear(email)

	if err := h.users.TouchLastLogin(r.Context(), user.ID); err != nil {
		// Non-fatal: the login stands even if the timestamp write fails.
		logging.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to update last login")
	}

	token, _, err := h.jwt.Issue(user)
	if err != nil {
		loginAttempts.WithLabelValues("internal_error").Inc()
		logging.Error().Err(err).Msg("Token issuance failed")
		respondError(w, http.StatusInternalServerError, models.CodeInternalError,
			"Internal server error", nil)
		return
	}

	loginAttempts.WithLabelValues("success").Inc()
	logging.Info().Str("user_id", user.ID).Str("email", logging.Sanitize(user.Email)).Msg("Login succeeded")

	respondJSON(w, http.StatusOK, &models.LoginResponse{
		Success:   true,
		Message:   "Login successful",
		User:      user.Public(),
		Token:     token,
		ExpiresIn: int64(h.cfg.Security.TokenLifetime.Seconds()),
	})
}

// compareDummy performs the dummy bcrypt comparison used on the not-found
// path. The result is deliberately ignored.
func (h *Handler) compareDummy(r *http.Request, password string) {
	if err := h.verifyLimiter.Wait(r.Context()); err != nil {
		return
	}
	//nolint:errcheck // comparison exists only for timing equivalence
	bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

// rejectCredentials records the failure and writes the generic 401. Both
// the unknown-user and wrong-password paths end here, identically.
func (h *Handler) rejectCredentials(w http.ResponseWriter, email string) {
	h.limiter.RecordFailure(email)
	loginAttempts.WithLabelValues("invalid_credentials").Inc()
	respondError(w, http.StatusUnauthorized, models.CodeAuthenticationError,
		genericCredentialsMessage, nil)
}

// CSRFToken handles GET /api/v1/auth/csrf-token: issues a fresh token for
// the session and sets the double-submit cookie.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.IssueToken(w, r)
	if err != nil {
		logging.Error().Err(err).Msg("CSRF token generation failed")
		respondError(w, http.StatusInternalServerError, models.CodeInternalError,
			"Internal server error", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.CSRFTokenResponse{Success: true, CSRFToken: token})
}

// Logout handles POST /api/v1/auth/logout: invalidates the session's CSRF
// tokens and expires the cookie. Bearer tokens are stateless and remain
// valid until expiry.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.csrf.InvalidateSession(w, r)
	respondJSON(w, http.StatusOK, &models.MessageResponse{Success: true, Message: "Logged out"})
}
