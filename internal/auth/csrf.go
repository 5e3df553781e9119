// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/studygate/studygate/internal/config"
	"github.com/studygate/studygate/internal/models"
)

// CSRF protection errors.
var (
	ErrCSRFTokenMissing  = errors.New("CSRF token missing")
	ErrCSRFTokenInvalid  = errors.New("CSRF token invalid")
	ErrCSRFInvalidOrigin = errors.New("request origin not allowed")
)

// csrfTokenBytes is the entropy of a generated token before encoding.
const csrfTokenBytes = 32

// csrfHeaderNames are the header names checked for a candidate token, in
// priority order.
var csrfHeaderNames = []string{"X-Csrf-Token", "X-Xsrf-Token", "Csrf-Token"}

// csrfFormField is the form field and query parameter name for the token.
const csrfFormField = "_csrf"

// protectedMethods are exactly the state-mutating HTTP methods. Safe
// methods bypass CSRF checks entirely.
var protectedMethods = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// csrfToken is one issued token with its expiry.
type csrfToken struct {
	value     string
	expiresAt time.Time
}

// csrfTokenStore holds per-session token sets. Sessions are identified by a
// stable client fingerprint; each session holds at most maxPerSession
// tokens, oldest evicted first.
type csrfTokenStore struct {
	mu            sync.Mutex
	sessions      map[string][]csrfToken
	lifetime      time.Duration
	maxPerSession int
	now           func() time.Time
}

func newCSRFTokenStore(lifetime time.Duration, maxPerSession int) *csrfTokenStore {
	return &csrfTokenStore{
		sessions:      make(map[string][]csrfToken),
		lifetime:      lifetime,
		maxPerSession: maxPerSession,
		now:           time.Now,
	}
}

// generate creates a high-entropy token for the session, evicting the
// oldest token when the per-session cap is exceeded.
func (s *csrfTokenStore) generate(sessionID string) (string, error) {
	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := append(s.sessions[sessionID], csrfToken{
		value:     token,
		expiresAt: s.now().Add(s.lifetime),
	})
	if len(tokens) > s.maxPerSession {
		tokens = tokens[len(tokens)-s.maxPerSession:]
	}
	s.sessions[sessionID] = tokens

	return token, nil
}

// valid reports whether the candidate exists unexpired in the session's
// set. Comparison is constant-time per stored token.
func (s *csrfTokenStore) valid(sessionID, candidate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	match := false
	for _, t := range s.sessions[sessionID] {
		if now.After(t.expiresAt) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(t.value), []byte(candidate)) == 1 {
			match = true
		}
	}
	return match
}

// invalidate removes all tokens for a session (logout).
func (s *csrfTokenStore) invalidate(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// count returns the number of unexpired tokens for a session.
func (s *csrfTokenStore) count(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, t := range s.sessions[sessionID] {
		if now.Before(t.expiresAt) {
			n++
		}
	}
	return n
}

// sweep removes expired tokens and sessions left empty. Expiry is also
// checked at verification time, so the sweep only bounds memory growth.
func (s *csrfTokenStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for sessionID, tokens := range s.sessions {
		kept := tokens[:0]
		for _, t := range tokens {
			if now.Before(t.expiresAt) {
				kept = append(kept, t)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(s.sessions, sessionID)
		} else {
			s.sessions[sessionID] = kept
		}
	}
	return removed
}

// CSRFProtector implements the synchronizer-token + double-submit-cookie
// hybrid. A request token is valid if it exists unexpired in the session's
// server-side set OR matches the double-submit cookie; request origin must
// additionally match the allow-list on every protected request.
type CSRFProtector struct {
	cfg            *config.CSRFConfig
	store          *csrfTokenStore
	allowedOrigins map[string]struct{}
	skipPaths      map[string]struct{}
}

// NewCSRFProtector builds a protector from configuration. allowedOrigins
// entries are normalized to scheme://host[:port].
func NewCSRFProtector(cfg *config.CSRFConfig, allowedOrigins []string) *CSRFProtector {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if normalized, ok := normalizeOrigin(o); ok {
			origins[normalized] = struct{}{}
		}
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return &CSRFProtector{
		cfg:            cfg,
		store:          newCSRFTokenStore(cfg.TokenLifetime, cfg.MaxTokensPerSession),
		allowedOrigins: origins,
		skipPaths:      skip,
	}
}

// normalizeOrigin reduces a URL to its origin (scheme://host[:port]).
func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// SessionID derives the stable fallback fingerprint identifying the
// client's session: a hash of client IP and User-Agent.
func (p *CSRFProtector) SessionID(r *http.Request) string {
	sum := sha256.Sum256([]byte(ClientIP(r) + "\x00" + r.UserAgent()))
	return hex.EncodeToString(sum[:16])
}

// ClientIP extracts the client network identifier, preferring proxy
// headers over the socket address. Rate limiters key on this value.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

// IssueToken generates a token for the request's session, stores it, and
// sets it as the double-submit cookie.
func (p *CSRFProtector) IssueToken(w http.ResponseWriter, r *http.Request) (string, error) {
	token, err := p.store.generate(p.SessionID(r))
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     p.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(p.cfg.TokenLifetime.Seconds()),
		Secure:   p.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	return token, nil
}

// InvalidateSession drops the session's token set and expires the cookie.
func (p *CSRFProtector) InvalidateSession(w http.ResponseWriter, r *http.Request) {
	p.store.invalidate(p.SessionID(r))

	http.SetCookie(w, &http.Cookie{
		Name:     p.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   p.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ValidateOrigin requires an Origin or Referer header whose origin matches
// the allow-list. Absence of both is a hard reject.
func (p *CSRFProtector) ValidateOrigin(r *http.Request) error {
	raw := r.Header.Get("Origin")
	if raw == "" {
		raw = r.Header.Get("Referer")
	}
	if raw == "" {
		return ErrCSRFInvalidOrigin
	}

	origin, ok := normalizeOrigin(raw)
	if !ok {
		return ErrCSRFInvalidOrigin
	}
	if _, allowed := p.allowedOrigins[origin]; !allowed {
		return ErrCSRFInvalidOrigin
	}
	return nil
}

// VerifyToken extracts a candidate token (headers, then form field, then
// query parameter) and validates it against the session store or the
// double-submit cookie.
func (p *CSRFProtector) VerifyToken(r *http.Request) error {
	candidate := p.tokenFromRequest(r)
	if candidate == "" {
		return ErrCSRFTokenMissing
	}

	if p.store.valid(p.SessionID(r), candidate) {
		return nil
	}

	// Double-submit fallback: token matches the cookie value.
	if cookie, err := r.Cookie(p.cfg.CookieName); err == nil && cookie.Value != "" {
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(candidate)) == 1 {
			return nil
		}
	}

	return ErrCSRFTokenInvalid
}

// tokenFromRequest extracts the candidate token in priority order.
func (p *CSRFProtector) tokenFromRequest(r *http.Request) string {
	for _, name := range csrfHeaderNames {
		if token := r.Header.Get(name); token != "" {
			return token
		}
	}

	// ParseForm reads urlencoded bodies and the query string; it leaves
	// multipart bodies untouched, so upload requests must use the header.
	if r.PostForm == nil {
		//nolint:errcheck // best effort form parsing
		r.ParseForm()
	}
	if token := r.FormValue(csrfFormField); token != "" {
		return token
	}

	return r.URL.Query().Get(csrfFormField)
}

// Middleware enforces origin and token checks on state-mutating requests.
// Safe methods and skip-listed paths bypass both checks.
func (p *CSRFProtector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, protected := protectedMethods[r.Method]; !protected {
			next.ServeHTTP(w, r)
			return
		}
		if _, skip := p.skipPaths[r.URL.Path]; skip {
			next.ServeHTTP(w, r)
			return
		}

		// Origin first: a disallowed origin is rejected before the token
		// is even looked at.
		if err := p.ValidateOrigin(r); err != nil {
			csrfRejections.WithLabelValues("origin").Inc()
			writeCSRFError(w, models.CodeCSRFInvalidOrigin, "Request origin not allowed")
			return
		}

		if err := p.VerifyToken(r); err != nil {
			csrfRejections.WithLabelValues("token").Inc()
			writeCSRFError(w, models.CodeCSRFTokenInvalid, "CSRF token missing or invalid")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeCSRFError writes the 403 response for CSRF failures.
func writeCSRFError(w http.ResponseWriter, code, message string) {
	respondError(w, http.StatusForbidden, code, message, nil)
}

// Sweep removes expired tokens and empty sessions, returning the count of
// tokens removed.
func (p *CSRFProtector) Sweep() int {
	return p.store.sweep()
}

// TokenCount returns the number of live tokens for the request's session.
func (p *CSRFProtector) TokenCount(r *http.Request) int {
	return p.store.count(p.SessionID(r))
}
