// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package auth

import (
	"sync"
	"time"
)

// lockoutEntry tracks failed login attempts for one normalized email.
type lockoutEntry struct {
	count       int
	lastAttempt time.Time
}

// LoginLimiter is the per-email sliding-window login rate limiter.
//
// Checking and recording are separate operations: only failed logins count
// toward lockout, and a successful login clears the counter entirely, so
// the handler decides what to record after credential verification.
//
// State is process-wide and in-memory. That is a deployment constraint:
// single-instance only, or substitute an external store with atomic
// operations for horizontal scaling. The mutex protects the map for memory
// safety; the check-then-record sequence across a request is still
// advisory, not an atomic reservation.
type LoginLimiter struct {
	mu          sync.Mutex
	entries     map[string]*lockoutEntry
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewLoginLimiter creates a limiter allowing maxAttempts failures within
// the lockout window.
func NewLoginLimiter(maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		entries:     make(map[string]*lockoutEntry),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// Allowed reports whether a login attempt for the key may proceed, and if
// not, how long until the lockout expires. A window that has fully elapsed
// since the last attempt resets the counter.
func (l *LoginLimiter) Allowed(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return true, 0
	}

	now := l.now()
	if now.Sub(entry.lastAttempt) > l.window {
		delete(l.entries, key)
		return true, 0
	}

	if entry.count >= l.maxAttempts {
		remaining := l.window - now.Sub(entry.lastAttempt)
		return false, remaining
	}

	return true, 0
}

// RecordFailure counts one failed attempt for the key. Called identically
// for unknown-user and wrong-password outcomes so the two are
// indistinguishable externally.
func (l *LoginLimiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.lastAttempt) > l.window {
		l.entries[key] = &lockoutEntry{count: 1, lastAttempt: now}
		return
	}

	entry.count++
	entry.lastAttempt = now
}

// Clear removes the counter for a key. Called on successful login.
func (l *LoginLimiter) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// CleanupExpired removes entries whose window has fully elapsed. Expiry is
// also checked in Allowed, so this only bounds memory growth.
func (l *LoginLimiter) CleanupExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	count := 0
	for key, entry := range l.entries {
		if now.Sub(entry.lastAttempt) > l.window {
			delete(l.entries, key)
			count++
		}
	}
	return count
}
