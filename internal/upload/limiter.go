// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package upload

import (
	"sync"
	"time"
)

// Limiter is a sliding-window upload counter keyed by client identifier.
// Unlike the login limiter it tracks individual attempt timestamps, so an
// attempt ages out exactly one window after it was made.
type Limiter struct {
	mu          sync.Mutex
	attempts    map[string][]time.Time
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewLimiter creates an upload limiter allowing maxAttempts per window.
func NewLimiter(maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		attempts:    make(map[string][]time.Time),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// Allow reports whether the key may attempt another upload, recording the
// attempt timestamp when it is allowed. Stale timestamps are filtered on
// every call so the window truly slides.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.attempts[key][:0]
	for _, t := range l.attempts[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.maxAttempts {
		l.attempts[key] = recent
		return false
	}

	l.attempts[key] = append(recent, now)
	return true
}

// Remaining returns how many attempts the key has left in the current
// window without recording one.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	count := 0
	for _, t := range l.attempts[key] {
		if t.After(cutoff) {
			count++
		}
	}

	if count >= l.maxAttempts {
		return 0
	}
	return l.maxAttempts - count
}

// CleanupExpired drops keys whose every timestamp has aged out. Returns
// the number of keys removed.
func (l *Limiter) CleanupExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for key, times := range l.attempts {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.attempts, key)
			removed++
		}
	}
	return removed
}
