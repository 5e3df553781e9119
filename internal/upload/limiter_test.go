// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package upload

import (
	"testing"
	"time"
)

func TestLimiter_AllowsUpToMaxPerWindow(t *testing.T) {
	l := NewLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !l.Allow("client") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.Allow("client") {
		t.Error("attempt beyond the limit should be denied")
	}
	if l.Remaining("client") != 0 {
		t.Errorf("remaining = %d, want 0", l.Remaining("client"))
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	l := NewLimiter(2, time.Hour)

	base := time.Now()
	l.now = func() time.Time { return base }
	l.Allow("client")

	l.now = func() time.Time { return base.Add(30 * time.Minute) }
	l.Allow("client")
	if l.Allow("client") {
		t.Fatal("two attempts in the window should deny a third")
	}

	// The first attempt ages out; the second is still counted.
	l.now = func() time.Time { return base.Add(61 * time.Minute) }
	if !l.Allow("client") {
		t.Error("aged-out attempt should free a slot")
	}
	if l.Allow("client") {
		t.Error("window should still hold two live attempts")
	}
}

func TestLimiter_DeniedAttemptNotRecorded(t *testing.T) {
	l := NewLimiter(1, time.Hour)

	base := time.Now()
	l.now = func() time.Time { return base }
	l.Allow("client")

	// Denied attempts must not extend the lockout.
	for i := 1; i <= 10; i++ {
		l.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		if l.Allow("client") {
			t.Fatal("should be denied inside the window")
		}
	}

	l.now = func() time.Time { return base.Add(61 * time.Minute) }
	if !l.Allow("client") {
		t.Error("original attempt aged out; denied retries must not count")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Hour)

	if !l.Allow("a") {
		t.Fatal("first attempt for a should pass")
	}
	if !l.Allow("b") {
		t.Error("b should be unaffected by a's attempts")
	}
}

func TestLimiter_CleanupExpired(t *testing.T) {
	l := NewLimiter(5, time.Hour)

	base := time.Now()
	l.now = func() time.Time { return base }
	l.Allow("stale")

	l.now = func() time.Time { return base.Add(2 * time.Hour) }
	l.Allow("fresh")

	if removed := l.CleanupExpired(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	l.mu.Lock()
	_, staleExists := l.attempts["stale"]
	_, freshExists := l.attempts["fresh"]
	l.mu.Unlock()
	if staleExists {
		t.Error("stale key should be dropped")
	}
	if !freshExists {
		t.Error("fresh key should remain")
	}
}
