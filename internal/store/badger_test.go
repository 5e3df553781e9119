// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/studygate/studygate/internal/models"
)

func openTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger("", true)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStore_UserRoundtrip(t *testing.T) {
	s := openTestBadger(t)
	ctx := context.Background()

	user := &models.User{
		Email:        "  Teacher@Example.Com ",
		PasswordHash: "hash",
		Role:         models.RoleEditor,
		Active:       true,
	}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == "" {
		t.Error("CreateUser should assign an ID")
	}
	if user.Email != "teacher@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser should stamp CreatedAt")
	}

	// Lookup normalizes the query too.
	found, err := s.FindActiveUserByEmail(ctx, "TEACHER@example.com")
	if err != nil {
		t.Fatalf("FindActiveUserByEmail: %v", err)
	}
	if found.ID != user.ID || found.Role != models.RoleEditor {
		t.Errorf("found = %+v", found)
	}
	// The hash is excluded from response JSON but must survive persistence.
	if found.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q, want %q", found.PasswordHash, "hash")
	}
	if found.LastLoginAt != nil {
		t.Error("fresh user should have nil LastLoginAt")
	}
}

func TestBadgerStore_UnknownUser(t *testing.T) {
	s := openTestBadger(t)

	_, err := s.FindActiveUserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBadgerStore_InactiveUserHidden(t *testing.T) {
	s := openTestBadger(t)
	ctx := context.Background()

	user := &models.User{Email: "gone@example.com", PasswordHash: "hash", Role: models.RoleUser, Active: false}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	_, err := s.FindActiveUserByEmail(ctx, "gone@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("inactive user should be invisible, got %v", err)
	}
}

func TestBadgerStore_DuplicateEmail(t *testing.T) {
	s := openTestBadger(t)
	ctx := context.Background()

	first := &models.User{Email: "dup@example.com", PasswordHash: "hash", Role: models.RoleUser, Active: true}
	if err := s.CreateUser(ctx, first); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	second := &models.User{Email: "Dup@Example.com", PasswordHash: "other", Role: models.RoleUser, Active: true}
	if err := s.CreateUser(ctx, second); !errors.Is(err, ErrExists) {
		t.Errorf("err = %v, want ErrExists", err)
	}
}

func TestBadgerStore_TouchLastLogin(t *testing.T) {
	s := openTestBadger(t)
	ctx := context.Background()

	user := &models.User{Email: "login@example.com", PasswordHash: "hash", Role: models.RoleUser, Active: true}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := s.TouchLastLogin(ctx, user.ID); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}

	found, err := s.FindActiveUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("FindActiveUserByEmail: %v", err)
	}
	if found.LastLoginAt == nil {
		t.Error("LastLoginAt should be set after TouchLastLogin")
	}

	if err := s.TouchLastLogin(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestBadgerStore_UnitLifecycle(t *testing.T) {
	s := openTestBadger(t)
	ctx := context.Background()

	unit := &models.Unit{ID: "unit-7", Title: "Fractions", Subject: "math"}
	if err := s.CreateUnit(ctx, unit); err != nil {
		t.Fatalf("CreateUnit: %v", err)
	}

	got, err := s.GetUnit(ctx, "unit-7")
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if got.Title != "Fractions" || got.HasPDF || got.HasAudio {
		t.Errorf("unit = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("CreateUnit should stamp UpdatedAt")
	}

	// Attach a PDF; audio fields stay untouched.
	pdfURL := "https://example.com/uploads/pdf/unit-7_1_ab.pdf"
	hasPDF := true
	if err := s.UpdateUnit(ctx, "unit-7", models.UnitUpdate{PDFURL: &pdfURL, HasPDF: &hasPDF}); err != nil {
		t.Fatalf("UpdateUnit: %v", err)
	}

	got, err = s.GetUnit(ctx, "unit-7")
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if !got.HasPDF || got.PDFURL != pdfURL {
		t.Errorf("pdf fields not applied: %+v", got)
	}
	if got.HasAudio || got.AudioURL != "" {
		t.Errorf("audio fields should be untouched: %+v", got)
	}

	if err := s.UpdateUnit(ctx, "unit-404", models.UnitUpdate{PDFURL: &pdfURL}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown unit err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetUnit(ctx, "unit-404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown unit err = %v, want ErrNotFound", err)
	}
}
