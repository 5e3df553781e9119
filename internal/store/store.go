// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

// Package store provides the user and unit record collaborators consumed by
// the auth core. The core touches them only through the two narrow
// contracts below; everything else about content records lives outside
// this repository.
package store

import (
	"context"
	"errors"

	"github.com/studygate/studygate/internal/models"
)

// Store errors. ErrUnavailable is distinguished from other failures so the
// HTTP layer can answer 503 and clients can retry.
var (
	ErrNotFound    = errors.New("record not found")
	ErrExists      = errors.New("record already exists")
	ErrUnavailable = errors.New("store unavailable")
)

// UserStore is the credential-record collaborator contract.
type UserStore interface {
	// FindActiveUserByEmail looks up an active user by normalized email.
	// Returns ErrNotFound for unknown or inactive accounts.
	FindActiveUserByEmail(ctx context.Context, email string) (*models.User, error)

	// TouchLastLogin updates the user's last-login timestamp to now.
	TouchLastLogin(ctx context.Context, id string) error

	// CreateUser persists a new user record. Returns ErrExists if the email
	// is already taken.
	CreateUser(ctx context.Context, user *models.User) error
}

// UnitStore is the content-unit collaborator contract.
type UnitStore interface {
	// GetUnit retrieves a unit by identifier.
	GetUnit(ctx context.Context, id string) (*models.Unit, error)

	// UpdateUnit applies a partial update, attaching artifact URLs.
	// Returns ErrNotFound for unknown units.
	UpdateUnit(ctx context.Context, id string, update models.UnitUpdate) error

	// CreateUnit persists a new unit record.
	CreateUnit(ctx context.Context, unit *models.Unit) error
}

// applyUnitUpdate merges a partial update into a unit record.
func applyUnitUpdate(unit *models.Unit, update models.UnitUpdate) {
	if update.PDFURL != nil {
		unit.PDFURL = *update.PDFURL
	}
	if update.AudioURL != nil {
		unit.AudioURL = *update.AudioURL
	}
	if update.HasPDF != nil {
		unit.HasPDF = *update.HasPDF
	}
	if update.HasAudio != nil {
		unit.HasAudio = *update.HasAudio
	}
}
