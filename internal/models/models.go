// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

// Package models defines the shared data types exchanged between the auth
// core, the store collaborators, and the HTTP layer.
package models

import "time"

// Role is the enumerated set of user roles.
type Role string

// Recognized roles. Editors may mutate content units; admins inherit
// everything editors can do.
const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleUser   Role = "user"
)

// Valid reports whether the role is one of the recognized values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleUser:
		return true
	}
	return false
}

// User is a credential record owned by the user store.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Public returns the client-visible projection of the user.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

// PublicUser is the user shape returned in API responses. It never carries
// the password hash or the active flag.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Unit is a content-unit record owned by the unit store. Only the artifact
// attachment fields are mutated by this core.
type Unit struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	PDFURL    string    `json:"pdfUrl,omitempty"`
	AudioURL  string    `json:"audioUrl,omitempty"`
	HasPDF    bool      `json:"hasPdf"`
	HasAudio  bool      `json:"hasAudio"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UnitUpdate carries a partial update for a unit. Nil fields are untouched.
type UnitUpdate struct {
	PDFURL   *string
	AudioURL *string
	HasPDF   *bool
	HasAudio *bool
}
