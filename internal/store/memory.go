// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studygate/studygate/internal/models"
	"github.com/studygate/studygate/internal/validation"
)

// MemoryStore implements UserStore and UnitStore with in-process maps.
// Used by tests and as a stand-in collaborator where no persistence is
// wanted.
type MemoryStore struct {
	mu           sync.RWMutex
	usersByEmail map[string]*models.User
	emailByID    map[string]string
	units        map[string]*models.Unit
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usersByEmail: make(map[string]*models.User),
		emailByID:    make(map[string]string),
		units:        make(map[string]*models.Unit),
	}
}

// FindActiveUserByEmail looks up an active user by normalized email.
func (s *MemoryStore) FindActiveUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByEmail[validation.NormalizeEmail(email)]
	if !ok || !user.Active {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// TouchLastLogin sets the user's last-login timestamp to now.
func (s *MemoryStore) TouchLastLogin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emailByID[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	s.usersByEmail[email].LastLoginAt = &now
	return nil
}

// CreateUser persists a new user record, assigning an ID if absent.
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = validation.NormalizeEmail(user.Email)
	if _, ok := s.usersByEmail[user.Email]; ok {
		return ErrExists
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	copied := *user
	s.usersByEmail[user.Email] = &copied
	s.emailByID[user.ID] = user.Email
	return nil
}

// GetUnit retrieves a unit record.
func (s *MemoryStore) GetUnit(ctx context.Context, id string) (*models.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unit, ok := s.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *unit
	return &copied, nil
}

// UpdateUnit applies a partial update to a unit record.
func (s *MemoryStore) UpdateUnit(ctx context.Context, id string, update models.UnitUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unit, ok := s.units[id]
	if !ok {
		return ErrNotFound
	}
	applyUnitUpdate(unit, update)
	unit.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateUnit persists a new unit record.
func (s *MemoryStore) CreateUnit(ctx context.Context, unit *models.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if unit.UpdatedAt.IsZero() {
		unit.UpdatedAt = time.Now().UTC()
	}
	copied := *unit
	s.units[unit.ID] = &copied
	return nil
}
