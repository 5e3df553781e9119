// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/studygate/studygate/internal/logging"
	"github.com/studygate/studygate/internal/models"
)

// BreakerStore wraps a UserStore and UnitStore pair behind a circuit
// breaker. When the underlying store fails repeatedly the breaker opens and
// calls fail fast with ErrUnavailable, which the HTTP layer maps to 503 so
// clients know a retry can help.
//
// Lookup misses (ErrNotFound, ErrExists) are business outcomes, not store
// failures, and never count against the breaker.
type BreakerStore struct {
	users UserStore
	units UnitStore
	cb    *gobreaker.CircuitBreaker[any]
}

// BreakerSettings returns the circuit breaker settings used for stores.
func BreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrExists)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Store circuit breaker state changed")
		},
	}
}

// NewBreakerStore wraps the given stores behind one shared breaker.
func NewBreakerStore(users UserStore, units UnitStore) *BreakerStore {
	return &BreakerStore{
		users: users,
		units: units,
		cb:    gobreaker.NewCircuitBreaker[any](BreakerSettings("store")),
	}
}

// execute runs fn through the breaker and maps breaker-open failures to
// ErrUnavailable.
func (s *BreakerStore) execute(fn func() (any, error)) (any, error) {
	result, err := s.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}
	return result, nil
}

// FindActiveUserByEmail implements UserStore.
func (s *BreakerStore) FindActiveUserByEmail(ctx context.Context, email string) (*models.User, error) {
	result, err := s.execute(func() (any, error) {
		return s.users.FindActiveUserByEmail(ctx, email)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}

// TouchLastLogin implements UserStore.
func (s *BreakerStore) TouchLastLogin(ctx context.Context, id string) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.users.TouchLastLogin(ctx, id)
	})
	return err
}

// CreateUser implements UserStore.
func (s *BreakerStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.users.CreateUser(ctx, user)
	})
	return err
}

// GetUnit implements UnitStore.
func (s *BreakerStore) GetUnit(ctx context.Context, id string) (*models.Unit, error) {
	result, err := s.execute(func() (any, error) {
		return s.units.GetUnit(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Unit), nil
}

// UpdateUnit implements UnitStore.
func (s *BreakerStore) UpdateUnit(ctx context.Context, id string, update models.UnitUpdate) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.units.UpdateUnit(ctx, id, update)
	})
	return err
}

// CreateUnit implements UnitStore.
func (s *BreakerStore) CreateUnit(ctx context.Context, unit *models.Unit) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.units.CreateUnit(ctx, unit)
	})
	return err
}
