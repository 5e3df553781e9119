// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/studygate/studygate/internal/models"
	"github.com/studygate/studygate/internal/validation"
)

// Key prefixes for BadgerDB storage.
const (
	userEmailKeyPrefix = "user:email:"
	userIDKeyPrefix    = "user:id:"
	unitKeyPrefix      = "unit:"
)

// BadgerStore implements UserStore and UnitStore on an embedded BadgerDB.
// Suitable for single-instance deployments; multi-instance deployments need
// an external shared store instead.
type BadgerStore struct {
	db *badger.DB
}

// storedUser is the persistence shape for users. models.User excludes the
// password hash from JSON so it can never leak through a response body;
// the store still has to round-trip it.
type storedUser struct {
	models.User
	PasswordHash string `json:"passwordHash"`
}

func wrapUser(u *models.User) *storedUser {
	return &storedUser{User: *u, PasswordHash: u.PasswordHash}
}

func (su *storedUser) unwrap() *models.User {
	user := su.User
	user.PasswordHash = su.PasswordHash
	return &user
}

// OpenBadger opens (or creates) a BadgerDB at dir. When inMemory is set the
// database lives entirely in RAM, which is what tests use.
func OpenBadger(dir string, inMemory bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// FindActiveUserByEmail looks up an active user by normalized email.
func (s *BadgerStore) FindActiveUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = validation.NormalizeEmail(email)

	var stored storedUser
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userEmailKeyPrefix + email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		return nil, err
	}

	if !stored.Active {
		return nil, ErrNotFound
	}
	return stored.unwrap(), nil
}

// TouchLastLogin sets the user's last-login timestamp to now.
func (s *BadgerStore) TouchLastLogin(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userIDKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user id mapping: %w", err)
		}

		var email string
		if err := item.Value(func(val []byte) error {
			email = string(val)
			return nil
		}); err != nil {
			return err
		}

		userItem, err := txn.Get([]byte(userEmailKeyPrefix + email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		var stored storedUser
		if err := userItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}

		now := time.Now().UTC()
		stored.LastLoginAt = &now

		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		return txn.Set([]byte(userEmailKeyPrefix+email), data)
	})
}

// CreateUser persists a new user record, assigning an ID if absent.
func (s *BadgerStore) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = validation.NormalizeEmail(user.Email)
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(wrapUser(user))
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte(userEmailKeyPrefix + user.Email)
		if _, err := txn.Get(emailKey); err == nil {
			return ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing user: %w", err)
		}

		if err := txn.Set(emailKey, data); err != nil {
			return fmt.Errorf("set user: %w", err)
		}
		// ID-to-email mapping for TouchLastLogin.
		if err := txn.Set([]byte(userIDKeyPrefix+user.ID), []byte(user.Email)); err != nil {
			return fmt.Errorf("set user id mapping: %w", err)
		}
		return nil
	})
}

// GetUnit retrieves a unit record.
func (s *BadgerStore) GetUnit(ctx context.Context, id string) (*models.Unit, error) {
	var unit models.Unit
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(unitKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get unit: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &unit)
		})
	})
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

// UpdateUnit applies a partial update to a unit record.
func (s *BadgerStore) UpdateUnit(ctx context.Context, id string, update models.UnitUpdate) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(unitKeyPrefix + id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get unit: %w", err)
		}

		var unit models.Unit
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &unit)
		}); err != nil {
			return err
		}

		applyUnitUpdate(&unit, update)
		unit.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(&unit)
		if err != nil {
			return fmt.Errorf("marshal unit: %w", err)
		}
		return txn.Set(key, data)
	})
}

// CreateUnit persists a new unit record.
func (s *BadgerStore) CreateUnit(ctx context.Context, unit *models.Unit) error {
	if unit.UpdatedAt.IsZero() {
		unit.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(unit)
	if err != nil {
		return fmt.Errorf("marshal unit: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(unitKeyPrefix+unit.ID), data)
	})
}
