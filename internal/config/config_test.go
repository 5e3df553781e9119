// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Security.SigningSecret = strings.Repeat("s", 32)
	return cfg
}

func TestVerifiedSigningSecret(t *testing.T) {
	sec := &SecurityConfig{SigningSecret: strings.Repeat("s", 32)}
	secret, err := sec.VerifiedSigningSecret()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(secret) != 32 {
		t.Errorf("secret length = %d", len(secret))
	}

	sec.SigningSecret = ""
	if _, err := sec.VerifiedSigningSecret(); !errors.Is(err, ErrSigningSecretMissing) {
		t.Errorf("expected ErrSigningSecretMissing, got %v", err)
	}

	// One character short of the minimum.
	sec.SigningSecret = strings.Repeat("s", 31)
	if _, err := sec.VerifiedSigningSecret(); !errors.Is(err, ErrSigningSecretWeak) {
		t.Errorf("expected ErrSigningSecretWeak, got %v", err)
	}
}

func TestValidate_DefaultsWithSecretAreValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("defaults with a secret should validate: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Security.SigningSecret = "" }},
		{"weak secret", func(c *Config) { c.Security.SigningSecret = strings.Repeat("s", 20) }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty base url", func(c *Config) { c.Server.BaseURL = "" }},
		{"zero token lifetime", func(c *Config) { c.Security.TokenLifetime = 0 }},
		{"empty issuer", func(c *Config) { c.Security.TokenIssuer = "" }},
		{"zero login attempts", func(c *Config) { c.Security.LoginMaxAttempts = 0 }},
		{"low bcrypt cost", func(c *Config) { c.Security.BcryptCost = 4 }},
		{"no origins", func(c *Config) { c.Security.AllowedOrigins = nil }},
		{"bad origin", func(c *Config) { c.Security.AllowedOrigins = []string{"localhost"} }},
		{"zero csrf cap", func(c *Config) { c.CSRF.MaxTokensPerSession = 0 }},
		{"empty cookie name", func(c *Config) { c.CSRF.CookieName = "" }},
		{"zero upload attempts", func(c *Config) { c.Upload.MaxAttempts = 0 }},
		{"zero pdf ceiling", func(c *Config) { c.Upload.MaxPDFBytes = 0 }},
		{"empty upload dir", func(c *Config) { c.Upload.Dir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDefault_SpecifiedValues(t *testing.T) {
	cfg := Default()

	if got := cfg.Security.TokenLifetime.Hours(); got != 7*24 {
		t.Errorf("token lifetime = %v hours, want 168", got)
	}
	if cfg.Security.LoginMaxAttempts != 5 {
		t.Errorf("login max attempts = %d, want 5", cfg.Security.LoginMaxAttempts)
	}
	if cfg.CSRF.MaxTokensPerSession != 10 {
		t.Errorf("csrf cap = %d, want 10", cfg.CSRF.MaxTokensPerSession)
	}
	if cfg.CSRF.TokenLifetime.Minutes() != 60 {
		t.Errorf("csrf lifetime = %v, want 1h", cfg.CSRF.TokenLifetime)
	}
	if cfg.CSRF.SweepInterval.Minutes() != 5 {
		t.Errorf("sweep interval = %v, want 5m", cfg.CSRF.SweepInterval)
	}
	if cfg.Upload.MaxAudioBytes <= cfg.Upload.MaxPDFBytes {
		t.Error("audio ceiling should exceed the pdf ceiling")
	}
}
