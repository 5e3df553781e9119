// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

// Package config provides the process-wide configuration structure.
//
// Configuration is loaded once at startup from three layers, highest
// priority last: built-in defaults, an optional YAML file, and environment
// variables. Every recognized option is enumerated here and validated
// eagerly so misconfiguration fails the process at boot rather than
// surfacing per-request.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// MinSigningSecretLength is the minimum acceptable JWT signing secret length.
// Anything shorter makes HS256 brute force practical.
const MinSigningSecretLength = 32

// Configuration errors surfaced by the secret guard. Both map to a 500-class
// CONFIGURATION_ERROR at the HTTP layer.
var (
	ErrSigningSecretMissing = errors.New("signing secret is not configured")
	ErrSigningSecretWeak    = fmt.Errorf("signing secret must be at least %d characters", MinSigningSecretLength)
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Security SecurityConfig `koanf:"security"`
	CSRF     CSRFConfig     `koanf:"csrf"`
	Upload   UploadConfig   `koanf:"upload"`
	Storage  StorageConfig  `koanf:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// BaseURL is the externally visible site URL, used to build public
	// upload URLs. No trailing slash.
	BaseURL string `koanf:"base_url"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// ThrottlePerMinute is the coarse per-IP request ceiling applied to the
	// whole API group, above the domain-specific limiters.
	ThrottlePerMinute int `koanf:"throttle_per_minute"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// SecurityConfig holds authentication and token settings.
type SecurityConfig struct {
	// SigningSecret is the HS256 key for bearer tokens. Required, >= 32 chars.
	SigningSecret string `koanf:"signing_secret"`

	TokenLifetime time.Duration `koanf:"token_lifetime"`
	TokenIssuer   string        `koanf:"token_issuer"`
	TokenAudience string        `koanf:"token_audience"`

	// LoginMaxAttempts failed logins within LoginLockoutWindow lock the email.
	LoginMaxAttempts   int           `koanf:"login_max_attempts"`
	LoginLockoutWindow time.Duration `koanf:"login_lockout_window"`

	// AllowedOrigins is the origin allow-list shared by CORS and the CSRF
	// origin check. Entries are scheme://host[:port].
	AllowedOrigins []string `koanf:"allowed_origins"`

	// BcryptCost is the bcrypt work factor for new hashes.
	BcryptCost int `koanf:"bcrypt_cost"`

	// VerifyRatePerSecond and VerifyBurst bound concurrent bcrypt work in
	// the login path so a flood of logins cannot starve the process.
	VerifyRatePerSecond float64 `koanf:"verify_rate_per_second"`
	VerifyBurst         int     `koanf:"verify_burst"`
}

// VerifiedSigningSecret returns the signing secret after checking strength.
// Called lazily at the start of every signing and verification path so a
// misconfigured secret surfaces as a configuration error, never as a weak
// signature issued silently.
func (c *SecurityConfig) VerifiedSigningSecret() ([]byte, error) {
	if c.SigningSecret == "" {
		return nil, ErrSigningSecretMissing
	}
	if len(c.SigningSecret) < MinSigningSecretLength {
		return nil, ErrSigningSecretWeak
	}
	return []byte(c.SigningSecret), nil
}

// CSRFConfig holds CSRF token lifecycle settings.
type CSRFConfig struct {
	TokenLifetime       time.Duration `koanf:"token_lifetime"`
	MaxTokensPerSession int           `koanf:"max_tokens_per_session"`
	SweepInterval       time.Duration `koanf:"sweep_interval"`
	CookieName          string        `koanf:"cookie_name"`
	CookieSecure        bool          `koanf:"cookie_secure"`

	// SkipPaths are exact request paths exempt from CSRF checks, e.g. the
	// login endpoint which necessarily precedes token issuance.
	SkipPaths []string `koanf:"skip_paths"`
}

// UploadConfig holds upload validation and rate limiting settings.
type UploadConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	Window      time.Duration `koanf:"window"`

	MaxPDFBytes   int64 `koanf:"max_pdf_bytes"`
	MaxAudioBytes int64 `koanf:"max_audio_bytes"`

	// Dir is the root directory for stored artifacts; one subdirectory per
	// file class is created beneath it.
	Dir string `koanf:"dir"`
}

// StorageConfig holds the embedded store settings.
type StorageConfig struct {
	// DataDir is the BadgerDB directory for user and unit records.
	DataDir string `koanf:"data_dir"`

	// InMemory runs Badger without disk persistence. Tests and local
	// development only.
	InMemory bool `koanf:"in_memory"`

	// BootstrapAdminEmail/Password create an initial admin account at boot
	// when the user store is empty. Password must satisfy the registration
	// policy.
	BootstrapAdminEmail    string `koanf:"bootstrap_admin_email"`
	BootstrapAdminPassword string `koanf:"bootstrap_admin_password"`
	BootstrapAdminName     string `koanf:"bootstrap_admin_name"`
}

// Default returns a Config with all default values applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			BaseURL:           "http://localhost:8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			ThrottlePerMinute: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			SigningSecret:       "",
			TokenLifetime:       7 * 24 * time.Hour,
			TokenIssuer:         "studygate",
			TokenAudience:       "studygate-web",
			LoginMaxAttempts:    5,
			LoginLockoutWindow:  15 * time.Minute,
			AllowedOrigins:      []string{"http://localhost:8080"},
			BcryptCost:          12,
			VerifyRatePerSecond: 20,
			VerifyBurst:         10,
		},
		CSRF: CSRFConfig{
			TokenLifetime:       time.Hour,
			MaxTokensPerSession: 10,
			SweepInterval:       5 * time.Minute,
			CookieName:          "_csrf",
			CookieSecure:        true,
			SkipPaths:           []string{"/api/v1/auth/login"},
		},
		Upload: UploadConfig{
			MaxAttempts:   20,
			Window:        time.Hour,
			MaxPDFBytes:   20 << 20,  // 20MB
			MaxAudioBytes: 100 << 20, // 100MB
			Dir:           "/data/uploads",
		},
		Storage: StorageConfig{
			DataDir:  "/data/studygate",
			InMemory: false,
		},
	}
}

// Validate checks the configuration eagerly at process start.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if _, err := url.Parse(c.Server.BaseURL); err != nil || c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is not a valid URL: %q", c.Server.BaseURL)
	}

	if _, err := c.Security.VerifiedSigningSecret(); err != nil {
		return fmt.Errorf("security.signing_secret: %w", err)
	}
	if c.Security.TokenLifetime <= 0 {
		return fmt.Errorf("security.token_lifetime must be positive")
	}
	if c.Security.TokenIssuer == "" || c.Security.TokenAudience == "" {
		return fmt.Errorf("security.token_issuer and security.token_audience are required")
	}
	if c.Security.LoginMaxAttempts < 1 {
		return fmt.Errorf("security.login_max_attempts must be at least 1")
	}
	if c.Security.LoginLockoutWindow <= 0 {
		return fmt.Errorf("security.login_lockout_window must be positive")
	}
	if c.Security.BcryptCost < 10 || c.Security.BcryptCost > 16 {
		return fmt.Errorf("security.bcrypt_cost must be 10-16, got %d", c.Security.BcryptCost)
	}
	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("security.allowed_origins must not be empty")
	}
	for _, origin := range c.Security.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("security.allowed_origins entry %q is not scheme://host[:port]", origin)
		}
	}

	if c.CSRF.TokenLifetime <= 0 {
		return fmt.Errorf("csrf.token_lifetime must be positive")
	}
	if c.CSRF.MaxTokensPerSession < 1 {
		return fmt.Errorf("csrf.max_tokens_per_session must be at least 1")
	}
	if c.CSRF.SweepInterval <= 0 {
		return fmt.Errorf("csrf.sweep_interval must be positive")
	}
	if c.CSRF.CookieName == "" {
		return fmt.Errorf("csrf.cookie_name is required")
	}

	if c.Upload.MaxAttempts < 1 {
		return fmt.Errorf("upload.max_attempts must be at least 1")
	}
	if c.Upload.Window <= 0 {
		return fmt.Errorf("upload.window must be positive")
	}
	if c.Upload.MaxPDFBytes <= 0 || c.Upload.MaxAudioBytes <= 0 {
		return fmt.Errorf("upload size ceilings must be positive")
	}
	if c.Upload.Dir == "" {
		return fmt.Errorf("upload.dir is required")
	}

	if !c.Storage.InMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required unless storage.in_memory is set")
	}

	return nil
}
