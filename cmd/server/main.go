// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

// Command server runs the Studygate gateway: login, CSRF protection, and
// validated unit content uploads.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/studygate/studygate/internal/api"
	"github.com/studygate/studygate/internal/auth"
	"github.com/studygate/studygate/internal/authz"
	"github.com/studygate/studygate/internal/config"
	"github.com/studygate/studygate/internal/logging"
	"github.com/studygate/studygate/internal/models"
	"github.com/studygate/studygate/internal/store"
	"github.com/studygate/studygate/internal/supervisor"
	"github.com/studygate/studygate/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config errors surface through the default logger.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	logging.Info().
		Str("data_dir", cfg.Storage.DataDir).
		Str("upload_dir", cfg.Upload.Dir).
		Str("base_url", cfg.Server.BaseURL).
		Msg("Configuration loaded")

	badger, err := store.OpenBadger(cfg.Storage.DataDir, cfg.Storage.InMemory)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := badger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	st := store.NewBreakerStore(badger, badger)

	if err := bootstrapAdmin(context.Background(), cfg, st); err != nil {
		logging.Fatal().Err(err).Msg("Failed to bootstrap admin account")
	}

	jwtMgr := auth.NewJWTManager(&cfg.Security)
	csrf := auth.NewCSRFProtector(&cfg.CSRF, cfg.Security.AllowedOrigins)

	authH, err := auth.NewHandler(cfg, jwtMgr, st, csrf)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build auth handler")
	}

	uploadH, err := upload.NewHandler(cfg, st)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build upload handler")
	}

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build authorization enforcer")
	}

	router := api.NewRouter(cfg, authH, jwtMgr, csrf, uploadH, authz.NewMiddleware(enforcer))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.SlogLogger(), treeCfg)

	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(supervisor.NewJanitorService(
		"csrf-sweeper", cfg.CSRF.SweepInterval, csrf.Sweep))
	tree.AddMaintenanceService(supervisor.NewJanitorService(
		"login-limiter-janitor", cfg.Security.LoginLockoutWindow, authH.Limiter().CleanupExpired))
	tree.AddMaintenanceService(supervisor.NewJanitorService(
		"upload-limiter-janitor", cfg.Upload.Window, uploadH.Limiter().CleanupExpired))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Stopped gracefully")
}

// bootstrapAdmin creates the initial admin account when configured and not
// already present. The password must satisfy the registration policy.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, users store.UserStore) error {
	email := cfg.Storage.BootstrapAdminEmail
	if email == "" {
		return nil
	}

	in, fieldErrs := auth.ValidateRegistration(auth.RegistrationInput{
		Name:            cfg.Storage.BootstrapAdminName,
		Email:           email,
		Password:        cfg.Storage.BootstrapAdminPassword,
		ConfirmPassword: cfg.Storage.BootstrapAdminPassword,
	})
	if fieldErrs != nil {
		return fmt.Errorf("bootstrap admin credentials rejected: %v", fieldErrs)
	}

	if _, err := users.FindActiveUserByEmail(ctx, in.Email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cfg.Security.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	user := &models.User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrExists) {
			return nil
		}
		return err
	}

	logging.Info().Str("email", logging.Sanitize(in.Email)).Msg("Bootstrap admin account created")
	return nil
}
