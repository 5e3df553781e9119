// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package auth

import (
	"github.com/studygate/studygate/internal/config"
	"github.com/studygate/studygate/internal/validation"
)

// loginRequest is the login endpoint body. The login path checks only
// shape: password strength is enforced at creation time, not at login, so
// legacy accounts are never locked out by a policy change.
type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254,email_strict"`
	Password string `json:"password" validate:"required,max=128"`
}

// RegistrationInput is the raw input of the registration flow. Registration
// itself lives outside this core; the schema is here because credential
// validation is an auth concern, and the bootstrap admin path uses it.
type RegistrationInput struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,max=254,email_strict"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ValidateLogin checks shape and normalizes the email. On failure the
// returned map carries field->message pairs.
func ValidateLogin(email, password string) (string, map[string]interface{}) {
	req := loginRequest{Email: validation.NormalizeEmail(email), Password: password}
	if err := validation.ValidateStruct(&req); err != nil {
		return "", err.FieldMessages()
	}
	return req.Email, nil
}

// ValidateRegistration checks the full registration schema including the
// password strength policy. Pure validation, no I/O. Returns normalized
// input on success or field->message pairs on failure.
func ValidateRegistration(in RegistrationInput) (RegistrationInput, map[string]interface{}) {
	in.Email = validation.NormalizeEmail(in.Email)

	fields := make(map[string]interface{})
	if err := validation.ValidateStruct(&in); err != nil {
		fields = err.FieldMessages()
	}

	if _, ok := fields["Password"]; !ok {
		policy := config.DefaultPasswordPolicy()
		if result := policy.Validate(in.Password); !result.Valid {
			fields["Password"] = result.Errors[0]
		}
	}

	if in.ConfirmPassword != "" && in.Password != in.ConfirmPassword {
		fields["ConfirmPassword"] = "passwords do not match"
	}

	if len(fields) > 0 {
		return RegistrationInput{}, fields
	}
	return in, nil
}
