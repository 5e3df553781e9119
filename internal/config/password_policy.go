// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package config

import (
	"fmt"
	"strings"
)

// PasswordPolicy defines requirements for password strength at account
// creation. Login deliberately uses only the shape checks (non-empty,
// <= MaxLength) so legacy accounts are never locked out by a policy change.
type PasswordPolicy struct {
	// MinLength and MaxLength bound the password length.
	MinLength int
	MaxLength int

	// MinCharClasses is how many of the four character classes (lowercase,
	// uppercase, digit, allowed symbol) must be present.
	MinCharClasses int

	// ForbidCommonPasswords rejects passwords containing any denylisted
	// common password as a case-insensitive substring.
	ForbidCommonPasswords bool
}

// DefaultPasswordPolicy returns the registration-time policy.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:             8,
		MaxLength:             128,
		MinCharClasses:        3,
		ForbidCommonPasswords: true,
	}
}

// allowedSymbols is the symbol set counted as the fourth character class.
const allowedSymbols = "!@#$%^&*()_+-=[]{}|;:'\",.<>/?~`\\"

// commonPasswords is the fixed denylist. Matching is by case-insensitive
// substring, so "MyPassword1!" is rejected for containing "password".
var commonPasswords = []string{
	"password",
	"123456",
	"12345678",
	"qwerty",
	"abc123",
	"letmein",
	"welcome",
	"iloveyou",
	"admin123",
	"monkey",
	"dragon",
	"sunshine",
	"princess",
	"football",
}

// PasswordValidationResult reports the outcome of a policy check.
type PasswordValidationResult struct {
	Valid  bool
	Errors []string
}

// passwordCharClasses counts the distinct character classes in a password.
func passwordCharClasses(password string) int {
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(allowedSymbols, r):
			hasSymbol = true
		}
	}

	count := 0
	for _, present := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if present {
			count++
		}
	}
	return count
}

// containsCommonPassword reports whether any denylisted password appears in
// the candidate as a case-insensitive substring.
func containsCommonPassword(password string) bool {
	lowered := strings.ToLower(password)
	for _, common := range commonPasswords {
		if strings.Contains(lowered, common) {
			return true
		}
	}
	return false
}

// Validate checks a password against the policy. Pure function, no I/O.
func (p PasswordPolicy) Validate(password string) PasswordValidationResult {
	result := PasswordValidationResult{Valid: true, Errors: make([]string, 0)}

	if len(password) < p.MinLength {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("password must be at least %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("password must be at most %d characters", p.MaxLength))
	}

	if classes := passwordCharClasses(password); classes < p.MinCharClasses {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("password must contain at least %d of: lowercase, uppercase, digit, symbol", p.MinCharClasses))
	}

	if p.ForbidCommonPasswords && containsCommonPassword(password) {
		result.Valid = false
		result.Errors = append(result.Errors, "password contains a commonly used password")
	}

	return result
}
