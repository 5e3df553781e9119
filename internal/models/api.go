// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package models

// Stable machine-readable error codes carried by every error response.
// Clients branch on these, never on the human-readable message.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeAuthenticationError = "AUTHENTICATION_ERROR"
	CodeAuthorizationError  = "AUTHORIZATION_ERROR"
	CodeCSRFInvalidOrigin   = "CSRF_INVALID_ORIGIN"
	CodeCSRFTokenInvalid    = "CSRF_TOKEN_INVALID"
	CodeRateLimited         = "RATE_LIMITED"
	CodeNotFound            = "NOT_FOUND"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeConfigurationError  = "CONFIGURATION_ERROR"
	CodeInternalError       = "INTERNAL_ERROR"
)

// ErrorResponse is the envelope for every non-2xx response.
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// LoginResponse is the 200 body of the login endpoint.
type LoginResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	User      *PublicUser `json:"user"`
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expiresIn"`
}

// CSRFTokenResponse is the 200 body of the CSRF token endpoint.
type CSRFTokenResponse struct {
	Success   bool   `json:"success"`
	CSRFToken string `json:"csrfToken"`
}

// UploadResult describes a stored upload artifact.
type UploadResult struct {
	UnitID       string `json:"unitId"`
	FileType     string `json:"fileType"`
	PublicURL    string `json:"publicUrl"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

// UploadResponse is the 200 body of the upload endpoint.
type UploadResponse struct {
	Success bool          `json:"success"`
	Data    *UploadResult `json:"data"`
}

// MessageResponse is a generic success body for endpoints without data.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
