// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// loginAttempts counts login attempts by outcome.
	// Outcomes: "success", "invalid_credentials", "rate_limited",
	// "validation_error", "config_error", "upstream_error", "internal_error".
	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygate_login_attempts_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// loginDuration measures login handling latency. Dominated by bcrypt,
	// so the buckets start at 10ms.
	loginDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studygate_login_duration_seconds",
			Help:    "Duration of login request handling in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// csrfRejections counts CSRF middleware rejections.
	// Reasons: "origin", "token".
	csrfRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygate_csrf_rejections_total",
			Help: "Total number of requests rejected by CSRF protection",
		},
		[]string{"reason"},
	)

	// tokenVerifications counts bearer token verifications by outcome.
	// Outcomes: "success", "expired", "bad_signature", "claim_mismatch",
	// "invalid", "config_error".
	tokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygate_token_verifications_total",
			Help: "Total number of bearer token verifications by outcome",
		},
		[]string{"outcome"},
	)
)
