// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studygate_upload_attempts_total",
		Help: "Upload attempts by outcome.",
	}, []string{"outcome"})

	uploadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studygate_upload_bytes_total",
		Help: "Bytes accepted by file class.",
	}, []string{"class"})

	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "studygate_upload_duration_seconds",
		Help:    "Upload request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)
