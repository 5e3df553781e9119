// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/studygate/studygate/internal/auth"
	"github.com/studygate/studygate/internal/config"
	"github.com/studygate/studygate/internal/logging"
	"github.com/studygate/studygate/internal/models"
	"github.com/studygate/studygate/internal/store"
)

// multipartMemoryLimit is how much of the multipart body is held in memory
// before spilling to a temp file.
const multipartMemoryLimit = 8 << 20

// Handler accepts multipart uploads, validates them, stores the artifact,
// and attaches the public URL to the target unit.
type Handler struct {
	cfg       *config.Config
	validator *Validator
	limiter   *Limiter
	units     store.UnitStore
	now       func() time.Time
}

// NewHandler builds the upload handler and ensures the class directories
// exist.
func NewHandler(cfg *config.Config, units store.UnitStore) (*Handler, error) {
	for _, class := range []FileClass{ClassPDF, ClassAudio} {
		dir := filepath.Join(cfg.Upload.Dir, string(class))
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create upload directory %s: %w", dir, err)
		}
	}

	return &Handler{
		cfg:       cfg,
		validator: NewValidator(cfg.Upload.MaxPDFBytes, cfg.Upload.MaxAudioBytes),
		limiter:   NewLimiter(cfg.Upload.MaxAttempts, cfg.Upload.Window),
		units:     units,
		now:       time.Now,
	}, nil
}

// Limiter exposes the upload limiter for background cleanup.
func (h *Handler) Limiter() *Limiter { return h.limiter }

// Upload handles POST /api/v1/uploads. The caller must already be
// authenticated; authorization runs in middleware.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(uploadDuration)
	defer timer.ObserveDuration()

	if !h.limiter.Allow(auth.ClientIP(r)) {
		uploadAttempts.WithLabelValues("rate_limited").Inc()
		respondError(w, http.StatusTooManyRequests, models.CodeRateLimited,
			fmt.Sprintf("Too many uploads. Try again in %d minutes", int(h.cfg.Upload.Window.Minutes())), nil)
		return
	}

	maxBody := h.cfg.Upload.MaxAudioBytes + multipartMemoryLimit
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		uploadAttempts.WithLabelValues("validation_error").Inc()
		respondError(w, http.StatusBadRequest, models.CodeValidationError,
			"Request must be multipart form data with file, fileType and unitId fields", nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			//nolint:errcheck // temp files from the form must not outlive the request
			r.MultipartForm.RemoveAll()
		}
	}()

	class, ok := ParseFileClass(r.FormValue("fileType"))
	if !ok {
		uploadAttempts.WithLabelValues("validation_error").Inc()
		respondError(w, http.StatusBadRequest, models.CodeValidationError,
			"fileType must be pdf or audio", map[string]interface{}{"fileType": "must be pdf or audio"})
		return
	}
	unitID := r.FormValue("unitId")

	file, header, err := r.FormFile("file")
	if err != nil {
		uploadAttempts.WithLabelValues("validation_error").Inc()
		respondError(w, http.StatusBadRequest, models.CodeValidationError,
			"A file field is required", map[string]interface{}{"file": "required"})
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if err := h.validator.Validate(class, unitID, header.Filename, mimeType, header.Size); err != nil {
		uploadAttempts.WithLabelValues("validation_error").Inc()
		respondValidation(w, err)
		return
	}

	storedName, publicURL, err := h.storeArtifact(file, class, unitID, header.Filename)
	if err != nil {
		uploadAttempts.WithLabelValues("storage_error").Inc()
		logging.Error().Err(err).Str("unit_id", unitID).Msg("Failed to store upload")
		respondError(w, http.StatusInternalServerError, models.CodeInternalError,
			"Failed to store the uploaded file", nil)
		return
	}

	update := models.UnitUpdate{}
	hasFile := true
	switch class {
	case ClassPDF:
		update.PDFURL = &publicURL
		update.HasPDF = &hasFile
	case ClassAudio:
		update.AudioURL = &publicURL
		update.HasAudio = &hasFile
	}

	if err := h.units.UpdateUnit(r.Context(), unitID, update); err != nil {
		// The artifact is orphaned if the unit update fails; remove it so
		// retries start clean.
		h.removeArtifact(class, storedName)

		switch {
		case errors.Is(err, store.ErrNotFound):
			uploadAttempts.WithLabelValues("unknown_unit").Inc()
			respondError(w, http.StatusNotFound, models.CodeNotFound,
				"Unit not found", nil)
		case errors.Is(err, store.ErrUnavailable):
			uploadAttempts.WithLabelValues("upstream_error").Inc()
			respondError(w, http.StatusServiceUnavailable, models.CodeUpstreamUnavailable,
				"Service temporarily unavailable, please retry", nil)
		default:
			uploadAttempts.WithLabelValues("internal_error").Inc()
			logging.Error().Err(err).Str("unit_id", unitID).Msg("Failed to attach upload to unit")
			respondError(w, http.StatusInternalServerError, models.CodeInternalError,
				"Internal server error", nil)
		}
		return
	}

	uploadAttempts.WithLabelValues("success").Inc()
	uploadBytes.WithLabelValues(string(class)).Add(float64(header.Size))
	logging.Info().
		Str("unit_id", unitID).
		Str("file_type", string(class)).
		Str("stored_name", storedName).
		Int64("size", header.Size).
		Msg("Upload accepted")

	respondJSON(w, http.StatusOK, &models.UploadResponse{
		Success: true,
		Data: &models.UploadResult{
			UnitID:       unitID,
			FileType:     string(class),
			PublicURL:    publicURL,
			OriginalName: header.Filename,
			Size:         header.Size,
		},
	})
}

// storeArtifact writes the file under a temporary name and renames it into
// the class directory. The temp file is removed on every failure path.
func (h *Handler) storeArtifact(src io.Reader, class FileClass, unitID, originalName string) (name, publicURL string, err error) {
	name, err = SecureName(unitID, originalName, h.now())
	if err != nil {
		return "", "", err
	}

	classDir := filepath.Join(h.cfg.Upload.Dir, string(class))
	tmp, err := os.CreateTemp(classDir, ".upload-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			//nolint:errcheck // cleanup of a failed upload
			os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", "", fmt.Errorf("close upload: %w", err)
	}

	final := filepath.Join(classDir, name)
	if err = os.Rename(tmpName, final); err != nil {
		return "", "", fmt.Errorf("finalize upload: %w", err)
	}

	base := strings.TrimRight(h.cfg.Server.BaseURL, "/")
	return name, fmt.Sprintf("%s/uploads/%s/%s", base, class, name), nil
}

// removeArtifact deletes a stored file, logging rather than failing.
func (h *Handler) removeArtifact(class FileClass, name string) {
	path := filepath.Join(h.cfg.Upload.Dir, string(class), name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("path", path).Msg("Failed to remove orphaned upload")
	}
}

// respondValidation writes a 400 for a ValidationError, with the field in
// the details map.
func respondValidation(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		respondError(w, http.StatusBadRequest, models.CodeValidationError,
			"Upload validation failed", map[string]interface{}{verr.Field: verr.Reason})
		return
	}
	respondError(w, http.StatusBadRequest, models.CodeValidationError,
		"Upload validation failed", nil)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing useful to do if the client went away
	json.NewEncoder(w).Encode(&models.ErrorResponse{
		Success: false,
		Error:   code,
		Message: message,
		Details: details,
	})
}
