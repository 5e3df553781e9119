// Studygate - Learning Platform Authentication and Upload Gateway
// Copyright 2026 Studygate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studygate/studygate

// Package upload validates and stores unit content files. Every input is
// treated as hostile: filenames, declared types, unit identifiers, and
// sizes are all checked against allow-lists before anything touches disk.
package upload

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/studygate/studygate/internal/validation"
)

// FileClass is the declared class of an uploaded file.
type FileClass string

// Supported file classes.
const (
	ClassPDF   FileClass = "pdf"
	ClassAudio FileClass = "audio"
)

// ParseFileClass validates a client-declared class string.
func ParseFileClass(s string) (FileClass, bool) {
	switch FileClass(s) {
	case ClassPDF, ClassAudio:
		return FileClass(s), true
	default:
		return "", false
	}
}

// ValidationError describes why an upload was rejected. Reason is safe to
// return to the client.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("upload validation failed on %s: %s", e.Field, e.Reason)
}

// Allow-lists per class. MIME and extension are checked independently;
// either one alone is spoofable.
var (
	pdfMIMETypes = map[string]bool{
		"application/pdf": true,
	}
	pdfExtensions = map[string]bool{
		".pdf": true,
	}

	audioMIMETypes = map[string]bool{
		"audio/mpeg":  true,
		"audio/mp3":   true,
		"audio/wav":   true,
		"audio/x-wav": true,
		"audio/wave":  true,
		"audio/mp4":   true,
		"audio/x-m4a": true,
		"audio/aac":   true,
		"audio/ogg":   true,
	}
	audioExtensions = map[string]bool{
		".mp3": true,
		".wav": true,
		".m4a": true,
		".aac": true,
		".ogg": true,
	}
)

// forbiddenNameChars are rejected in original filenames: path separators
// live in their own check, these cover null bytes and characters invalid
// on common filesystems.
const forbiddenNameChars = "\x00<>:\"|?*"

const maxOriginalNameLength = 255

// Validator applies the filename, type, and size checks for a class.
type Validator struct {
	maxPDFBytes   int64
	maxAudioBytes int64
}

// NewValidator creates a validator with per-class size ceilings.
func NewValidator(maxPDFBytes, maxAudioBytes int64) *Validator {
	return &Validator{maxPDFBytes: maxPDFBytes, maxAudioBytes: maxAudioBytes}
}

// ValidateUnitID checks the target unit identifier before it is used in
// any path or store key.
func (v *Validator) ValidateUnitID(unitID string) error {
	if !validation.ValidUnitID(unitID) {
		return &ValidationError{Field: "unitId", Reason: "unit id must be 1-64 letters, digits, underscores or hyphens"}
	}
	return nil
}

// ValidateFilename rejects traversal sequences, separators, and unsafe
// characters in the client-supplied name.
func (v *Validator) ValidateFilename(name string) error {
	if name == "" {
		return &ValidationError{Field: "file", Reason: "filename is required"}
	}
	if len(name) > maxOriginalNameLength {
		return &ValidationError{Field: "file", Reason: "filename too long"}
	}
	if strings.Contains(name, "..") {
		return &ValidationError{Field: "file", Reason: "filename must not contain traversal sequences"}
	}
	if strings.ContainsAny(name, "/\\") {
		return &ValidationError{Field: "file", Reason: "filename must not contain path separators"}
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return &ValidationError{Field: "file", Reason: "filename contains forbidden characters"}
	}
	return nil
}

// ValidateType checks the reported MIME type and the extension against the
// class's allow-lists. Both must pass.
func (v *Validator) ValidateType(class FileClass, mimeType, originalName string) error {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	// Strip any media-type parameters such as "; charset=binary".
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	ext := strings.ToLower(filepath.Ext(originalName))

	var mimes, exts map[string]bool
	switch class {
	case ClassPDF:
		mimes, exts = pdfMIMETypes, pdfExtensions
	case ClassAudio:
		mimes, exts = audioMIMETypes, audioExtensions
	default:
		return &ValidationError{Field: "fileType", Reason: "file type must be pdf or audio"}
	}

	if !mimes[mimeType] {
		return &ValidationError{Field: "file", Reason: fmt.Sprintf("MIME type %q is not allowed for %s uploads", mimeType, class)}
	}
	if !exts[ext] {
		return &ValidationError{Field: "file", Reason: fmt.Sprintf("extension %q is not allowed for %s uploads", ext, class)}
	}
	return nil
}

// ValidateSize enforces the class's byte ceiling.
func (v *Validator) ValidateSize(class FileClass, size int64) error {
	if size <= 0 {
		return &ValidationError{Field: "file", Reason: "file is empty"}
	}

	var limit int64
	switch class {
	case ClassPDF:
		limit = v.maxPDFBytes
	case ClassAudio:
		limit = v.maxAudioBytes
	default:
		return &ValidationError{Field: "fileType", Reason: "file type must be pdf or audio"}
	}

	if size > limit {
		return &ValidationError{Field: "file", Reason: fmt.Sprintf("file exceeds the %d byte limit for %s uploads", limit, class)}
	}
	return nil
}

// Validate runs every check in order: unit id, filename, type, size.
func (v *Validator) Validate(class FileClass, unitID, originalName, mimeType string, size int64) error {
	if err := v.ValidateUnitID(unitID); err != nil {
		return err
	}
	if err := v.ValidateFilename(originalName); err != nil {
		return err
	}
	if err := v.ValidateType(class, mimeType, originalName); err != nil {
		return err
	}
	return v.ValidateSize(class, size)
}

// SecureName builds the stored filename: unitID_timestamp_random.ext. No
// attacker-controlled substring survives except the validated extension.
func SecureName(unitID, originalName string, now time.Time) (string, error) {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate filename suffix: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%s_%d_%s%s", unitID, now.UnixMilli(), hex.EncodeToString(suffix), ext), nil
}
