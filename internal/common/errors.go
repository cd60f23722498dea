// Package common defines shared constants and sentinel errors used across
// client layers of DULO. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Validation errors raised before any network call.
	ErrValidation      = errors.New("validation error")
	ErrInvalidFileType = errors.New("invalid file-type")
	ErrNoFiles         = errors.New("no files provided")
	ErrFileTooLarge    = errors.New("image exceeds 2MB")
	ErrTooManyFiles    = errors.New("too many files")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrInvalidFilename = errors.New("invalid filename")

	// Session errors.
	ErrNoSession = errors.New("no active session")
)
