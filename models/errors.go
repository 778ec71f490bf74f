package models

import (
	"context"
	"errors"
)

// Failure taxonomy for the extraction pipeline. Handlers and the task
// processor classify errors with errors.Is against these sentinels.
var (
	// Fatal input errors; the caller must fix the document.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrCorruptDocument   = errors.New("corrupt document")

	// Backend outages; retryable by the caller after backoff.
	ErrRecognizerUnavailable = errors.New("text recognizer unavailable")
	ErrEmbedderUnavailable   = errors.New("embedder unavailable")
	ErrIndexingTimedOut      = errors.New("indexing timed out")

	// Caller bugs; never retried.
	ErrEmptyInput        = errors.New("empty input")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidArgument   = errors.New("invalid argument")

	// Another indexing run holds the per-file lock; caller should poll.
	ErrAlreadyIndexing = errors.New("file is already being indexed")

	ErrFileNotFound = errors.New("file not found")
)

// FailureKind returns the stable error code exposed to API callers.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrCorruptDocument):
		return "corrupt_document"
	case errors.Is(err, ErrRecognizerUnavailable):
		return "recognizer_unavailable"
	case errors.Is(err, ErrEmbedderUnavailable):
		return "embedder_unavailable"
	case errors.Is(err, ErrIndexingTimedOut):
		return "indexing_timed_out"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrAlreadyIndexing):
		return "already_indexing"
	case errors.Is(err, ErrFileNotFound):
		return "file_not_found"
	default:
		return "internal_error"
	}
}

// Retryable reports whether the caller may retry the whole operation
// after backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrRecognizerUnavailable) ||
		errors.Is(err, ErrEmbedderUnavailable) ||
		errors.Is(err, ErrIndexingTimedOut) ||
		errors.Is(err, context.DeadlineExceeded)
}
