package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestFailureKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrUnsupportedFormat, "unsupported_format"},
		{ErrCorruptDocument, "corrupt_document"},
		{ErrRecognizerUnavailable, "recognizer_unavailable"},
		{ErrEmbedderUnavailable, "embedder_unavailable"},
		{ErrIndexingTimedOut, "indexing_timed_out"},
		{ErrEmptyInput, "empty_input"},
		{ErrDimensionMismatch, "dimension_mismatch"},
		{ErrInvalidArgument, "invalid_argument"},
		{ErrAlreadyIndexing, "already_indexing"},
		{ErrFileNotFound, "file_not_found"},
		{errors.New("anything else"), "internal_error"},
		// Wrapped errors keep their kind.
		{fmt.Errorf("page 3: %w", ErrCorruptDocument), "corrupt_document"},
	}
	for _, c := range cases {
		if got := FailureKind(c.err); got != c.want {
			t.Errorf("FailureKind(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	for _, err := range []error{
		ErrRecognizerUnavailable,
		ErrEmbedderUnavailable,
		ErrIndexingTimedOut,
		context.DeadlineExceeded,
		fmt.Errorf("wrapped: %w", ErrEmbedderUnavailable),
	} {
		if !Retryable(err) {
			t.Errorf("Retryable(%v) = false, want true", err)
		}
	}
	for _, err := range []error{
		ErrUnsupportedFormat,
		ErrCorruptDocument,
		ErrDimensionMismatch,
		ErrInvalidArgument,
		ErrFileNotFound,
		context.Canceled,
		errors.New("unknown"),
	} {
		if Retryable(err) {
			t.Errorf("Retryable(%v) = true, want false", err)
		}
	}
}
