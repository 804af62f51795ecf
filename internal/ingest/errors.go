package ingest

import (
	"errors"
	"fmt"

	"cv-rag-platform/internal/fingerprint"
)

var (
	// ErrExtraction wraps any failure to get text out of an upload.
	ErrExtraction = errors.New("text extraction failed")
	// ErrEmptyDocument is returned for zero byte uploads.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrInvalidName is returned when nothing is left of the file name
	// after normalization.
	ErrInvalidName = errors.New("file name is empty after normalization")
	// ErrConflict is returned by a Store when a unique index rejects a
	// write.
	ErrConflict = errors.New("unique constraint violated")
	// ErrInFlight means another request holds the ingest lock for the
	// same content.
	ErrInFlight = errors.New("an upload with the same content is already being processed")
	// ErrNotFound is returned by stores for unknown CV ids.
	ErrNotFound = errors.New("cv not found")
)

// DuplicateError reports the stored CV an upload collides with.
type DuplicateError struct {
	Existing fingerprint.Record
	Reason   fingerprint.Reason
}

func (e *DuplicateError) Error() string {
	what := "content"
	if e.Reason == fingerprint.ReasonName {
		what = "name"
	}
	return fmt.Sprintf("A CV with the same %s already exists: %q", what, e.Existing.DisplayName)
}

// ValidationError means the document was read but does not look like a CV.
type ValidationError struct {
	Justification string
}

func (e *ValidationError) Error() string {
	if e.Justification == "" {
		return "the document does not appear to be a CV"
	}
	return "the document does not appear to be a CV: " + e.Justification
}

func IsDuplicate(err error) (*DuplicateError, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}
