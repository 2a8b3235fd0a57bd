package domain

import "errors"

// Domain errors.
var (
	// ErrSessionNotFound is returned when no session exists for a user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotConfigured is reported when the pipeline runs before /settings completed.
	ErrNotConfigured = errors.New("session not configured")

	// ErrInvalidRepeatCount is returned when the repeat count is not an integer.
	ErrInvalidRepeatCount = errors.New("repeat count is not a number")

	// ErrRepeatCountOutOfRange is returned when the repeat count is outside the allowed range.
	ErrRepeatCountOutOfRange = errors.New("repeat count out of range")

	// ErrEmptyArtifact is returned when extraction produced no audio bytes.
	ErrEmptyArtifact = errors.New("extracted audio file is empty")

	// ErrUnsupportedArtifact is returned when the produced file is not recognizable audio.
	ErrUnsupportedArtifact = errors.New("extracted file is not audio")

	// ErrNoCandidates is reported when no search result survived filtering.
	ErrNoCandidates = errors.New("no suitable videos found")
)

// AcquisitionError wraps an audio acquisition failure with its source URL.
type AcquisitionError struct {
	URL string
	Op  string
	Err error
}

func (e *AcquisitionError) Error() string {
	if e.URL != "" {
		return e.Op + " [" + e.URL + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// NewAcquisitionError creates a new AcquisitionError.
func NewAcquisitionError(url, op string, err error) *AcquisitionError {
	return &AcquisitionError{
		URL: url,
		Op:  op,
		Err: err,
	}
}
