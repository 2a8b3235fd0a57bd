package pipeline

import (
	"github.com/iconidentify/audiograbba/internal/domain"
)

// IterationStatus is how one iteration ended.
type IterationStatus string

const (
	StatusDelivered         IterationStatus = "delivered"
	StatusNoCandidates      IterationStatus = "no_candidates"
	StatusAcquisitionFailed IterationStatus = "acquisition_failed"
	StatusDeliveryFailed    IterationStatus = "delivery_failed"
	StatusUnexpected        IterationStatus = "unexpected_error"
	StatusCancelled         IterationStatus = "cancelled"
)

// UploadStatus is the result of the optional upload step.
type UploadStatus string

const (
	UploadSkipped   UploadStatus = "skipped"
	UploadSucceeded UploadStatus = "succeeded"
	UploadFailed    UploadStatus = "failed"
)

// IterationOutcome records one search-select-acquire-deliver-upload cycle.
type IterationOutcome struct {
	Index        int // 1-based
	Status       IterationStatus
	PoolSize     int
	Selected     *domain.VideoCandidate
	Upload       UploadStatus
	ArtifactPath string
	Err          error
}

// Failed reports whether the iteration ended in an error.
func (o IterationOutcome) Failed() bool {
	switch o.Status {
	case StatusAcquisitionFailed, StatusDeliveryFailed, StatusUnexpected:
		return true
	}
	return false
}

// RunReport is the result of one pipeline run for one message.
type RunReport struct {
	RunID      string
	UserID     domain.UserID
	Keywords   []string
	Refused    bool // session missing or not configured
	Err        error
	Iterations []IterationOutcome
}

// Delivered counts iterations that delivered audio.
func (r *RunReport) Delivered() int {
	n := 0
	for _, it := range r.Iterations {
		if it.Status == StatusDelivered {
			n++
		}
	}
	return n
}
