package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks feed or content fetch failures.
	ErrTransport = errors.New("transport error")
	// ErrAssessmentTransient marks assessment failures worth retrying (rate limit, timeout).
	ErrAssessmentTransient = errors.New("assessment transient error")
	// ErrAssessmentPermanent marks assessment failures that will not improve on retry.
	ErrAssessmentPermanent = errors.New("assessment permanent error")
	// ErrAssessmentFailed is the terminal processing outcome of an assessment failure.
	ErrAssessmentFailed = errors.New("assessment failed")
	// ErrContentUnavailable is returned when content cannot be fetched and no abstract fallback exists.
	ErrContentUnavailable = errors.New("content unavailable")
	// ErrAlreadyProcessed is returned by a second non-forced write for the same paper.
	ErrAlreadyProcessed = errors.New("paper already processed")
	// ErrDistributionSend marks a failed channel send.
	ErrDistributionSend = errors.New("distribution send error")
	// ErrNotFound is returned by lookups of unknown records.
	ErrNotFound = errors.New("not found")
)

// ProcessingError ties a processing failure to its paper.
type ProcessingError struct {
	PaperID string
	Err     error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("process paper %s: %v", e.PaperID, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable assessment failure.
func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrAssessmentTransient, err)
}

// Permanent wraps err as a non-retryable assessment failure.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrAssessmentPermanent, err)
}
