package ingestion

import (
	"errors"
	"fmt"
)

// ValidationReason identifies which client-side check rejected an upload.
type ValidationReason string

const (
	ReasonMissing ValidationReason = "missing"
	ReasonCount   ValidationReason = "count"
	ReasonType    ValidationReason = "type"
	ReasonSize    ValidationReason = "size"
)

// Messages surfaced in the error state.
const (
	MessageUploadFailed      = "upload failed"
	MessageStatusCheckFailed = "status check failed"
	MessageTimedOut          = "processing timed out"
	MessageRefreshFailed     = "assignments could not be refreshed"
)

var (
	// ErrBusy indicates a submission while an upload is already in flight.
	ErrBusy = errors.New("an upload is already in progress")
	// ErrNotTerminal indicates a reset outside the complete or error states.
	ErrNotTerminal = errors.New("upload has not finished")
)

// ValidationError rejects a file before any network call is made.
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SubmissionError reports that the upstream rejected the upload or could not be reached.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// PollTransportError reports a failed status check.
type PollTransportError struct {
	SyllabusID uint
	Err        error
}

func (e *PollTransportError) Error() string {
	return fmt.Sprintf("status check for syllabus %d failed: %v", e.SyllabusID, e.Err)
}

func (e *PollTransportError) Unwrap() error {
	return e.Err
}

// ProcessingFailure carries the failed status reported by the upstream, verbatim.
type ProcessingFailure struct {
	SyllabusID uint
	Status     string
}

func (e *ProcessingFailure) Error() string {
	return e.Status
}
