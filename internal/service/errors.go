package service

import (
	"errors"
	"fmt"
)

var (
	// ErrAssignmentNotFound indicates the requested assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrSyllabusNotFound indicates the requested syllabus does not exist.
	ErrSyllabusNotFound = errors.New("syllabus not found")
	// ErrEmptyUpdate indicates an update request without any field.
	ErrEmptyUpdate = errors.New("at least one field must be provided")
	// ErrEmptyTitle indicates a title that has no text left once markup is stripped.
	ErrEmptyTitle = errors.New("title must not be empty")
	// ErrInvalidWindow indicates an upcoming window outside 1..365 days.
	ErrInvalidWindow = errors.New("days must be between 1 and 365")
	// ErrUpstreamUnavailable indicates the extraction service could not serve a read.
	ErrUpstreamUnavailable = errors.New("syllabus service unavailable")
)

// MutationError reports a failed update or delete. The affected item is left as it was.
type MutationError struct {
	Operation string
	ID        uint
	Err       error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %d failed: %v", e.Operation, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
