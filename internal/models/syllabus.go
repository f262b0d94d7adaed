package models

import (
	"strings"
	"time"
)

const (
	// ProcessingStatusProcessing is reported while extraction is running.
	ProcessingStatusProcessing = "processing"
	// ProcessingStatusCompleted is reported once assignments were extracted.
	ProcessingStatusCompleted = "completed"
	// ProcessingStatusFailedPrefix prefixes every failed status, e.g. "failed: unreadable document".
	ProcessingStatusFailedPrefix = "failed"
)

// Syllabus is the upstream record of one submitted document.
type Syllabus struct {
	ID              uint         `json:"id"`
	Filename        string       `json:"filename"`
	CourseName      *string      `json:"course_name,omitempty"`
	Instructor      *string      `json:"instructor,omitempty"`
	Semester        *string      `json:"semester,omitempty"`
	Status          string       `json:"processing_status"`
	UploadDate      *time.Time   `json:"upload_date,omitempty"`
	Assignments     []Assignment `json:"assignments,omitempty"`
	AssignmentCount *int         `json:"assignment_count,omitempty"`
}

// DisplayName prefers the extracted course name over the uploaded filename.
func (s Syllabus) DisplayName() string {
	if s.CourseName != nil && strings.TrimSpace(*s.CourseName) != "" {
		return *s.CourseName
	}
	return s.Filename
}

// Count returns the number of assignments attached to the syllabus.
func (s Syllabus) Count() int {
	if s.AssignmentCount != nil {
		return *s.AssignmentCount
	}
	return len(s.Assignments)
}

// ProcessingStatus is the payload returned by the upstream status endpoint.
type ProcessingStatus struct {
	ID              uint    `json:"id"`
	Filename        string  `json:"filename,omitempty"`
	Status          string  `json:"status"`
	CourseName      *string `json:"course_name,omitempty"`
	Instructor      *string `json:"instructor,omitempty"`
	AssignmentCount *int    `json:"assignment_count,omitempty"`
}

// IsCompleted reports a successful terminal status.
func (p ProcessingStatus) IsCompleted() bool {
	return strings.TrimSpace(p.Status) == ProcessingStatusCompleted
}

// IsFailed reports a failed terminal status of the form "failed[:reason]".
func (p ProcessingStatus) IsFailed() bool {
	return strings.HasPrefix(strings.TrimSpace(p.Status), ProcessingStatusFailedPrefix)
}

// UploadReceipt is returned when the upstream accepts a document.
type UploadReceipt struct {
	ID       uint   `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"processing_status"`
}

// UploadFile is a document submitted by the user, held in memory until it is sent upstream.
type UploadFile struct {
	Name string
	// Size is the declared size; it may be known before Data is read.
	Size int64
	Data []byte
}

// EffectiveSize returns the larger of the declared and the buffered size.
func (f UploadFile) EffectiveSize() int64 {
	if n := int64(len(f.Data)); n > f.Size {
		return n
	}
	return f.Size
}
