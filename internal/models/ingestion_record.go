package models

import (
	"time"

	"gorm.io/datatypes"
)

// IngestionRecord stores the outcome of one upload attempt made from a dashboard session.
type IngestionRecord struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	SessionID       string         `gorm:"size:64;index;not null" json:"session_id"`
	SyllabusID      *uint          `gorm:"index" json:"syllabus_id,omitempty"`
	FileName        string         `gorm:"size:255;not null" json:"file_name"`
	SizeBytes       int64          `gorm:"not null" json:"size_bytes"`
	State           string         `gorm:"size:32;not null" json:"state"`
	Reason          string         `gorm:"type:text" json:"reason,omitempty"`
	AssignmentCount *int           `json:"assignment_count,omitempty"`
	CourseName      string         `gorm:"size:255" json:"course_name,omitempty"`
	Polls           int            `gorm:"not null;default:0" json:"polls"`
	LastStatus      datatypes.JSON `json:"last_status,omitempty"`
	StartedAt       time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt      time.Time      `gorm:"not null" json:"finished_at"`
	CreatedAt       time.Time      `json:"created_at"`
}
