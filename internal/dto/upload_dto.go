package dto

import (
	"time"

	"github.com/noah-isme/syllabus-dashboard/internal/ingestion"
	"github.com/noah-isme/syllabus-dashboard/internal/models"
)

// UploadStateResponse is the ingestion state of a dashboard session.
type UploadStateResponse struct {
	State            ingestion.State `json:"state"`
	Generation       uint64          `json:"generation"`
	FileName         string          `json:"file_name,omitempty"`
	SizeBytes        int64           `json:"size_bytes,omitempty"`
	SyllabusID       *uint           `json:"syllabus_id,omitempty"`
	ProcessingStatus string          `json:"processing_status,omitempty"`
	AssignmentCount  *int            `json:"assignment_count,omitempty"`
	CourseName       string          `json:"course_name,omitempty"`
	Message          string          `json:"message,omitempty"`
	Error            string          `json:"error,omitempty"`
	Polls            int             `json:"polls"`
	CanSubmit        bool            `json:"can_submit"`
	CanReset         bool            `json:"can_reset"`
	AcceptedTypes    []string        `json:"accepted_types"`
	MaxUploadBytes   int64           `json:"max_upload_bytes"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewUploadStateResponse converts a controller snapshot into a DTO.
func NewUploadStateResponse(snapshot ingestion.Snapshot, maxUploadBytes int64) UploadStateResponse {
	response := UploadStateResponse{
		State:           snapshot.State,
		Generation:      snapshot.Generation,
		FileName:        snapshot.FileName,
		SizeBytes:       snapshot.SizeBytes,
		SyllabusID:      snapshot.SyllabusID,
		AssignmentCount: snapshot.AssignmentCount,
		CourseName:      snapshot.CourseName,
		Message:         snapshot.Message(),
		Error:           snapshot.Error,
		Polls:           snapshot.Polls,
		CanSubmit:       snapshot.State == ingestion.StateIdle,
		CanReset:        !snapshot.State.InFlight(),
		AcceptedTypes:   ingestion.AcceptedExtensions,
		MaxUploadBytes:  maxUploadBytes,
		StartedAt:       snapshot.StartedAt,
		UpdatedAt:       snapshot.UpdatedAt,
	}
	if snapshot.LastStatus != nil {
		response.ProcessingStatus = snapshot.LastStatus.Status
	}
	return response
}

// IngestionRecordResponse is one persisted upload attempt.
type IngestionRecordResponse struct {
	ID              uint      `json:"id"`
	SyllabusID      *uint     `json:"syllabus_id,omitempty"`
	FileName        string    `json:"file_name"`
	SizeBytes       int64     `json:"size_bytes"`
	State           string    `json:"state"`
	Reason          string    `json:"reason,omitempty"`
	AssignmentCount *int      `json:"assignment_count,omitempty"`
	CourseName      string    `json:"course_name,omitempty"`
	Polls           int       `json:"polls"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// NewIngestionRecordResponse converts a model into a DTO.
func NewIngestionRecordResponse(model models.IngestionRecord) IngestionRecordResponse {
	return IngestionRecordResponse{
		ID:              model.ID,
		SyllabusID:      model.SyllabusID,
		FileName:        model.FileName,
		SizeBytes:       model.SizeBytes,
		State:           model.State,
		Reason:          model.Reason,
		AssignmentCount: model.AssignmentCount,
		CourseName:      model.CourseName,
		Polls:           model.Polls,
		StartedAt:       model.StartedAt,
		FinishedAt:      model.FinishedAt,
	}
}

// IngestionRecordListResponse wraps a page of attempts.
type IngestionRecordListResponse struct {
	Items      []IngestionRecordResponse `json:"items"`
	Pagination PaginationMeta            `json:"pagination"`
}

// SessionResponse is returned when a dashboard session is opened.
type SessionResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DashboardResponse composes every panel of the dashboard. Data panels are omitted until at
// least one assignment exists.
type DashboardResponse struct {
	Upload         UploadStateResponse     `json:"upload"`
	HasAssignments bool                    `json:"has_assignments"`
	EmptyPrompt    string                  `json:"empty_prompt,omitempty"`
	Stats          *StatsResponse          `json:"stats,omitempty"`
	Assignments    *AssignmentListResponse `json:"assignments,omitempty"`
	Syllabi        []SyllabusResponse      `json:"syllabi,omitempty"`
	Exports        []ExportLink            `json:"exports,omitempty"`
}
