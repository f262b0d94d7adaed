package dto

import (
	"time"

	"github.com/noah-isme/syllabus-dashboard/internal/models"
)

// SyllabusResponse is one entry of the upload history.
type SyllabusResponse struct {
	ID               uint       `json:"id"`
	Filename         string     `json:"filename"`
	DisplayName      string     `json:"display_name"`
	CourseName       *string    `json:"course_name,omitempty"`
	Instructor       *string    `json:"instructor,omitempty"`
	Semester         *string    `json:"semester,omitempty"`
	ProcessingStatus string     `json:"processing_status"`
	UploadDate       *time.Time `json:"upload_date,omitempty"`
	AssignmentCount  int        `json:"assignment_count"`
}

// NewSyllabusResponse converts a model into a DTO.
func NewSyllabusResponse(model models.Syllabus) SyllabusResponse {
	return SyllabusResponse{
		ID:               model.ID,
		Filename:         model.Filename,
		DisplayName:      model.DisplayName(),
		CourseName:       model.CourseName,
		Instructor:       model.Instructor,
		Semester:         model.Semester,
		ProcessingStatus: model.Status,
		UploadDate:       model.UploadDate,
		AssignmentCount:  model.Count(),
	}
}

// NewSyllabusResponseSlice converts a slice of models into DTOs.
func NewSyllabusResponseSlice(syllabi []models.Syllabus) []SyllabusResponse {
	responses := make([]SyllabusResponse, 0, len(syllabi))
	for _, syllabus := range syllabi {
		responses = append(responses, NewSyllabusResponse(syllabus))
	}
	return responses
}

// StatsResponse carries the aggregate counters shown above the list.
type StatsResponse struct {
	Total      int            `json:"total"`
	Upcoming   int            `json:"upcoming"`
	Overdue    int            `json:"overdue"`
	TotalHours float64        `json:"total_hours"`
	ByType     map[string]int `json:"by_type"`
}

// NewStatsResponse converts upstream stats into a DTO.
func NewStatsResponse(stats models.AssignmentStats) StatsResponse {
	byType := stats.ByType
	if byType == nil {
		byType = map[string]int{}
	}
	return StatsResponse{
		Total:      stats.Total,
		Upcoming:   stats.Upcoming,
		Overdue:    stats.Overdue,
		TotalHours: stats.TotalHours,
		ByType:     byType,
	}
}

// ExportLink points at a downloadable export.
type ExportLink struct {
	Format string `json:"format"`
	URL    string `json:"url"`
}
