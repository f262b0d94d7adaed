package dto

import (
	"time"

	"github.com/noah-isme/syllabus-dashboard/internal/duedate"
	"github.com/noah-isme/syllabus-dashboard/internal/models"
)

// AssignmentListQuery captures the view parameters of the assignment list.
type AssignmentListQuery struct {
	Search     string `query:"search" validate:"omitempty,max=200"`
	Type       string `query:"type" validate:"omitempty,oneof=all homework exam project quiz reading lab presentation paper discussion other"`
	SyllabusID *uint  `query:"syllabus_id" validate:"omitempty,gt=0"`
	Sort       string `query:"sort" validate:"omitempty,oneof=due_date -due_date title hours"`
}

// AssignmentUpdateRequest describes a partial assignment edit. Omitted fields stay unchanged.
type AssignmentUpdateRequest struct {
	Title          *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Description    *string  `json:"description" validate:"omitempty,max=5000"`
	AssignmentType *string  `json:"assignment_type" validate:"omitempty,oneof=homework exam project quiz reading lab presentation paper discussion other"`
	DueDate        *string  `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	DueTime        *string  `json:"due_time" validate:"omitempty,max=32"`
	EstimatedHours *float64 `json:"estimated_hours" validate:"omitempty,gte=0,lte=1000"`
	CourseName     *string  `json:"course_name" validate:"omitempty,max=255"`
}

// IsEmpty reports whether the request changes nothing.
func (r AssignmentUpdateRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.AssignmentType == nil && r.DueDate == nil &&
		r.DueTime == nil && r.EstimatedHours == nil && r.CourseName == nil
}

// AssignmentResponse is an assignment decorated with its display attributes.
type AssignmentResponse struct {
	ID             uint                  `json:"id"`
	SyllabusID     uint                  `json:"syllabus_id"`
	Title          string                `json:"title"`
	Description    string                `json:"description,omitempty"`
	DueDate        *string               `json:"due_date"`
	DueTime        *string               `json:"due_time,omitempty"`
	DueLabel       string                `json:"due_label"`
	RelativeLabel  string                `json:"relative_label,omitempty"`
	Bucket         duedate.Bucket        `json:"bucket"`
	BucketStyle    models.Style          `json:"bucket_style"`
	EstimatedHours *float64              `json:"estimated_hours,omitempty"`
	AssignmentType models.AssignmentType `json:"assignment_type"`
	TypeStyle      models.Style          `json:"type_style"`
	CourseName     *string               `json:"course_name,omitempty"`
}

// NewAssignmentResponse converts a model into a DTO relative to now.
func NewAssignmentResponse(model models.Assignment, now time.Time) AssignmentResponse {
	var dueDate *string
	if model.DueDate != nil {
		value := model.DueDate.String()
		dueDate = &value
	}

	relative, _ := duedate.RelativeLabel(model.DueDate, now)
	bucket := duedate.Classify(model.DueDate, now)

	return AssignmentResponse{
		ID:             model.ID,
		SyllabusID:     model.SyllabusID,
		Title:          model.Title,
		Description:    model.DescriptionText(),
		DueDate:        dueDate,
		DueTime:        model.EffectiveDueTime(),
		DueLabel:       duedate.FormatAbsolute(model.DueDate, model.EffectiveDueTime()),
		RelativeLabel:  relative,
		Bucket:         bucket,
		BucketStyle:    bucket.Style(),
		EstimatedHours: model.EstimatedHours,
		AssignmentType: model.AssignmentType,
		TypeStyle:      model.AssignmentType.Style(),
		CourseName:     model.CourseName,
	}
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment, now time.Time) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment, now))
	}

	return responses
}

// AssignmentFilters echoes the effective view parameters.
type AssignmentFilters struct {
	Search     string `json:"search"`
	Type       string `json:"type"`
	SyllabusID *uint  `json:"syllabus_id,omitempty"`
	Sort       string `json:"sort"`
}

// AssignmentListResponse is the filtered, ordered collection.
type AssignmentListResponse struct {
	Items       []AssignmentResponse `json:"items"`
	Total       int                  `json:"total"`
	Matched     int                  `json:"matched"`
	EmptyReason string               `json:"empty_reason,omitempty"`
	Filters     AssignmentFilters    `json:"filters"`
}

// UpcomingResponse lists assignments due within a window of days.
type UpcomingResponse struct {
	Days  int                  `json:"days"`
	Items []AssignmentResponse `json:"items"`
}
