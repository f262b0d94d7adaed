package models

import (
	"encoding/json"
	"strings"

	"cloud.google.com/go/civil"
)

// AssignmentType enumerates the task categories an extracted assignment can carry.
type AssignmentType string

const (
	AssignmentTypeHomework     AssignmentType = "homework"
	AssignmentTypeQuiz         AssignmentType = "quiz"
	AssignmentTypeExam         AssignmentType = "exam"
	AssignmentTypeProject      AssignmentType = "project"
	AssignmentTypePaper        AssignmentType = "paper"
	AssignmentTypeReading      AssignmentType = "reading"
	AssignmentTypePresentation AssignmentType = "presentation"
	AssignmentTypeLab          AssignmentType = "lab"
	AssignmentTypeDiscussion   AssignmentType = "discussion"
	AssignmentTypeOther        AssignmentType = "other"
)

// AssignmentTypes lists every recognised type in display order.
var AssignmentTypes = []AssignmentType{
	AssignmentTypeHomework,
	AssignmentTypeQuiz,
	AssignmentTypeExam,
	AssignmentTypeProject,
	AssignmentTypePaper,
	AssignmentTypeReading,
	AssignmentTypePresentation,
	AssignmentTypeLab,
	AssignmentTypeDiscussion,
	AssignmentTypeOther,
}

// Style is a foreground/background colour pairing used by badges.
type Style struct {
	Foreground string `json:"foreground"`
	Background string `json:"background"`
}

var assignmentTypeStyles = map[AssignmentType]Style{
	AssignmentTypeHomework:     {Foreground: "blue-800", Background: "blue-100"},
	AssignmentTypeQuiz:         {Foreground: "yellow-800", Background: "yellow-100"},
	AssignmentTypeExam:         {Foreground: "red-800", Background: "red-100"},
	AssignmentTypeProject:      {Foreground: "purple-800", Background: "purple-100"},
	AssignmentTypePaper:        {Foreground: "indigo-800", Background: "indigo-100"},
	AssignmentTypeReading:      {Foreground: "green-800", Background: "green-100"},
	AssignmentTypePresentation: {Foreground: "pink-800", Background: "pink-100"},
	AssignmentTypeLab:          {Foreground: "cyan-800", Background: "cyan-100"},
	AssignmentTypeDiscussion:   {Foreground: "orange-800", Background: "orange-100"},
	AssignmentTypeOther:        {Foreground: "gray-800", Background: "gray-100"},
}

// NormalizeAssignmentType maps arbitrary input onto the fixed type set; unknown values become other.
func NormalizeAssignmentType(raw string) AssignmentType {
	candidate := AssignmentType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := assignmentTypeStyles[candidate]; ok {
		return candidate
	}
	return AssignmentTypeOther
}

// IsValidAssignmentType reports whether raw names a member of the fixed set exactly.
func IsValidAssignmentType(raw string) bool {
	_, ok := assignmentTypeStyles[AssignmentType(raw)]
	return ok
}

// Style returns the badge colours for the type.
func (t AssignmentType) Style() Style {
	if style, ok := assignmentTypeStyles[t]; ok {
		return style
	}
	return assignmentTypeStyles[AssignmentTypeOther]
}

// UnmarshalJSON normalises the wire value so every decoded type is a member of the fixed set.
func (t *AssignmentType) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*t = AssignmentTypeOther
		return nil
	}
	*t = NormalizeAssignmentType(*raw)
	return nil
}

// Assignment is one task extracted from a syllabus by the upstream service.
type Assignment struct {
	ID             uint           `json:"id"`
	SyllabusID     uint           `json:"syllabus_id"`
	Title          string         `json:"title"`
	Description    *string        `json:"description,omitempty"`
	DueDate        *civil.Date    `json:"due_date,omitempty"`
	DueTime        *string        `json:"due_time,omitempty"`
	EstimatedHours *float64       `json:"estimated_hours,omitempty"`
	AssignmentType AssignmentType `json:"assignment_type"`
	CourseName     *string        `json:"course_name,omitempty"`
}

// Hours returns the estimate, treating a missing value as zero.
func (a Assignment) Hours() float64 {
	if a.EstimatedHours == nil {
		return 0
	}
	return *a.EstimatedHours
}

// DescriptionText returns the description or an empty string.
func (a Assignment) DescriptionText() string {
	if a.Description == nil {
		return ""
	}
	return *a.Description
}

// EffectiveDueTime returns the due time only when a due date is present.
func (a Assignment) EffectiveDueTime() *string {
	if a.DueDate == nil {
		return nil
	}
	return a.DueTime
}

// AssignmentStats aggregates counts reported by the upstream service.
type AssignmentStats struct {
	Total      int            `json:"total"`
	Upcoming   int            `json:"upcoming"`
	Overdue    int            `json:"overdue"`
	TotalHours float64        `json:"total_hours"`
	ByType     map[string]int `json:"by_type,omitempty"`
}

// AssignmentPatch carries the fields of a partial assignment update. Nil fields are left unchanged.
type AssignmentPatch struct {
	Title          *string         `json:"title,omitempty"`
	Description    *string         `json:"description,omitempty"`
	AssignmentType *AssignmentType `json:"assignment_type,omitempty"`
	DueDate        *civil.Date     `json:"due_date,omitempty"`
	DueTime        *string         `json:"due_time,omitempty"`
	EstimatedHours *float64        `json:"estimated_hours,omitempty"`
	CourseName     *string         `json:"course_name,omitempty"`
}
