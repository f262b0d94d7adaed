// Package assignmentview filters and orders an in-memory assignment collection for display.
package assignmentview

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/noah-isme/syllabus-dashboard/internal/duedate"
	"github.com/noah-isme/syllabus-dashboard/internal/models"
)

// TypeAll disables the type filter.
const TypeAll = "all"

// SortKey selects the ordering of the result.
type SortKey string

const (
	SortByDueDate     SortKey = "due_date"
	SortByDueDateDesc SortKey = "-due_date"
	SortByTitle       SortKey = "title"
	SortByHours       SortKey = "hours"
)

// EmptyReason tells the caller why a result holds no items.
type EmptyReason string

const (
	EmptyReasonNone          EmptyReason = ""
	EmptyReasonNoAssignments EmptyReason = "no_assignments"
	EmptyReasonNoMatches     EmptyReason = "no_matches"
)

// Query holds the independent view parameters.
type Query struct {
	Search string
	Type   string
	SortBy SortKey
}

// Result is the ordered projection of a collection.
type Result struct {
	Items       []models.Assignment
	Total       int
	EmptyReason EmptyReason
}

// ParseSortKey maps request input onto a sort key, defaulting to due date.
func ParseSortKey(raw string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(raw))) {
	case SortByTitle:
		return SortByTitle
	case SortByHours:
		return SortByHours
	case SortByDueDateDesc:
		return SortByDueDateDesc
	default:
		return SortByDueDate
	}
}

// Apply filters and sorts assignments without mutating the input slice.
func Apply(assignments []models.Assignment, query Query) Result {
	filtered := Filter(assignments, query.Search, query.Type)
	Sort(filtered, query.SortBy)

	result := Result{Items: filtered, Total: len(assignments)}
	if len(filtered) == 0 {
		if len(assignments) == 0 {
			result.EmptyReason = EmptyReasonNoAssignments
		} else {
			result.EmptyReason = EmptyReasonNoMatches
		}
	}
	return result
}

// Filter returns a new slice holding the assignments that match the search term and type.
func Filter(assignments []models.Assignment, search, assignmentType string) []models.Assignment {
	term := strings.ToLower(strings.TrimSpace(search))
	typeFilter := strings.ToLower(strings.TrimSpace(assignmentType))
	if typeFilter == "" {
		typeFilter = TypeAll
	}

	filtered := make([]models.Assignment, 0, len(assignments))
	for _, assignment := range assignments {
		if term != "" && !matchesSearch(assignment, term) {
			continue
		}
		if typeFilter != TypeAll && string(assignment.AssignmentType) != typeFilter {
			continue
		}
		filtered = append(filtered, assignment)
	}
	return filtered
}

func matchesSearch(assignment models.Assignment, term string) bool {
	if strings.Contains(strings.ToLower(assignment.Title), term) {
		return true
	}
	if assignment.Description == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*assignment.Description), term)
}

// Sort orders assignments in place. The sort is stable for every key.
func Sort(assignments []models.Assignment, key SortKey) {
	switch key {
	case SortByTitle:
		collator := collate.New(language.English)
		slices.SortStableFunc(assignments, func(a, b models.Assignment) int {
			return collator.CompareString(a.Title, b.Title)
		})
	case SortByHours:
		slices.SortStableFunc(assignments, func(a, b models.Assignment) int {
			ha, hb := a.Hours(), b.Hours()
			switch {
			case ha > hb:
				return -1
			case ha < hb:
				return 1
			default:
				return 0
			}
		})
	case SortByDueDateDesc:
		slices.SortStableFunc(assignments, func(a, b models.Assignment) int {
			return duedate.CompareDescending(a.DueDate, b.DueDate)
		})
	default:
		slices.SortStableFunc(assignments, func(a, b models.Assignment) int {
			return duedate.Compare(a.DueDate, b.DueDate)
		})
	}
}
