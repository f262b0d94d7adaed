package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/syllabus-dashboard/internal/assignmentview"
	"github.com/noah-isme/syllabus-dashboard/internal/dto"
	"github.com/noah-isme/syllabus-dashboard/internal/duedate"
	"github.com/noah-isme/syllabus-dashboard/internal/models"
	"github.com/noah-isme/syllabus-dashboard/internal/store"
	"github.com/noah-isme/syllabus-dashboard/pkg/syllabusapi"
)

// DefaultUpcomingDays is the window used when none is requested.
const DefaultUpcomingDays = 14

// Cache is the shared collection store read by the dashboard panels.
type Cache interface {
	Assignments(ctx context.Context, syllabusID *uint) ([]models.Assignment, error)
	Syllabi(ctx context.Context) ([]models.Syllabus, error)
	Stats(ctx context.Context) (models.AssignmentStats, error)
	Invalidate(ctx context.Context, scopes ...store.Scope) error
	Refetch(ctx context.Context, scopes ...store.Scope) error
}

// Mutator applies confirmed changes on the extraction service.
type Mutator interface {
	UpdateAssignment(ctx context.Context, id uint, patch models.AssignmentPatch) (models.Assignment, error)
	DeleteAssignment(ctx context.Context, id uint) error
	DeleteSyllabus(ctx context.Context, id uint) error
}

// AssignmentService exposes assignment domain use cases.
type AssignmentService interface {
	List(ctx context.Context, query dto.AssignmentListQuery) (dto.AssignmentListResponse, error)
	Upcoming(ctx context.Context, days int) (dto.UpcomingResponse, error)
	Stats(ctx context.Context) (dto.StatsResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, id uint) error
}

type assignmentService struct {
	cache     Cache
	mutator   Mutator
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(cache Cache, mutator Mutator, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		cache:     cache,
		mutator:   mutator,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/syllabus-dashboard/internal/service/assignment"),
		now:       time.Now,
	}
}

func (s *assignmentService) List(ctx context.Context, query dto.AssignmentListQuery) (dto.AssignmentListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.AssignmentListResponse{}, err
	}

	assignments, err := s.cache.Assignments(ctx, query.SyllabusID)
	if err != nil {
		return dto.AssignmentListResponse{}, unavailable(err)
	}

	typeFilter := strings.TrimSpace(query.Type)
	if typeFilter == "" {
		typeFilter = assignmentview.TypeAll
	}
	sortKey := assignmentview.ParseSortKey(query.Sort)

	result := assignmentview.Apply(assignments, assignmentview.Query{
		Search: query.Search,
		Type:   typeFilter,
		SortBy: sortKey,
	})

	return dto.AssignmentListResponse{
		Items:       dto.NewAssignmentResponseSlice(result.Items, s.now()),
		Total:       result.Total,
		Matched:     len(result.Items),
		EmptyReason: string(result.EmptyReason),
		Filters: dto.AssignmentFilters{
			Search:     query.Search,
			Type:       typeFilter,
			SyllabusID: query.SyllabusID,
			Sort:       string(sortKey),
		},
	}, nil
}

func (s *assignmentService) Upcoming(ctx context.Context, days int) (dto.UpcomingResponse, error) {
	if days == 0 {
		days = DefaultUpcomingDays
	}
	if days < 1 || days > 365 {
		return dto.UpcomingResponse{}, ErrInvalidWindow
	}

	assignments, err := s.cache.Assignments(ctx, nil)
	if err != nil {
		return dto.UpcomingResponse{}, unavailable(err)
	}

	now := s.now()
	upcoming := make([]models.Assignment, 0, len(assignments))
	for _, assignment := range assignments {
		if duedate.Within(assignment.DueDate, now, days) {
			upcoming = append(upcoming, assignment)
		}
	}
	assignmentview.Sort(upcoming, assignmentview.SortByDueDate)

	return dto.UpcomingResponse{Days: days, Items: dto.NewAssignmentResponseSlice(upcoming, now)}, nil
}

func (s *assignmentService) Stats(ctx context.Context) (dto.StatsResponse, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return dto.StatsResponse{}, unavailable(err)
	}
	return dto.NewStatsResponse(stats), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if payload.IsEmpty() {
		return dto.AssignmentResponse{}, ErrEmptyUpdate
	}

	patch, err := s.buildPatch(payload)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "assignments.update", trace.WithAttributes(attribute.Int("assignment.id", int(id))))
	defer span.End()

	updated, err := s.mutator.UpdateAssignment(ctx, id, patch)
	if err != nil {
		span.RecordError(err)
		return dto.AssignmentResponse{}, s.mutationFailed("update", id, err)
	}

	s.refresh(ctx, store.ScopeAssignments, store.ScopeStats, store.ScopeSyllabi)
	s.logger.Info().Uint("assignment_id", id).Msg("assignment updated")

	return dto.NewAssignmentResponse(updated, s.now()), nil
}

func (s *assignmentService) Delete(ctx context.Context, id uint) error {
	ctx, span := s.tracer.Start(ctx, "assignments.delete", trace.WithAttributes(attribute.Int("assignment.id", int(id))))
	defer span.End()

	if err := s.mutator.DeleteAssignment(ctx, id); err != nil {
		span.RecordError(err)
		return s.mutationFailed("delete", id, err)
	}

	s.refresh(ctx, store.ScopeAssignments, store.ScopeStats, store.ScopeSyllabi)
	s.logger.Info().Uint("assignment_id", id).Msg("assignment deleted")
	return nil
}

func (s *assignmentService) buildPatch(payload dto.AssignmentUpdateRequest) (models.AssignmentPatch, error) {
	patch := models.AssignmentPatch{
		DueTime:        trimmed(payload.DueTime),
		EstimatedHours: payload.EstimatedHours,
	}

	if payload.Title != nil {
		title := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
		if title == "" {
			return models.AssignmentPatch{}, ErrEmptyTitle
		}
		patch.Title = &title
	}
	if payload.Description != nil {
		description := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
		patch.Description = &description
	}
	if payload.CourseName != nil {
		course := strings.TrimSpace(s.sanitizer.Sanitize(*payload.CourseName))
		patch.CourseName = &course
	}
	if payload.AssignmentType != nil {
		assignmentType := models.NormalizeAssignmentType(*payload.AssignmentType)
		patch.AssignmentType = &assignmentType
	}
	if payload.DueDate != nil {
		due, err := civil.ParseDate(*payload.DueDate)
		if err != nil {
			return models.AssignmentPatch{}, fmt.Errorf("invalid due date: %w", err)
		}
		patch.DueDate = &due
	}

	return patch, nil
}

func (s *assignmentService) mutationFailed(operation string, id uint, err error) error {
	if errors.Is(err, syllabusapi.ErrNotFound) {
		err = ErrAssignmentNotFound
	}
	s.logger.Warn().Err(err).Str("operation", operation).Uint("assignment_id", id).Msg("assignment mutation failed")
	return &MutationError{Operation: operation, ID: id, Err: err}
}

// refresh invalidates and reloads after a confirmed mutation. A failed reload leaves the scopes
// invalidated so the next read goes to the source.
func (s *assignmentService) refresh(ctx context.Context, scopes ...store.Scope) {
	if err := s.cache.Invalidate(ctx, scopes...); err != nil {
		s.logger.Warn().Err(err).Msg("cache invalidation broadcast failed")
	}
	if err := s.cache.Refetch(ctx, scopes...); err != nil {
		s.logger.Warn().Err(err).Msg("cache refetch after mutation failed")
	}
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	clean := strings.TrimSpace(*value)
	return &clean
}

// hasAssignments reports whether any assignment exists across every syllabus.
func hasAssignments(ctx context.Context, cache Cache) (bool, error) {
	assignments, err := cache.Assignments(ctx, nil)
	if err != nil {
		return false, unavailable(err)
	}
	return len(assignments) > 0, nil
}
