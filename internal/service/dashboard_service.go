package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/syllabus-dashboard/internal/dto"
)

// EmptyDashboardPrompt is shown until the first assignment exists.
const EmptyDashboardPrompt = "Upload a syllabus to see your assignments, due dates and workload."

// DashboardService composes every dashboard panel for a session.
type DashboardService interface {
	Get(ctx context.Context, sessionID string, query dto.AssignmentListQuery) (dto.DashboardResponse, error)
}

type dashboardService struct {
	cache       Cache
	uploads     UploadService
	assignments AssignmentService
	syllabi     SyllabusService
	exports     ExportService
	logger      zerolog.Logger
}

// NewDashboardService builds the dashboard aggregator.
func NewDashboardService(cache Cache, uploads UploadService, assignments AssignmentService, syllabi SyllabusService, exports ExportService, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		cache:       cache,
		uploads:     uploads,
		assignments: assignments,
		syllabi:     syllabi,
		exports:     exports,
		logger:      logger.With().Str("component", "dashboard_service").Logger(),
	}
}

// Get always includes the upload panel. Statistics, the assignment list, the history and the
// export links are only included once at least one assignment exists anywhere.
func (s *dashboardService) Get(ctx context.Context, sessionID string, query dto.AssignmentListQuery) (dto.DashboardResponse, error) {
	response := dto.DashboardResponse{Upload: s.uploads.Current(sessionID)}

	populated, err := hasAssignments(ctx, s.cache)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	if !populated {
		response.EmptyPrompt = EmptyDashboardPrompt
		return response, nil
	}
	response.HasAssignments = true

	stats, err := s.assignments.Stats(ctx)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	response.Stats = &stats

	list, err := s.assignments.List(ctx, query)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	response.Assignments = &list

	history, err := s.syllabi.List(ctx)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	response.Syllabi = history
	response.Exports = s.exports.Links(query.SyllabusID)

	s.logger.Debug().Str("session_id", sessionID).Int("matched", list.Matched).Msg("dashboard composed")
	return response, nil
}
