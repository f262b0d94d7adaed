package handler_test

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/syllabus-dashboard/internal/dto"
	"github.com/noah-isme/syllabus-dashboard/internal/models"
	"github.com/noah-isme/syllabus-dashboard/internal/service"
)

func withSession(sessionID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("session_id", sessionID)
		return c.Next()
	}
}

type uploadServiceStub struct {
	mu        sync.Mutex
	files     []models.UploadFile
	sessionID string
	state     dto.UploadStateResponse
	changed   chan struct{}
	submitErr error
	resetErr  error
	attempts  dto.IngestionRecordListResponse
	page      int
	pageSize  int
}

func (s *uploadServiceStub) Submit(_ context.Context, sessionID string, files []models.UploadFile) (dto.UploadStateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.files = files
	return s.state, s.submitErr
}

func (s *uploadServiceStub) Current(sessionID string) dto.UploadStateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	return s.state
}

func (s *uploadServiceStub) Reset(string) (dto.UploadStateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.resetErr
}

func (s *uploadServiceStub) Watch(string) (dto.UploadStateResponse, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.changed == nil {
		s.changed = make(chan struct{})
	}
	return s.state, s.changed
}

// publish replaces the state and wakes watchers.
func (s *uploadServiceStub) publish(state dto.UploadStateResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if s.changed != nil {
		close(s.changed)
	}
	s.changed = make(chan struct{})
}

func (s *uploadServiceStub) Attempts(_ context.Context, _ string, page, pageSize int) (dto.IngestionRecordListResponse, error) {
	s.page = page
	s.pageSize = pageSize
	return s.attempts, nil
}

func (s *uploadServiceStub) Start(context.Context) {}

type assignmentServiceStub struct {
	query     dto.AssignmentListQuery
	list      dto.AssignmentListResponse
	days      int
	upcoming  dto.UpcomingResponse
	stats     dto.StatsResponse
	updated   dto.AssignmentResponse
	payload   dto.AssignmentUpdateRequest
	deletedID uint
	err       error
}

func (s *assignmentServiceStub) List(_ context.Context, query dto.AssignmentListQuery) (dto.AssignmentListResponse, error) {
	s.query = query
	return s.list, s.err
}

func (s *assignmentServiceStub) Upcoming(_ context.Context, days int) (dto.UpcomingResponse, error) {
	s.days = days
	return s.upcoming, s.err
}

func (s *assignmentServiceStub) Stats(context.Context) (dto.StatsResponse, error) {
	return s.stats, s.err
}

func (s *assignmentServiceStub) Update(_ context.Context, _ uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	s.payload = payload
	return s.updated, s.err
}

func (s *assignmentServiceStub) Delete(_ context.Context, id uint) error {
	s.deletedID = id
	return s.err
}

type syllabusServiceStub struct {
	items     []dto.SyllabusResponse
	deletedID uint
	err       error
}

func (s *syllabusServiceStub) List(context.Context) ([]dto.SyllabusResponse, error) {
	return s.items, s.err
}

func (s *syllabusServiceStub) Delete(_ context.Context, id uint) error {
	s.deletedID = id
	return s.err
}

type dashboardServiceStub struct {
	sessionID string
	query     dto.AssignmentListQuery
	response  dto.DashboardResponse
	err       error
}

func (s *dashboardServiceStub) Get(_ context.Context, sessionID string, query dto.AssignmentListQuery) (dto.DashboardResponse, error) {
	s.sessionID = sessionID
	s.query = query
	return s.response, s.err
}

var (
	_ service.UploadService     = (*uploadServiceStub)(nil)
	_ service.AssignmentService = (*assignmentServiceStub)(nil)
	_ service.SyllabusService   = (*syllabusServiceStub)(nil)
	_ service.DashboardService  = (*dashboardServiceStub)(nil)
)
