package service

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/syllabus-dashboard/internal/models"
	"github.com/noah-isme/syllabus-dashboard/internal/store"
)

type cacheStub struct {
	mu          sync.Mutex
	assignments []models.Assignment
	syllabi     []models.Syllabus
	stats       models.AssignmentStats
	readErr     error
	invalidated [][]store.Scope
	refetched   [][]store.Scope
}

func (c *cacheStub) Assignments(ctx context.Context, syllabusID *uint) ([]models.Assignment, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	if syllabusID == nil {
		return append([]models.Assignment(nil), c.assignments...), nil
	}
	var scoped []models.Assignment
	for _, assignment := range c.assignments {
		if assignment.SyllabusID == *syllabusID {
			scoped = append(scoped, assignment)
		}
	}
	return scoped, nil
}

func (c *cacheStub) Syllabi(ctx context.Context) ([]models.Syllabus, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.syllabi, nil
}

func (c *cacheStub) Stats(ctx context.Context) (models.AssignmentStats, error) {
	if c.readErr != nil {
		return models.AssignmentStats{}, c.readErr
	}
	return c.stats, nil
}

func (c *cacheStub) Invalidate(ctx context.Context, scopes ...store.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, scopes)
	return nil
}

func (c *cacheStub) Refetch(ctx context.Context, scopes ...store.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refetched = append(c.refetched, scopes)
	return nil
}

func (c *cacheStub) refreshCount() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidated), len(c.refetched)
}

type mutatorStub struct {
	patches   map[uint]models.AssignmentPatch
	updated   models.Assignment
	updateErr error
	deleteErr error
	deleted   []uint
}

func (m *mutatorStub) UpdateAssignment(ctx context.Context, id uint, patch models.AssignmentPatch) (models.Assignment, error) {
	if m.updateErr != nil {
		return models.Assignment{}, m.updateErr
	}
	if m.patches == nil {
		m.patches = map[uint]models.AssignmentPatch{}
	}
	m.patches[id] = patch
	return m.updated, nil
}

func (m *mutatorStub) DeleteAssignment(ctx context.Context, id uint) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mutatorStub) DeleteSyllabus(ctx context.Context, id uint) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func date(year int, month int, day int) *civil.Date {
	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	return &d
}

func ptr[T any](value T) *T {
	return &value
}
