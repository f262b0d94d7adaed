package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/syllabus-dashboard/internal/dto"
	"github.com/noah-isme/syllabus-dashboard/internal/store"
	"github.com/noah-isme/syllabus-dashboard/pkg/syllabusapi"
)

// SyllabusService exposes the upload history.
type SyllabusService interface {
	List(ctx context.Context) ([]dto.SyllabusResponse, error)
	Delete(ctx context.Context, id uint) error
}

type syllabusService struct {
	cache   Cache
	mutator Mutator
	logger  zerolog.Logger
}

// NewSyllabusService constructs the history service.
func NewSyllabusService(cache Cache, mutator Mutator, logger zerolog.Logger) SyllabusService {
	return &syllabusService{
		cache:   cache,
		mutator: mutator,
		logger:  logger.With().Str("component", "syllabus_service").Logger(),
	}
}

func (s *syllabusService) List(ctx context.Context) ([]dto.SyllabusResponse, error) {
	syllabi, err := s.cache.Syllabi(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return dto.NewSyllabusResponseSlice(syllabi), nil
}

// Delete removes a syllabus. The service drops its assignments too, so every scope is reloaded.
func (s *syllabusService) Delete(ctx context.Context, id uint) error {
	if err := s.mutator.DeleteSyllabus(ctx, id); err != nil {
		if errors.Is(err, syllabusapi.ErrNotFound) {
			err = ErrSyllabusNotFound
		}
		s.logger.Warn().Err(err).Uint("syllabus_id", id).Msg("syllabus delete failed")
		return &MutationError{Operation: "delete syllabus", ID: id, Err: err}
	}

	if err := s.cache.Invalidate(ctx, store.AllScopes...); err != nil {
		s.logger.Warn().Err(err).Msg("cache invalidation broadcast failed")
	}
	if err := s.cache.Refetch(ctx, store.AllScopes...); err != nil {
		s.logger.Warn().Err(err).Msg("cache refetch after syllabus delete failed")
	}

	s.logger.Info().Uint("syllabus_id", id).Msg("syllabus deleted")
	return nil
}
