package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/syllabus-dashboard/internal/dto"
	"github.com/noah-isme/syllabus-dashboard/internal/ingestion"
	"github.com/noah-isme/syllabus-dashboard/internal/models"
	"github.com/noah-isme/syllabus-dashboard/internal/repository"
)

// RecordStateRejected marks attempts refused by file validation.
const RecordStateRejected = "rejected"

// UploadConfig tunes the per-session ingestion controllers.
type UploadConfig struct {
	PollInterval      time.Duration
	ProcessingTimeout time.Duration
	MaxUploadBytes    int64
	SessionIdleTTL    time.Duration
	ChannelBase       string
}

// UploadService bridges dashboard sessions to their ingestion controllers.
type UploadService interface {
	Submit(ctx context.Context, sessionID string, files []models.UploadFile) (dto.UploadStateResponse, error)
	Current(sessionID string) dto.UploadStateResponse
	Reset(sessionID string) (dto.UploadStateResponse, error)
	Watch(sessionID string) (dto.UploadStateResponse, <-chan struct{})
	Attempts(ctx context.Context, sessionID string, page, pageSize int) (dto.IngestionRecordListResponse, error)
	Start(ctx context.Context)
}

type uploadService struct {
	registry    *ingestion.Registry
	repo        repository.IngestionRepository
	nats        *nats.Conn
	natsSubject string
	cfg         UploadConfig
	logger      zerolog.Logger
	now         func() time.Time
	nodeID      string
}

type ingestionEvent struct {
	Source          string    `json:"source"`
	SessionID       string    `json:"session_id"`
	State           string    `json:"state"`
	SyllabusID      *uint     `json:"syllabus_id,omitempty"`
	AssignmentCount *int      `json:"assignment_count,omitempty"`
	CourseName      string    `json:"course_name,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	SentAt          time.Time `json:"sent_at"`
}

// NewUploadService constructs the upload service. natsConn may be nil.
func NewUploadService(uploader ingestion.Uploader, refresher ingestion.Refresher, repo repository.IngestionRepository, natsConn *nats.Conn, cfg UploadConfig, logger zerolog.Logger) UploadService {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = ingestion.DefaultMaxUploadBytes
	}

	subject := ""
	if cfg.ChannelBase != "" {
		subject = strings.ReplaceAll(cfg.ChannelBase, ":", ".") + ".ingestion"
	}

	s := &uploadService{
		repo:        repo,
		nats:        natsConn,
		natsSubject: subject,
		cfg:         cfg,
		logger:      logger.With().Str("component", "upload_service").Logger(),
		now:         time.Now,
		nodeID:      uuid.NewString(),
	}

	s.registry = ingestion.NewRegistry(func(sessionID string) *ingestion.Controller {
		return ingestion.NewController(uploader, refresher, ingestion.Config{
			PollInterval:      cfg.PollInterval,
			ProcessingTimeout: cfg.ProcessingTimeout,
			MaxUploadBytes:    cfg.MaxUploadBytes,
			Observer:          s.observer(sessionID),
		}, logger.With().Str("session_id", sessionID).Logger())
	}, logger)

	return s
}

func (s *uploadService) Start(ctx context.Context) {
	go s.registry.Run(ctx, s.cfg.SessionIdleTTL, s.cfg.SessionIdleTTL/4)
}

func (s *uploadService) Submit(ctx context.Context, sessionID string, files []models.UploadFile) (dto.UploadStateResponse, error) {
	snapshot, err := s.registry.Get(sessionID).Submit(ctx, files)

	var validationErr *ingestion.ValidationError
	if errors.As(err, &validationErr) {
		s.recordRejection(ctx, sessionID, files, validationErr)
	}

	return dto.NewUploadStateResponse(snapshot, s.cfg.MaxUploadBytes), err
}

func (s *uploadService) Current(sessionID string) dto.UploadStateResponse {
	return dto.NewUploadStateResponse(s.registry.Get(sessionID).Snapshot(), s.cfg.MaxUploadBytes)
}

func (s *uploadService) Reset(sessionID string) (dto.UploadStateResponse, error) {
	snapshot, err := s.registry.Get(sessionID).Reset()
	return dto.NewUploadStateResponse(snapshot, s.cfg.MaxUploadBytes), err
}

func (s *uploadService) Watch(sessionID string) (dto.UploadStateResponse, <-chan struct{}) {
	snapshot, changed := s.registry.Get(sessionID).Watch()
	return dto.NewUploadStateResponse(snapshot, s.cfg.MaxUploadBytes), changed
}

func (s *uploadService) Attempts(ctx context.Context, sessionID string, page, pageSize int) (dto.IngestionRecordListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	records, total, err := s.repo.List(ctx, repository.IngestionFilter{SessionID: sessionID, Page: page, PageSize: pageSize})
	if err != nil {
		return dto.IngestionRecordListResponse{}, err
	}

	items := make([]dto.IngestionRecordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewIngestionRecordResponse(record))
	}

	return dto.IngestionRecordListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

// observer persists and announces every attempt that reaches a terminal state.
func (s *uploadService) observer(sessionID string) func(ingestion.Snapshot) {
	return func(snapshot ingestion.Snapshot) {
		if !snapshot.State.Terminal() {
			return
		}

		s.logger.Info().
			Str("session_id", sessionID).
			Str("state", string(snapshot.State)).
			Str("file_name", snapshot.FileName).
			Msg("upload attempt finished")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		record := s.recordFromSnapshot(sessionID, snapshot)
		if err := s.repo.Create(ctx, &record); err != nil {
			s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist upload attempt")
		}

		s.publish(ingestionEvent{
			Source:          s.nodeID,
			SessionID:       sessionID,
			State:           string(snapshot.State),
			SyllabusID:      snapshot.SyllabusID,
			AssignmentCount: snapshot.AssignmentCount,
			CourseName:      snapshot.CourseName,
			Reason:          snapshot.Error,
			SentAt:          s.now().UTC(),
		})
	}
}

func (s *uploadService) recordFromSnapshot(sessionID string, snapshot ingestion.Snapshot) models.IngestionRecord {
	record := models.IngestionRecord{
		SessionID:       sessionID,
		SyllabusID:      snapshot.SyllabusID,
		FileName:        snapshot.FileName,
		SizeBytes:       snapshot.SizeBytes,
		State:           string(snapshot.State),
		Reason:          snapshot.Error,
		AssignmentCount: snapshot.AssignmentCount,
		CourseName:      snapshot.CourseName,
		Polls:           snapshot.Polls,
		FinishedAt:      snapshot.UpdatedAt,
		StartedAt:       snapshot.UpdatedAt,
	}
	if snapshot.StartedAt != nil {
		record.StartedAt = *snapshot.StartedAt
	}
	if snapshot.LastStatus != nil {
		if payload, err := json.Marshal(snapshot.LastStatus); err == nil {
			record.LastStatus = datatypes.JSON(payload)
		}
	}
	return record
}

func (s *uploadService) recordRejection(ctx context.Context, sessionID string, files []models.UploadFile, validationErr *ingestion.ValidationError) {
	now := s.now().UTC()
	record := models.IngestionRecord{
		SessionID:  sessionID,
		State:      RecordStateRejected,
		Reason:     validationErr.Message,
		StartedAt:  now,
		FinishedAt: now,
	}
	if len(files) > 0 {
		record.FileName = files[0].Name
		record.SizeBytes = files[0].EffectiveSize()
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist rejected upload")
	}
}

func (s *uploadService) publish(event ingestionEvent) {
	if s.nats == nil || s.natsSubject == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.nats.Publish(s.natsSubject, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish ingestion event")
	}
}
