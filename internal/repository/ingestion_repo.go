package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/syllabus-dashboard/internal/models"
)

// IngestionFilter narrows ingestion history queries.
type IngestionFilter struct {
	SessionID string
	State     string
	Page      int
	PageSize  int
}

// IngestionRepository persists the outcome of upload attempts.
type IngestionRepository interface {
	Create(ctx context.Context, record *models.IngestionRecord) error
	List(ctx context.Context, filter IngestionFilter) ([]models.IngestionRecord, int64, error)
}

type ingestionRepository struct {
	db *gorm.DB
}

// NewIngestionRepository constructs the ingestion history repository.
func NewIngestionRepository(db *gorm.DB) IngestionRepository {
	return &ingestionRepository{db: db}
}

func (r *ingestionRepository) Create(ctx context.Context, record *models.IngestionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *ingestionRepository) List(ctx context.Context, filter IngestionFilter) ([]models.IngestionRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.IngestionRecord{})

	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}

	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var records []models.IngestionRecord
	if err := query.Order("finished_at DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
