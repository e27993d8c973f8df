package repository

import (
	"fmt"

	"gorm.io/gorm"

	"gopherai-tutor/internal/model"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(record *model.AnalysisRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("create analysis record failed: %w", err)
	}
	return nil
}

// ListBySubject returns the newest records for a namespace first.
func (r *AnalysisRepository) ListBySubject(subject string, limit int) ([]model.AnalysisRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []model.AnalysisRecord
	if err := r.db.Where("subject = ?", subject).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list analysis records failed: %w", err)
	}
	return records, nil
}
