package repository

import (
	"context"
	"errors"
	"fmt"

	"soundscape/model"

	"gorm.io/gorm"
)

// gormRecordingRepository implements RecordingRepository on MySQL via GORM.
type gormRecordingRepository struct {
	db *gorm.DB
}

// NewGormRecordingRepository creates a MySQL-backed catalog. The recordings
// table must have been migrated first (db.AutoMigrateModels).
func NewGormRecordingRepository(db *gorm.DB) RecordingRepository {
	return &gormRecordingRepository{db: db}
}

func (r *gormRecordingRepository) Create(ctx context.Context, rec *model.Recording) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create recording %s: %w", rec.ID, err)
	}
	return nil
}

func (r *gormRecordingRepository) GetByID(ctx context.Context, id string) (*model.Recording, error) {
	var rec model.Recording
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query recording %s: %w", id, err)
	}
	return &rec, nil
}

func (r *gormRecordingRepository) List(ctx context.Context, filter ListFilter) ([]*model.Recording, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Recording{})
	if filter.BBox != nil {
		query = query.Where("lng >= ? AND lng <= ? AND lat >= ? AND lat <= ?",
			filter.BBox.West, filter.BBox.East, filter.BBox.South, filter.BBox.North)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recordings: %w", err)
	}

	recs := make([]*model.Recording, 0)
	query = query.Order("created_at DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&recs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list recordings: %w", err)
	}
	return recs, total, nil
}

func (r *gormRecordingRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Recording{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete recording %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRecordingRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Recording{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count recordings: %w", err)
	}
	return total, nil
}
