package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/subcontract-billing/internal/model"
)

type SideEffectRepository struct {
	db *gorm.DB
}

func NewSideEffectRepository(db *gorm.DB) *SideEffectRepository {
	return &SideEffectRepository{db: db}
}

func (r *SideEffectRepository) Create(ctx context.Context, effects ...*model.SideEffect) error {
	if len(effects) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(effects).Error
}

func (r *SideEffectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SideEffect, error) {
	var effect model.SideEffect
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&effect).Error; err != nil {
		return nil, err
	}
	return &effect, nil
}

// Claim moves a pending or failed task to processing, or takes over a
// processing task whose lease started before staleBefore. Only one caller wins.
func (r *SideEffectRepository) Claim(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.SideEffect{}).
		Where("id = ?", id).
		Where("(status IN ? OR (status = ? AND updated_at <= ?))",
			[]model.SideEffectStatus{model.SideEffectPending, model.SideEffectFailed},
			model.SideEffectProcessing, staleBefore.UTC()).
		Updates(map[string]any{"status": model.SideEffectProcessing, "updated_at": now.UTC()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListDue returns pending tasks, failed tasks whose retry time has come and
// processing tasks whose lease expired before staleBefore.
func (r *SideEffectRepository) ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]model.SideEffect, error) {
	var effects []model.SideEffect
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_attempt_at <= ?) OR (status = ? AND updated_at <= ?)",
			model.SideEffectPending,
			model.SideEffectFailed, now.UTC(),
			model.SideEffectProcessing, staleBefore.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&effects).Error
	if err != nil {
		return nil, err
	}
	return effects, nil
}

func (r *SideEffectRepository) Save(ctx context.Context, effect *model.SideEffect) error {
	return r.db.WithContext(ctx).Save(effect).Error
}

func (r *SideEffectRepository) CountByStatus(ctx context.Context) (map[model.SideEffectStatus]int64, error) {
	var rows []struct {
		Status model.SideEffectStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.SideEffect{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[model.SideEffectStatus]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
