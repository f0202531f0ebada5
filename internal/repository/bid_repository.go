package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/subcontract-billing/internal/model"
)

type BidRepository struct {
	db *gorm.DB
}

func NewBidRepository(db *gorm.DB) *BidRepository {
	return &BidRepository{db: db}
}

func (r *BidRepository) Create(ctx context.Context, bid *model.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Bid, error) {
	var bid model.Bid
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&bid).Error; err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *BidRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Bid, error) {
	var bid model.Bid
	err := r.db.WithContext(ctx).
		Clauses(forUpdate()).
		Where("id = ?", id).
		First(&bid).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *BidRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Bid, error) {
	var bids []model.Bid
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *BidRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Bid{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

func (r *BidRepository) CountByStatus(ctx context.Context, projectID uuid.UUID, status model.BidStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Bid{}).
		Where("project_id = ? AND status = ?", projectID, status).
		Count(&count).Error
	return count, err
}

// TransitionStatus changes a submitted bid. It reports whether the row changed.
func (r *BidRepository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from model.BidStatus,
	to model.BidStatus,
	reason *string,
) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Bid{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":           to,
			"rejection_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *BidRepository) ListIDs(ctx context.Context, projectID uuid.UUID, contractorID *uuid.UUID) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&model.Bid{}).Where("project_id = ?", projectID)
	if contractorID != nil {
		query = query.Where("contractor_id = ?", *contractorID)
	}
	var ids []uuid.UUID
	if err := query.Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *BidRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Bid{})
	return result.RowsAffected, result.Error
}
