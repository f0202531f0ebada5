package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/subcontract-billing/internal/model"
)

type SignatureColumn string

const (
	SignatureColumnOrganization SignatureColumn = "org_signed_at"
	SignatureColumnContractor   SignatureColumn = "contractor_signed_at"
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) Create(ctx context.Context, contract *model.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *ContractRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.WithContext(ctx).
		Clauses(forUpdate()).
		Where("id = ?", id).
		First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *ContractRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Contract, error) {
	var contracts []model.Contract
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

// SetSignature stamps one signature column together with the status it
// implies, if the column is still empty and the contract is not declined. It
// reports whether the row changed, so two concurrent signers of the same side
// cannot both succeed.
func (r *ContractRepository) SetSignature(
	ctx context.Context,
	id uuid.UUID,
	column SignatureColumn,
	at time.Time,
	status model.ContractStatus,
) (bool, error) {
	switch column {
	case SignatureColumnOrganization, SignatureColumnContractor:
	default:
		return false, fmt.Errorf("unknown signature column %q", column)
	}
	result := r.db.WithContext(ctx).
		Model(&model.Contract{}).
		Where(fmt.Sprintf("id = ? AND %s IS NULL AND status <> ?", column), id, model.ContractStatusDeclined).
		Updates(map[string]any{
			string(column): at,
			"status":       status,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ContractRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&model.Contract{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Decline marks a not yet signed contract declined. It reports whether the
// row changed.
func (r *ContractRepository) Decline(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Contract{}).
		Where("id = ? AND status IN ?", id, []model.ContractStatus{
			model.ContractStatusPendingContractor,
			model.ContractStatusOrgSigned,
			model.ContractStatusContractorSigned,
		}).
		Updates(map[string]any{
			"status":         model.ContractStatusDeclined,
			"decline_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ContractRepository) ListIDsByProject(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.Contract{}).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ContractRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Contract{})
	return result.RowsAffected, result.Error
}
