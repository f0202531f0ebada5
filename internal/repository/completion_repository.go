package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/subcontract-billing/internal/model"
)

// CompletedContract is a completion report joined with the contract it closes.
type CompletedContract struct {
	ReportID       uuid.UUID
	ProjectID      uuid.UUID
	ContractID     uuid.UUID
	ContractorID   uuid.UUID
	OrganizationID uuid.UUID
	Amount         int64
	SupportEnabled bool
	CompletionDate time.Time
}

type CompletionRepository struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

func (r *CompletionRepository) Create(ctx context.Context, report *model.CompletionReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *CompletionRepository) GetByContract(ctx context.Context, contractID uuid.UUID) (*model.CompletionReport, error) {
	var report model.CompletionReport
	if err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *CompletionRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CompletionReport{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

// CountUnreportedSigned counts signed contracts of the project that have no
// completion report yet.
func (r *CompletionRepository) CountUnreportedSigned(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM contracts c
		WHERE c.project_id = ?
			AND c.status = ?
			AND NOT EXISTS (
				SELECT 1 FROM completion_reports cr WHERE cr.contract_id = c.id
			)
	`, projectID, model.ContractStatusSigned).Scan(&count).Error
	return count, err
}

// ListCompletedBetween returns completed contracts whose completion date is in
// [from, to).
func (r *CompletionRepository) ListCompletedBetween(ctx context.Context, from, to time.Time) ([]CompletedContract, error) {
	var rows []CompletedContract
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			cr.id AS report_id,
			cr.project_id,
			cr.contract_id,
			c.contractor_id,
			c.organization_id,
			c.amount,
			c.support_enabled,
			cr.completion_date
		FROM completion_reports cr
		JOIN contracts c ON c.id = cr.contract_id
		WHERE cr.completion_date >= ?
			AND cr.completion_date < ?
		ORDER BY cr.completion_date ASC, cr.contract_id ASC
	`, from.UTC(), to.UTC()).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CompletionRepository) CreateEvaluation(ctx context.Context, evaluation *model.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *CompletionRepository) CountEvaluations(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Evaluation{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}
