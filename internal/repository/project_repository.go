package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/subcontract-billing/internal/model"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// GetForUpdate reads the project holding a row lock until the transaction ends.
func (r *ProjectRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).
		Clauses(forUpdate()).
		Where("id = ?", id).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TransitionStatus moves the project to status only if it is currently in one
// of from. It reports whether the row changed.
func (r *ProjectRepository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from []model.ProjectStatus,
	to model.ProjectStatus,
) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListBiddingPastDeadline returns open projects whose deadline is before now.
func (r *ProjectRepository) ListBiddingPastDeadline(ctx context.Context, now time.Time) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).
		Where("status = ? AND bidding_deadline < ?", model.ProjectStatusBidding, now.UTC()).
		Order("bidding_deadline ASC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// SetWorkspaceRef records the provisioned workspace once.
func (r *ProjectRepository) SetWorkspaceRef(ctx context.Context, id uuid.UUID, ref string) error {
	return r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("id = ? AND workspace_ref IS NULL", id).
		Update("workspace_ref", ref).Error
}
