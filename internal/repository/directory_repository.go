package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/subcontract-billing/internal/model"
)

// DirectoryRepository reads organizations, users, memberships and project
// participants.
type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) CreateOrganization(ctx context.Context, org *model.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *DirectoryRepository) CreateUser(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *DirectoryRepository) AddMembership(ctx context.Context, membership *model.Membership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

func (r *DirectoryRepository) GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *DirectoryRepository) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *DirectoryRepository) GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// ListOrgAdminIDs returns the users holding the admin membership of an organization.
func (r *DirectoryRepository) ListOrgAdminIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("organization_id = ? AND role = ?", orgID, model.MembershipRoleAdmin).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *DirectoryRepository) ListUsersByRole(ctx context.Context, role model.UserRole) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("email ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *DirectoryRepository) OrganizationNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	result := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var orgs []model.Organization
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orgs).Error; err != nil {
		return nil, err
	}
	for _, org := range orgs {
		result[org.ID] = org.Name
	}
	return result, nil
}

func (r *DirectoryRepository) UserNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	result := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, user := range users {
		result[user.ID] = user.Name
	}
	return result, nil
}

// AddParticipant inserts the participant unless it already exists. It reports
// whether a row was added.
func (r *DirectoryRepository) AddParticipant(ctx context.Context, participant *model.ProjectParticipant) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(participant)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *DirectoryRepository) ListParticipants(ctx context.Context, projectID uuid.UUID) ([]model.ProjectParticipant, error) {
	var participants []model.ProjectParticipant
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *DirectoryRepository) DeleteParticipants(ctx context.Context, projectID uuid.UUID, userIDs []uuid.UUID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id IN ?", projectID, userIDs).
		Delete(&model.ProjectParticipant{})
	return result.RowsAffected, result.Error
}
