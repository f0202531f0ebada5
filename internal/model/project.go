package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusBidding     ProjectStatus = "bidding"
	ProjectStatusNegotiation ProjectStatus = "negotiation"
	ProjectStatusInProgress  ProjectStatus = "in_progress"
	ProjectStatusCompleted   ProjectStatus = "completed"
	ProjectStatusSuspended   ProjectStatus = "suspended"
	ProjectStatusExpired     ProjectStatus = "expired"
	ProjectStatusArchived    ProjectStatus = "archived"
)

type Project struct {
	ID                  uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"organization_id"`
	CreatedBy           uuid.UUID     `gorm:"type:uuid;not null" json:"created_by"`
	Title               string        `gorm:"not null" json:"title"`
	Budget              int64         `gorm:"not null" json:"budget"`
	RequiredContractors int           `gorm:"not null;default:1" json:"required_contractors"`
	BiddingDeadline     time.Time     `gorm:"not null;index" json:"bidding_deadline"`
	StartDate           time.Time     `gorm:"not null" json:"start_date"`
	EndDate             time.Time     `gorm:"not null" json:"end_date"`
	Status              ProjectStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	ContractorID        *uuid.UUID    `gorm:"type:uuid" json:"contractor_id"`
	RequiredMemberLevel int           `gorm:"not null;default:0" json:"required_member_level"`
	WorkspaceRef        *string       `json:"workspace_ref,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// AcceptsBidsAt reports whether a bid placed at the given instant is on time.
// The deadline instant itself is still open.
func (p *Project) AcceptsBidsAt(at time.Time) bool {
	return p.Status == ProjectStatusBidding && !at.After(p.BiddingDeadline)
}

type ParticipantRole string

const (
	ParticipantRoleContractor ParticipantRole = "contractor"
	ParticipantRoleSupport    ParticipantRole = "support"
)

type ProjectParticipant struct {
	ProjectID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Role      ParticipantRole `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time
}
