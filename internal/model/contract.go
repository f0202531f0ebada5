package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContractStatus string

const (
	ContractStatusPendingContractor ContractStatus = "pending_contractor"
	ContractStatusOrgSigned         ContractStatus = "org_signed"
	ContractStatusContractorSigned  ContractStatus = "contractor_signed"
	ContractStatusSigned            ContractStatus = "signed"
	ContractStatusDeclined          ContractStatus = "declined"
)

type Contract struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_contracts_project_contractor_bid" json:"project_id"`
	ContractorID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_contracts_project_contractor_bid" json:"contractor_id"`
	BidID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_contracts_project_contractor_bid" json:"bid_id"`
	OrganizationID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"organization_id"`
	Amount             int64          `gorm:"not null" json:"amount"`
	ProposedAmount     *int64         `json:"proposed_amount,omitempty"`
	StartDate          time.Time      `gorm:"not null" json:"start_date"`
	EndDate            time.Time      `gorm:"not null" json:"end_date"`
	Status             ContractStatus `gorm:"type:varchar(24);not null;index" json:"status"`
	OrgSignedAt        *time.Time     `json:"org_signed_at,omitempty"`
	ContractorSignedAt *time.Time     `json:"contractor_signed_at,omitempty"`
	DeclineReason      *string        `json:"decline_reason,omitempty"`
	SupportEnabled     bool           `gorm:"not null;default:false" json:"support_enabled"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (c *Contract) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsPreSigned reports whether the contract can still be declined.
func (c *Contract) IsPreSigned() bool {
	switch c.Status {
	case ContractStatusPendingContractor, ContractStatusOrgSigned, ContractStatusContractorSigned:
		return true
	default:
		return false
	}
}

// SignatureStatus derives the status from the two signature timestamps.
func SignatureStatus(orgSignedAt, contractorSignedAt *time.Time) ContractStatus {
	switch {
	case orgSignedAt != nil && contractorSignedAt != nil:
		return ContractStatusSigned
	case orgSignedAt != nil:
		return ContractStatusOrgSigned
	case contractorSignedAt != nil:
		return ContractStatusContractorSigned
	default:
		return ContractStatusPendingContractor
	}
}
