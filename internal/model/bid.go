package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BidStatus string

const (
	BidStatusSubmitted BidStatus = "submitted"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
)

type Bid struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_bids_project_contractor" json:"project_id"`
	ContractorID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_bids_project_contractor" json:"contractor_id"`
	Amount          int64     `gorm:"not null" json:"amount"`
	Status          BidStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	RejectionReason *string   `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (b *Bid) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
