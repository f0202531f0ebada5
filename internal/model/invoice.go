package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InvoiceDirection string

const (
	// InvoiceDirectionContractor is contractor self-billing: the contractor is the payee.
	InvoiceDirectionContractor InvoiceDirection = "contractor"
	// InvoiceDirectionOperator is the platform billing the ordering organization.
	InvoiceDirectionOperator InvoiceDirection = "operator"
)

type InvoiceStatus string

const (
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// InvoiceSourceMonthly marks invoices produced by the monthly aggregation run.
// Single-contract invoices use the contract id as source key.
const InvoiceSourceMonthly = "monthly"

// InvoiceReference is the audit trail of one contract that contributed to an invoice.
type InvoiceReference struct {
	ProjectID      uuid.UUID `json:"project_id"`
	ContractID     uuid.UUID `json:"contract_id"`
	ContractorID   uuid.UUID `json:"contractor_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Amount         int64     `json:"amount"`
	SupportEnabled bool      `json:"support_enabled"`
	CompletionDate time.Time `json:"completion_date"`
}

type Invoice struct {
	ID             uuid.UUID                            `gorm:"type:uuid;primaryKey" json:"id"`
	Direction      InvoiceDirection                     `gorm:"type:varchar(16);not null;uniqueIndex:uq_invoices_party_period" json:"direction"`
	PartyID        uuid.UUID                            `gorm:"type:uuid;not null;uniqueIndex:uq_invoices_party_period" json:"party_id"`
	BillingYear    int                                  `gorm:"not null;uniqueIndex:uq_invoices_party_period" json:"billing_year"`
	BillingMonth   int                                  `gorm:"not null;uniqueIndex:uq_invoices_party_period" json:"billing_month"`
	SourceKey      string                               `gorm:"type:varchar(64);not null" json:"source_key"`
	ContractorID   *uuid.UUID                           `gorm:"type:uuid;index" json:"contractor_id,omitempty"`
	OrganizationID *uuid.UUID                           `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	ProjectID      *uuid.UUID                           `gorm:"type:uuid" json:"project_id,omitempty"`
	ContractID     *uuid.UUID                           `gorm:"type:uuid" json:"contract_id,omitempty"`
	SupportPercent string                               `gorm:"type:varchar(16);not null" json:"support_percent"`
	BaseAmount     int64                                `gorm:"not null" json:"base_amount"`
	FeeAmount      int64                                `gorm:"not null" json:"fee_amount"`
	SystemFee      int64                                `gorm:"not null" json:"system_fee"`
	TotalAmount    int64                                `gorm:"not null" json:"total_amount"`
	Status         InvoiceStatus                        `gorm:"type:varchar(16);not null;index" json:"status"`
	IssueDate      time.Time                            `gorm:"not null" json:"issue_date"`
	DueDate        time.Time                            `gorm:"not null" json:"due_date"`
	References     datatypes.JSONSlice[InvoiceReference] `gorm:"column:contract_refs" json:"references"`
	CreatedAt      time.Time                            `json:"created_at"`
	UpdatedAt      time.Time                            `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Payable is what the payee receives after withholding on contractor invoices.
func (i *Invoice) Payable() int64 {
	if i.Direction == InvoiceDirectionContractor {
		return i.TotalAmount - i.SystemFee
	}
	return i.TotalAmount
}

// InvoiceLine binds a contract to the invoice that billed it. A contract is
// billed at most once per direction.
type InvoiceLine struct {
	InvoiceID  uuid.UUID        `gorm:"type:uuid;not null;index"`
	ContractID uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Direction  InvoiceDirection `gorm:"type:varchar(16);primaryKey"`
	CreatedAt  time.Time
}

// InvoiceDocument is everything the PDF renderer needs for one invoice.
type InvoiceDocument struct {
	Invoice   Invoice
	PartyName string
	Projects  map[uuid.UUID]string
}

// InvoiceReport is one billing period rendered into the export workbook.
type InvoiceReport struct {
	Direction   InvoiceDirection
	Year        int
	Month       int
	PeriodStart time.Time
	PeriodEnd   time.Time
	Invoices    []Invoice
	PartyNames  map[uuid.UUID]string
}
