package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/subcontract-billing/internal/model"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts the invoice and the lines binding its contracts. Call it
// inside a transaction; a duplicate invoice key or an already billed contract
// fails with gorm.ErrDuplicatedKey.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *model.Invoice, contractIDs []uuid.UUID) error {
	if err := r.db.WithContext(ctx).Create(invoice).Error; err != nil {
		return err
	}
	if len(contractIDs) == 0 {
		return nil
	}
	lines := make([]model.InvoiceLine, 0, len(contractIDs))
	for _, contractID := range contractIDs {
		lines = append(lines, model.InvoiceLine{
			InvoiceID:  invoice.ID,
			ContractID: contractID,
			Direction:  invoice.Direction,
		})
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindForPeriod returns the party's invoice for a billing period. A party has
// at most one per direction.
func (r *InvoiceRepository) FindForPeriod(
	ctx context.Context,
	direction model.InvoiceDirection,
	partyID uuid.UUID,
	year, month int,
) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).
		Where("direction = ? AND party_id = ? AND billing_year = ? AND billing_month = ?",
			direction, partyID, year, month).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) ListByPeriod(
	ctx context.Context,
	direction model.InvoiceDirection,
	year, month int,
) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.WithContext(ctx).
		Where("direction = ? AND billing_year = ? AND billing_month = ?", direction, year, month).
		Order("created_at ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *InvoiceRepository) CountByPeriod(
	ctx context.Context,
	direction model.InvoiceDirection,
	year, month int,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("direction = ? AND billing_year = ? AND billing_month = ?", direction, year, month).
		Count(&count).Error
	return count, err
}

// BilledContracts returns which of contractIDs already have an invoice line in
// the direction.
func (r *InvoiceRepository) BilledContracts(
	ctx context.Context,
	direction model.InvoiceDirection,
	contractIDs []uuid.UUID,
) (map[uuid.UUID]bool, error) {
	billed := make(map[uuid.UUID]bool, len(contractIDs))
	if len(contractIDs) == 0 {
		return billed, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.InvoiceLine{}).
		Where("direction = ? AND contract_id IN ?", direction, contractIDs).
		Pluck("contract_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		billed[id] = true
	}
	return billed, nil
}

// TransitionStatus changes the invoice status if it is still from. It reports
// whether the row changed.
func (r *InvoiceRepository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from model.InvoiceStatus,
	to model.InvoiceStatus,
) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *InvoiceRepository) ListSentPastDue(ctx context.Context, now time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", model.InvoiceStatusSent, now.UTC()).
		Order("due_date ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
