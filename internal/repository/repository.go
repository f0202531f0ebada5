package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repositories bundles the entity repositories over one gorm handle. Inside
// Transaction every repository shares the transaction.
type Repositories struct {
	db          *gorm.DB
	Directory   *DirectoryRepository
	Projects    *ProjectRepository
	Bids        *BidRepository
	Contracts   *ContractRepository
	Completions *CompletionRepository
	Invoices    *InvoiceRepository
	SideEffects *SideEffectRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Directory:   NewDirectoryRepository(db),
		Projects:    NewProjectRepository(db),
		Bids:        NewBidRepository(db),
		Contracts:   NewContractRepository(db),
		Completions: NewCompletionRepository(db),
		Invoices:    NewInvoiceRepository(db),
		SideEffects: NewSideEffectRepository(db),
	}
}

// Transaction runs fn atomically. Returning an error rolls everything back.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func forUpdate() clause.Expression {
	return clause.Locking{Strength: "UPDATE"}
}
