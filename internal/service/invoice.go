package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/subcontract-billing/internal/billing"
	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

func validDirection(direction model.InvoiceDirection) error {
	switch direction {
	case model.InvoiceDirectionContractor, model.InvoiceDirectionOperator:
		return nil
	default:
		return fmt.Errorf("%w: direction must be contractor or operator", ErrValidation)
	}
}

func partyOf(direction model.InvoiceDirection, organizationID, contractorID uuid.UUID) uuid.UUID {
	if direction == model.InvoiceDirectionOperator {
		return organizationID
	}
	return contractorID
}

// buildInvoice derives every amount from refs at the given support percent.
func buildInvoice(
	direction model.InvoiceDirection,
	partyID uuid.UUID,
	period billing.Period,
	sourceKey string,
	refs []model.InvoiceReference,
	percent decimal.Decimal,
	issueDate time.Time,
	dueDays int,
) *model.Invoice {
	totals := billing.InvoiceTotals(direction, refs, percent)
	invoice := &model.Invoice{
		Direction:      direction,
		PartyID:        partyID,
		BillingYear:    period.Year,
		BillingMonth:   int(period.Month),
		SourceKey:      sourceKey,
		SupportPercent: percent.String(),
		BaseAmount:     totals.Base,
		FeeAmount:      totals.Fee,
		SystemFee:      totals.SystemFee,
		TotalAmount:    totals.Total,
		Status:         model.InvoiceStatusIssued,
		IssueDate:      billing.DateOnly(issueDate),
		DueDate:        billing.DueDate(issueDate, dueDays),
		References:     refs,
	}
	party := partyID
	if direction == model.InvoiceDirectionOperator {
		invoice.OrganizationID = &party
	} else {
		invoice.ContractorID = &party
	}
	return invoice
}

func (s *Service) invoiceRecipients(ctx context.Context, repos *repository.Repositories, invoice *model.Invoice) ([]uuid.UUID, error) {
	if invoice.Direction == model.InvoiceDirectionContractor {
		return []uuid.UUID{invoice.PartyID}, nil
	}
	return repos.Directory.ListOrgAdminIDs(ctx, invoice.PartyID)
}

func notifyInvoice(batch *effects.Batch, recipients []uuid.UUID, invoice *model.Invoice, kind string) {
	project := uuid.Nil
	if invoice.ProjectID != nil {
		project = *invoice.ProjectID
	}
	batch.NotifyAll(project, recipients, kind, map[string]any{
		"invoice_id":    invoice.ID.String(),
		"billing_year":  invoice.BillingYear,
		"billing_month": invoice.BillingMonth,
		"total_amount":  invoice.TotalAmount,
		"status":        string(invoice.Status),
	})
}

func (s *Service) authorizeIssue(ctx context.Context, actor model.Principal, contract *model.Contract, direction model.InvoiceDirection) error {
	if s.auth.Admin(actor).Allowed {
		return nil
	}
	if direction == model.InvoiceDirectionContractor {
		return s.auth.Contractor(actor, contract.ContractorID).Err()
	}
	return s.auth.Admin(actor).Err()
}

// IssueContractInvoice bills one completed and evaluated contract on its own.
// The invoice line index guarantees a contract is billed once per direction,
// and the invoice takes the party's single slot for the completion period.
func (s *Service) IssueContractInvoice(
	ctx context.Context,
	actor model.Principal,
	contractID uuid.UUID,
	direction model.InvoiceDirection,
) (*Outcome[*model.Invoice], error) {
	if err := validDirection(direction); err != nil {
		return nil, err
	}
	contract, err := s.loadContract(ctx, s.repos, contractID, false)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeIssue(ctx, actor, contract, direction); err != nil {
		return nil, err
	}

	rates := s.rates()
	now := s.clock()
	var invoice *model.Invoice
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		current, err := s.loadContract(ctx, tx, contractID, true)
		if err != nil {
			return err
		}
		report, err := tx.Completions.GetByContract(ctx, current.ID)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: contract has no completion report", ErrInvalidState)
			}
			return err
		}
		evaluations, err := tx.Completions.CountEvaluations(ctx, current.ProjectID)
		if err != nil {
			return err
		}
		if evaluations == 0 {
			return fmt.Errorf("%w: project has no evaluation", ErrInvalidState)
		}
		billed, err := tx.Invoices.BilledContracts(ctx, direction, []uuid.UUID{current.ID})
		if err != nil {
			return err
		}
		if billed[current.ID] {
			return fmt.Errorf("%w: contract is already invoiced", ErrConflict)
		}

		partyID := partyOf(direction, current.OrganizationID, current.ContractorID)
		period := billing.PeriodFor(report.CompletionDate)
		_, err = tx.Invoices.FindForPeriod(ctx, direction, partyID, period.Year, int(period.Month))
		switch {
		case err == nil:
			return fmt.Errorf("%w (%s)", ErrPeriodBilled, period)
		case !repository.IsNotFound(err):
			return err
		}

		refs := []model.InvoiceReference{{
			ProjectID:      current.ProjectID,
			ContractID:     current.ID,
			ContractorID:   current.ContractorID,
			OrganizationID: current.OrganizationID,
			Amount:         current.Amount,
			SupportEnabled: current.SupportEnabled,
			CompletionDate: report.CompletionDate,
		}}
		invoice = buildInvoice(direction,
			partyID,
			period,
			current.ID.String(),
			refs,
			rates.SupportPercent,
			now,
			s.cfg.Billing.InvoiceDueDays)
		projectID, id := current.ProjectID, current.ID
		invoice.ProjectID = &projectID
		invoice.ContractID = &id

		if err := tx.Invoices.Create(ctx, invoice, []uuid.UUID{current.ID}); err != nil {
			return translate(err, "invoice")
		}
		recipients, err := s.invoiceRecipients(ctx, tx, invoice)
		if err != nil {
			return err
		}
		notifyInvoice(batch, recipients, invoice, NotifyInvoiceIssued)
		return nil
	})
	if err != nil {
		return nil, translate(err, "invoice")
	}
	return &Outcome[*model.Invoice]{Value: invoice, Warnings: warnings}, nil
}

var invoiceTransitions = map[model.InvoiceStatus][]model.InvoiceStatus{
	model.InvoiceStatusIssued:  {model.InvoiceStatusSent, model.InvoiceStatusCancelled},
	model.InvoiceStatusSent:    {model.InvoiceStatusPaid, model.InvoiceStatusOverdue, model.InvoiceStatusCancelled},
	model.InvoiceStatusOverdue: {model.InvoiceStatusPaid, model.InvoiceStatusCancelled},
}

// CanTransition reports whether an invoice may move from one status to another.
func CanTransition(from, to model.InvoiceStatus) bool {
	for _, next := range invoiceTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateInvoiceStatus moves an invoice along its lifecycle. An invoice is
// reconciled before it is sent.
func (s *Service) UpdateInvoiceStatus(
	ctx context.Context,
	actor model.Principal,
	invoiceID uuid.UUID,
	to model.InvoiceStatus,
) (*Outcome[*model.Invoice], error) {
	if err := s.auth.Admin(actor).Err(); err != nil {
		return nil, err
	}
	return s.transitionInvoice(ctx, invoiceID, to)
}

func (s *Service) transitionInvoice(ctx context.Context, invoiceID uuid.UUID, to model.InvoiceStatus) (*Outcome[*model.Invoice], error) {
	var updated *model.Invoice
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		invoice, err := tx.Invoices.GetByID(ctx, invoiceID)
		if err != nil {
			return translate(err, "invoice")
		}
		if !CanTransition(invoice.Status, to) {
			return fmt.Errorf("%w: invoice cannot move from %s to %s", ErrInvalidState, invoice.Status, to)
		}
		if to == model.InvoiceStatusSent {
			if err := billing.Reconcile(*invoice); err != nil {
				return fmt.Errorf("%w: %w", ErrIntegrity, err)
			}
		}
		changed, err := tx.Invoices.TransitionStatus(ctx, invoice.ID, invoice.Status, to)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%w: invoice status changed concurrently", ErrConflict)
		}
		invoice.Status = to

		if to == model.InvoiceStatusSent || to == model.InvoiceStatusOverdue {
			recipients, err := s.invoiceRecipients(ctx, tx, invoice)
			if err != nil {
				return err
			}
			notifyInvoice(batch, recipients, invoice, NotifyInvoiceStatusChange)
		}
		updated = invoice
		return nil
	})
	if err != nil {
		return nil, translate(err, "invoice")
	}
	return &Outcome[*model.Invoice]{Value: updated, Warnings: warnings}, nil
}

type StatusChange struct {
	InvoiceID uuid.UUID           `json:"invoice_id"`
	From      model.InvoiceStatus `json:"from"`
	To        model.InvoiceStatus `json:"to"`
	Error     string              `json:"error,omitempty"`
}

// OverdueSweep marks sent invoices past their due date as overdue.
func (s *Service) OverdueSweep(ctx context.Context) ([]StatusChange, error) {
	invoices, err := s.repos.Invoices.ListSentPastDue(ctx, billing.DateOnly(s.clock()))
	if err != nil {
		return nil, err
	}
	changes := make([]StatusChange, 0, len(invoices))
	for _, invoice := range invoices {
		change := StatusChange{InvoiceID: invoice.ID, From: invoice.Status, To: model.InvoiceStatusOverdue}
		if _, err := s.transitionInvoice(ctx, invoice.ID, model.InvoiceStatusOverdue); err != nil {
			s.log.Warn().Err(err).Str("invoice_id", invoice.ID.String()).Msg("overdue transition failed")
			change.Error = err.Error()
		}
		changes = append(changes, change)
	}
	return changes, nil
}

type Verification struct {
	InvoiceID  uuid.UUID          `json:"invoice_id"`
	Reconciled bool               `json:"reconciled"`
	Mismatches []billing.Mismatch `json:"mismatches,omitempty"`
}

// VerifyInvoice recomputes an invoice from its references. A mismatch is
// returned as an integrity error together with the verification details.
func (s *Service) VerifyInvoice(ctx context.Context, actor model.Principal, invoiceID uuid.UUID) (*Verification, error) {
	invoice, err := s.readableInvoice(ctx, actor, invoiceID)
	if err != nil {
		return nil, err
	}
	verification := &Verification{InvoiceID: invoice.ID, Reconciled: true}
	if err := billing.Reconcile(*invoice); err != nil {
		var integrity *billing.IntegrityError
		if errors.As(err, &integrity) {
			verification.Reconciled = false
			verification.Mismatches = integrity.Mismatches
		}
		return verification, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	return verification, nil
}

func (s *Service) readableInvoice(ctx context.Context, actor model.Principal, invoiceID uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.repos.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, translate(err, "invoice")
	}
	if s.auth.Admin(actor).Allowed {
		return invoice, nil
	}
	if invoice.Direction == model.InvoiceDirectionContractor {
		if err := s.auth.Contractor(actor, invoice.PartyID).Err(); err != nil {
			return nil, err
		}
		return invoice, nil
	}
	if err := s.auth.requireOrgMember(ctx, actor, invoice.PartyID); err != nil {
		return nil, err
	}
	return invoice, nil
}
