package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/subcontract-billing/internal/billing"
	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

type GroupOutcome string

const (
	GroupCreated       GroupOutcome = "created"
	GroupAlreadyExists GroupOutcome = "already_exists"
	GroupSkipped       GroupOutcome = "skipped"
	GroupErrored       GroupOutcome = "errored"
)

type GroupResult struct {
	PartyID   uuid.UUID         `json:"party_id"`
	Outcome   GroupOutcome      `json:"outcome"`
	InvoiceID *uuid.UUID        `json:"invoice_id,omitempty"`
	Contracts int               `json:"contracts"`
	Total     int64             `json:"total_amount"`
	Error     string            `json:"error,omitempty"`
	ErrorKind Kind              `json:"error_kind,omitempty"`
	Warnings  []effects.Warning `json:"warnings,omitempty"`
}

type AggregationResult struct {
	Year      int                    `json:"year"`
	Month     int                    `json:"month"`
	Direction model.InvoiceDirection `json:"direction"`
	Groups    []GroupResult          `json:"groups"`
}

// Created counts the invoices this run persisted.
func (r *AggregationResult) Created() int {
	n := 0
	for _, g := range r.Groups {
		if g.Outcome == GroupCreated {
			n++
		}
	}
	return n
}

type partyGroup struct {
	partyID uuid.UUID
	rows    []repository.CompletedContract
}

func groupByParty(direction model.InvoiceDirection, rows []repository.CompletedContract) []partyGroup {
	index := make(map[uuid.UUID]int)
	var groups []partyGroup
	for _, row := range rows {
		party := partyOf(direction, row.OrganizationID, row.ContractorID)
		i, ok := index[party]
		if !ok {
			i = len(groups)
			index[party] = i
			groups = append(groups, partyGroup{partyID: party})
		}
		groups[i].rows = append(groups[i].rows, row)
	}
	sort.Slice(groups, func(a, b int) bool {
		return groups[a].partyID.String() < groups[b].partyID.String()
	})
	return groups
}

// GenerateMonthly issues one invoice per counterparty for the contracts
// completed in a billing period. Re-running it never creates duplicates, and
// one failing counterparty does not stop the others.
func (s *Service) GenerateMonthly(ctx context.Context, year, month int, direction model.InvoiceDirection) (*AggregationResult, error) {
	if err := validDirection(direction); err != nil {
		return nil, err
	}
	period, err := billing.NewPeriod(year, month)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	rows, err := s.repos.Completions.ListCompletedBetween(ctx, period.Start(), period.EndExclusive())
	if err != nil {
		return nil, err
	}

	rates := s.rates()
	result := &AggregationResult{Year: year, Month: month, Direction: direction, Groups: []GroupResult{}}
	for _, group := range groupByParty(direction, rows) {
		outcome := s.aggregateGroup(ctx, period, direction, group, rates.SupportPercent)
		if outcome.Outcome == GroupErrored {
			s.log.Warn().
				Str("party_id", group.partyID.String()).
				Str("period", period.String()).
				Str("error", outcome.Error).
				Msg("monthly invoice failed")
		}
		result.Groups = append(result.Groups, outcome)
	}

	s.log.Info().
		Str("period", period.String()).
		Str("direction", string(direction)).
		Int("groups", len(result.Groups)).
		Int("created", result.Created()).
		Msg("monthly aggregation finished")
	return result, nil
}

func (s *Service) aggregateGroup(
	ctx context.Context,
	period billing.Period,
	direction model.InvoiceDirection,
	group partyGroup,
	percent decimal.Decimal,
) GroupResult {
	outcome := GroupResult{PartyID: group.partyID, Contracts: len(group.rows)}
	fail := func(err error) GroupResult {
		outcome.Outcome = GroupErrored
		outcome.Error = err.Error()
		outcome.ErrorKind = KindOf(err)
		return outcome
	}

	existing, err := s.repos.Invoices.FindForPeriod(ctx, direction, group.partyID,
		period.Year, int(period.Month))
	switch {
	case err == nil:
		return s.existingOutcome(outcome, existing)
	case !repository.IsNotFound(err):
		return fail(err)
	}

	var invoice *model.Invoice
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		ids := make([]uuid.UUID, 0, len(group.rows))
		for _, row := range group.rows {
			ids = append(ids, row.ContractID)
		}
		billed, err := tx.Invoices.BilledContracts(ctx, direction, ids)
		if err != nil {
			return err
		}

		refs := make([]model.InvoiceReference, 0, len(group.rows))
		contractIDs := make([]uuid.UUID, 0, len(group.rows))
		for _, row := range group.rows {
			if billed[row.ContractID] {
				continue
			}
			refs = append(refs, model.InvoiceReference{
				ProjectID:      row.ProjectID,
				ContractID:     row.ContractID,
				ContractorID:   row.ContractorID,
				OrganizationID: row.OrganizationID,
				Amount:         row.Amount,
				SupportEnabled: row.SupportEnabled,
				CompletionDate: billing.DateOnly(row.CompletionDate),
			})
			contractIDs = append(contractIDs, row.ContractID)
		}
		if len(refs) == 0 {
			return errNothingToBill
		}

		invoice = buildInvoice(direction, group.partyID, period, model.InvoiceSourceMonthly,
			refs, percent, s.clock(), s.cfg.Billing.InvoiceDueDays)
		if err := tx.Invoices.Create(ctx, invoice, contractIDs); err != nil {
			return err
		}
		recipients, err := s.invoiceRecipients(ctx, tx, invoice)
		if err != nil {
			return err
		}
		notifyInvoice(batch, recipients, invoice, NotifyInvoiceIssued)
		return nil
	})

	switch {
	case err == nil:
		id := invoice.ID
		outcome.Outcome = GroupCreated
		outcome.InvoiceID = &id
		outcome.Contracts = len(invoice.References)
		outcome.Total = invoice.TotalAmount
		outcome.Warnings = warnings
		return outcome
	case errors.Is(err, errNothingToBill):
		outcome.Outcome = GroupSkipped
		outcome.Contracts = 0
		return outcome
	case repository.IsDuplicate(err):
		// A concurrent run created the invoice first.
		existing, findErr := s.repos.Invoices.FindForPeriod(ctx, direction, group.partyID,
			period.Year, int(period.Month))
		if findErr != nil {
			return fail(translate(err, "invoice"))
		}
		return s.existingOutcome(outcome, existing)
	default:
		return fail(err)
	}
}

var errNothingToBill = errors.New("every contract of the group is already invoiced")

func (s *Service) existingOutcome(outcome GroupResult, existing *model.Invoice) GroupResult {
	id := existing.ID
	outcome.Outcome = GroupAlreadyExists
	outcome.InvoiceID = &id
	outcome.Contracts = len(existing.References)
	outcome.Total = existing.TotalAmount
	if err := billing.Reconcile(*existing); err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrIntegrity, err)
		outcome.Error = wrapped.Error()
		outcome.ErrorKind = KindIntegrity
	}
	return outcome
}
