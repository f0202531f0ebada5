package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nurpe/subcontract-billing/internal/billing"
	"github.com/nurpe/subcontract-billing/internal/model"
)

type Document struct {
	FileName string
	Content  []byte
}

// RenderInvoicePDF renders one invoice for its party or a platform admin.
func (s *Service) RenderInvoicePDF(ctx context.Context, actor model.Principal, invoiceID uuid.UUID) (*Document, error) {
	if s.pdf == nil {
		return nil, fmt.Errorf("%w: pdf rendering is not configured", ErrDependency)
	}
	invoice, err := s.readableInvoice(ctx, actor, invoiceID)
	if err != nil {
		return nil, err
	}

	partyName, err := s.partyNames(ctx, invoice.Direction, []uuid.UUID{invoice.PartyID})
	if err != nil {
		return nil, err
	}
	projectIDs := make([]uuid.UUID, 0, len(invoice.References))
	for _, ref := range invoice.References {
		projectIDs = append(projectIDs, ref.ProjectID)
	}
	projects, err := s.projectTitles(ctx, projectIDs)
	if err != nil {
		return nil, err
	}

	content, err := s.pdf.Generate(model.InvoiceDocument{
		Invoice:   *invoice,
		PartyName: partyName[invoice.PartyID],
		Projects:  projects,
	})
	if err != nil {
		return nil, err
	}
	return &Document{
		FileName: fmt.Sprintf("invoice_%s_%04d-%02d_%s.pdf",
			invoice.Direction, invoice.BillingYear, invoice.BillingMonth, invoice.ID.String()[:8]),
		Content: content,
	}, nil
}

// ExportMonthly builds the workbook of every invoice issued for a period.
func (s *Service) ExportMonthly(
	ctx context.Context,
	actor model.Principal,
	year, month int,
	direction model.InvoiceDirection,
) (*Document, error) {
	if err := s.auth.Admin(actor).Err(); err != nil {
		return nil, err
	}
	if s.excel == nil {
		return nil, fmt.Errorf("%w: excel export is not configured", ErrDependency)
	}
	if err := validDirection(direction); err != nil {
		return nil, err
	}
	period, err := billing.NewPeriod(year, month)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	invoices, err := s.repos.Invoices.ListByPeriod(ctx, direction, year, month)
	if err != nil {
		return nil, err
	}
	parties := make([]uuid.UUID, 0, len(invoices))
	for _, invoice := range invoices {
		parties = append(parties, invoice.PartyID)
	}
	names, err := s.partyNames(ctx, direction, parties)
	if err != nil {
		return nil, err
	}

	content, err := s.excel.Generate(model.InvoiceReport{
		Direction:   direction,
		Year:        year,
		Month:       month,
		PeriodStart: period.Start(),
		PeriodEnd:   period.End(),
		Invoices:    invoices,
		PartyNames:  names,
	})
	if err != nil {
		return nil, err
	}
	return &Document{
		FileName: fmt.Sprintf("invoices_%s_%04d-%02d.xlsx", direction, year, month),
		Content:  content,
	}, nil
}

func (s *Service) partyNames(ctx context.Context, direction model.InvoiceDirection, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if direction == model.InvoiceDirectionOperator {
		return s.repos.Directory.OrganizationNames(ctx, ids)
	}
	return s.repos.Directory.UserNames(ctx, ids)
}

func (s *Service) projectTitles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	titles := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if _, ok := titles[id]; ok {
			continue
		}
		project, err := s.repos.Projects.GetByID(ctx, id)
		if err != nil {
			return nil, translate(err, "project")
		}
		titles[id] = project.Title
	}
	return titles, nil
}
