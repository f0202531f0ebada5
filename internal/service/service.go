package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/subcontract-billing/internal/billing"
	"github.com/nurpe/subcontract-billing/internal/config"
	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

// Notification kinds sent to users.
const (
	NotifyBidSubmitted        = "bid_submitted"
	NotifyBidAccepted         = "bid_accepted"
	NotifyBidRejected         = "bid_rejected"
	NotifyProjectExpired      = "project_expired"
	NotifyProjectReopened     = "project_reopened"
	NotifyProjectSuspended    = "project_suspended"
	NotifySignatureRequested  = "contract_signature_requested"
	NotifyContractSigned      = "contract_signed"
	NotifyContractDeclined    = "contract_declined"
	NotifyAmountProposed      = "contract_amount_proposed"
	NotifyAmountApproved      = "contract_amount_approved"
	NotifyAmountRejected      = "contract_amount_rejected"
	NotifyCompletionReported  = "completion_reported"
	NotifyEvaluationReceived  = "evaluation_received"
	NotifyInvoiceIssued       = "invoice_issued"
	NotifyInvoiceStatusChange = "invoice_status_changed"
)

// Dispatcher delivers committed side effects.
type Dispatcher interface {
	Drain(ctx context.Context, ids []uuid.UUID) []effects.Warning
	DrainPending(ctx context.Context, limit int) (*effects.DrainReport, error)
}

type ExcelGenerator interface {
	Generate(report model.InvoiceReport) ([]byte, error)
}

type PDFGenerator interface {
	Generate(doc model.InvoiceDocument) ([]byte, error)
}

// Outcome is a committed result plus the side effects that failed after commit.
type Outcome[T any] struct {
	Value    T                 `json:"data"`
	Warnings []effects.Warning `json:"warnings,omitempty"`
}

type Service struct {
	repos      *repository.Repositories
	auth       *Authorizer
	dispatcher Dispatcher
	excel      ExcelGenerator
	pdf        PDFGenerator
	cfg        *config.Config
	log        zerolog.Logger
	validate   *validator.Validate
	now        func() time.Time
}

func New(
	repos *repository.Repositories,
	dispatcher Dispatcher,
	excel ExcelGenerator,
	pdf PDFGenerator,
	cfg *config.Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		repos:      repos,
		auth:       NewAuthorizer(repos.Directory, cfg),
		dispatcher: dispatcher,
		excel:      excel,
		pdf:        pdf,
		cfg:        cfg,
		log:        log,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Authorizer() *Authorizer {
	return s.auth
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// rates snapshots the billing configuration for one calculation.
func (s *Service) rates() billing.Rates {
	return billing.Rates{SupportPercent: s.cfg.Billing.SupportFeePercent}
}

// commit runs fn in one transaction together with the side effects it queued,
// then delivers those side effects.
func (s *Service) commit(ctx context.Context, fn func(tx *repository.Repositories, batch *effects.Batch) error) ([]effects.Warning, error) {
	batch := effects.NewBatch(s.cfg.Effects.MaxAttempts)
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := fn(tx, batch); err != nil {
			return err
		}
		return batch.Save(ctx, tx.SideEffects)
	})
	if err != nil {
		return nil, err
	}
	if s.dispatcher == nil || batch.Len() == 0 {
		return nil, nil
	}
	return s.dispatcher.Drain(ctx, batch.IDs()), nil
}

// DrainSideEffects retries queued side effects that are due.
func (s *Service) DrainSideEffects(ctx context.Context, limit int) (*effects.DrainReport, error) {
	if s.dispatcher == nil {
		return &effects.DrainReport{}, nil
	}
	return s.dispatcher.DrainPending(ctx, limit)
}

func (s *Service) validateStruct(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(parts, "; "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func (s *Service) loadProject(ctx context.Context, repos *repository.Repositories, id uuid.UUID, lock bool) (*model.Project, error) {
	var (
		project *model.Project
		err     error
	)
	if lock {
		project, err = repos.Projects.GetForUpdate(ctx, id)
	} else {
		project, err = repos.Projects.GetByID(ctx, id)
	}
	if err != nil {
		return nil, translate(err, "project")
	}
	return project, nil
}

func (s *Service) loadContract(ctx context.Context, repos *repository.Repositories, id uuid.UUID, lock bool) (*model.Contract, error) {
	var (
		contract *model.Contract
		err      error
	)
	if lock {
		contract, err = repos.Contracts.GetForUpdate(ctx, id)
	} else {
		contract, err = repos.Contracts.GetByID(ctx, id)
	}
	if err != nil {
		return nil, translate(err, "contract")
	}
	return contract, nil
}

func (s *Service) loadBid(ctx context.Context, repos *repository.Repositories, id uuid.UUID, lock bool) (*model.Bid, error) {
	var (
		bid *model.Bid
		err error
	)
	if lock {
		bid, err = repos.Bids.GetForUpdate(ctx, id)
	} else {
		bid, err = repos.Bids.GetByID(ctx, id)
	}
	if err != nil {
		return nil, translate(err, "bid")
	}
	return bid, nil
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", fmt.Errorf("%w: reason is required", ErrValidation)
	}
	return reason, nil
}
