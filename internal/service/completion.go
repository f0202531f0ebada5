package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/subcontract-billing/internal/billing"
	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

// ReportCompletion records that the work of a signed contract finished. The
// project completes once every signed contract has a report.
func (s *Service) ReportCompletion(
	ctx context.Context,
	actor model.Principal,
	contractID uuid.UUID,
	completionDate time.Time,
	note string,
) (*Outcome[*model.CompletionReport], error) {
	if completionDate.IsZero() {
		return nil, fmt.Errorf("%w: completion date is required", ErrValidation)
	}
	contract, err := s.loadContract(ctx, s.repos, contractID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.requireOrgAdmin(ctx, actor, contract.OrganizationID); err != nil {
		return nil, err
	}

	var report *model.CompletionReport
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		current, err := s.loadContract(ctx, tx, contractID, true)
		if err != nil {
			return err
		}
		if current.Status != model.ContractStatusSigned {
			return fmt.Errorf("%w: contract is %s", ErrInvalidState, current.Status)
		}

		report = &model.CompletionReport{
			ProjectID:      current.ProjectID,
			ContractID:     current.ID,
			CompletionDate: billing.DateOnly(completionDate),
			Note:           strings.TrimSpace(note),
			CreatedBy:      actor.UserID,
		}
		if err := tx.Completions.Create(ctx, report); err != nil {
			return translate(err, "completion report")
		}

		open, err := tx.Completions.CountUnreportedSigned(ctx, current.ProjectID)
		if err != nil {
			return err
		}
		if open == 0 {
			if _, err := tx.Projects.TransitionStatus(ctx, current.ProjectID,
				[]model.ProjectStatus{model.ProjectStatusInProgress},
				model.ProjectStatusCompleted); err != nil {
				return err
			}
		}

		batch.Notify(current.ProjectID, current.ContractorID, NotifyCompletionReported, map[string]any{
			"contract_id":     current.ID.String(),
			"completion_date": report.CompletionDate.Format(time.DateOnly),
		})
		return nil
	})
	if err != nil {
		return nil, translate(err, "completion report")
	}
	return &Outcome[*model.CompletionReport]{Value: report, Warnings: warnings}, nil
}

type EvaluationInput struct {
	ContractorID  uuid.UUID
	Quality       int `validate:"min=1,max=5"`
	Schedule      int `validate:"min=1,max=5"`
	Communication int `validate:"min=1,max=5"`
	Safety        int `validate:"min=1,max=5"`
	Cleanliness   int `validate:"min=1,max=5"`
	Comment       string
}

// SubmitEvaluation scores a contractor once per evaluator and project. The
// project needs at least one completion report.
func (s *Service) SubmitEvaluation(
	ctx context.Context,
	actor model.Principal,
	projectID uuid.UUID,
	input EvaluationInput,
) (*Outcome[*model.Evaluation], error) {
	if err := s.validateStruct(input); err != nil {
		return nil, err
	}
	project, err := s.loadProject(ctx, s.repos, projectID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.requireOrgMember(ctx, actor, project.OrganizationID); err != nil {
		return nil, err
	}

	contractorID := input.ContractorID
	if contractorID == uuid.Nil && project.ContractorID != nil {
		contractorID = *project.ContractorID
	}
	if contractorID == uuid.Nil {
		return nil, fmt.Errorf("%w: contractor_id is required", ErrValidation)
	}

	var evaluation *model.Evaluation
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		reports, err := tx.Completions.CountByProject(ctx, project.ID)
		if err != nil {
			return err
		}
		if reports == 0 {
			return fmt.Errorf("%w: project has no completion report", ErrInvalidState)
		}

		evaluation = &model.Evaluation{
			ProjectID:     project.ID,
			EvaluatorID:   actor.UserID,
			ContractorID:  contractorID,
			Quality:       input.Quality,
			Schedule:      input.Schedule,
			Communication: input.Communication,
			Safety:        input.Safety,
			Cleanliness:   input.Cleanliness,
			Comment:       strings.TrimSpace(input.Comment),
		}
		if err := tx.Completions.CreateEvaluation(ctx, evaluation); err != nil {
			return translate(err, "evaluation")
		}
		batch.Notify(project.ID, contractorID, NotifyEvaluationReceived, map[string]any{
			"project_id": project.ID.String(),
			"average":    evaluation.Average,
		})
		return nil
	})
	if err != nil {
		return nil, translate(err, "evaluation")
	}
	return &Outcome[*model.Evaluation]{Value: evaluation, Warnings: warnings}, nil
}
