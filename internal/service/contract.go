package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

type SignSide string

const (
	SideOrganization SignSide = "organization"
	SideContractor   SignSide = "contractor"
)

func (s *Service) authorizeSide(ctx context.Context, actor model.Principal, contract *model.Contract, side SignSide) error {
	switch side {
	case SideOrganization:
		return s.auth.requireOrgAdmin(ctx, actor, contract.OrganizationID)
	case SideContractor:
		return s.auth.Contractor(actor, contract.ContractorID).Err()
	default:
		return fmt.Errorf("%w: side must be organization or contractor", ErrValidation)
	}
}

// Sign stamps the signature of one side. Once both sides signed, the project
// starts and workspace provisioning is queued.
func (s *Service) Sign(ctx context.Context, actor model.Principal, contractID uuid.UUID, side SignSide) (*Outcome[*model.Contract], error) {
	contract, err := s.loadContract(ctx, s.repos, contractID, false)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSide(ctx, actor, contract, side); err != nil {
		return nil, err
	}

	now := s.clock()
	var signed *model.Contract
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		current, err := s.loadContract(ctx, tx, contractID, true)
		if err != nil {
			return err
		}
		if current.Status == model.ContractStatusDeclined {
			return fmt.Errorf("%w: contract is declined", ErrInvalidState)
		}
		if current.ProposedAmount != nil {
			return fmt.Errorf("%w: an amount proposal is pending", ErrInvalidState)
		}

		column := repository.SignatureColumnOrganization
		orgAt, contractorAt := current.OrgSignedAt, current.ContractorSignedAt
		if side == SideContractor {
			column = repository.SignatureColumnContractor
			if contractorAt != nil {
				return ErrAlreadySigned
			}
			contractorAt = &now
		} else {
			if orgAt != nil {
				return ErrAlreadySigned
			}
			orgAt = &now
		}

		status := model.SignatureStatus(orgAt, contractorAt)
		changed, err := tx.Contracts.SetSignature(ctx, current.ID, column, now, status)
		if err != nil {
			return err
		}
		if !changed {
			return ErrAlreadySigned
		}

		admins, err := tx.Directory.ListOrgAdminIDs(ctx, current.OrganizationID)
		if err != nil {
			return err
		}
		data := map[string]any{"contract_id": current.ID.String(), "status": string(status)}

		if status == model.ContractStatusSigned {
			if _, err := tx.Projects.TransitionStatus(ctx, current.ProjectID,
				[]model.ProjectStatus{model.ProjectStatusBidding, model.ProjectStatusNegotiation},
				model.ProjectStatusInProgress); err != nil {
				return err
			}
			batch.Provision(current.ProjectID, admins)
			batch.NotifyAll(current.ProjectID, admins, NotifyContractSigned, data)
			batch.Notify(current.ProjectID, current.ContractorID, NotifyContractSigned, data)
		} else if side == SideOrganization {
			batch.Notify(current.ProjectID, current.ContractorID, NotifySignatureRequested, data)
		} else {
			batch.NotifyAll(current.ProjectID, admins, NotifySignatureRequested, data)
		}

		signed, err = tx.Contracts.GetByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, translate(err, "contract")
	}
	return &Outcome[*model.Contract]{Value: signed, Warnings: warnings}, nil
}

// Decline ends a contract that is not fully signed. The declining contractor
// loses their bids and participation, and the project goes back to bidding.
func (s *Service) Decline(ctx context.Context, actor model.Principal, contractID uuid.UUID, reason string) (*Outcome[*CascadePlan], error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	contract, err := s.loadContract(ctx, s.repos, contractID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Contractor(actor, contract.ContractorID).Err(); err != nil {
		return nil, err
	}

	var plan *CascadePlan
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		current, err := s.loadContract(ctx, tx, contractID, true)
		if err != nil {
			return err
		}
		if !current.IsPreSigned() {
			return fmt.Errorf("%w: contract is %s", ErrInvalidState, current.Status)
		}
		project, err := s.loadProject(ctx, tx, current.ProjectID, true)
		if err != nil {
			return err
		}

		plan, err = s.planDecline(ctx, tx, project, current, reason)
		if err != nil {
			return err
		}
		if err := plan.Execute(ctx, tx); err != nil {
			return err
		}

		admins, err := tx.Directory.ListOrgAdminIDs(ctx, project.OrganizationID)
		if err != nil {
			return err
		}
		batch.NotifyAll(project.ID, admins, NotifyContractDeclined, map[string]any{
			"contract_id": current.ID.String(),
			"reason":      reason,
		})
		return nil
	})
	if err != nil {
		return nil, translate(err, "contract")
	}
	return &Outcome[*CascadePlan]{Value: plan, Warnings: warnings}, nil
}

func (s *Service) planDecline(
	ctx context.Context,
	tx *repository.Repositories,
	project *model.Project,
	contract *model.Contract,
	reason string,
) (*CascadePlan, error) {
	bidIDs, err := tx.Bids.ListIDs(ctx, project.ID, &contract.ContractorID)
	if err != nil {
		return nil, err
	}

	var next *uuid.UUID
	if project.ContractorID != nil && *project.ContractorID != contract.ContractorID {
		next = project.ContractorID
	} else {
		others, err := tx.Contracts.ListByProject(ctx, project.ID)
		if err != nil {
			return nil, err
		}
		for _, other := range others {
			if other.ID == contract.ID || other.ContractorID == contract.ContractorID ||
				other.Status == model.ContractStatusDeclined {
				continue
			}
			id := other.ContractorID
			next = &id
			break
		}
	}

	updates := map[string]any{
		"status":        model.ProjectStatusBidding,
		"contractor_id": nil,
	}
	if next != nil {
		updates["contractor_id"] = *next
	}

	declineID := contract.ID
	return &CascadePlan{
		ProjectID:      project.ID,
		DeclineID:      &declineID,
		DeclineReason:  reason,
		BidIDs:         bidIDs,
		ParticipantIDs: []uuid.UUID{contract.ContractorID},
		ProjectUpdates: updates,
	}, nil
}

type ReopenTerms struct {
	BiddingDeadline     *time.Time
	Budget              *int64
	StartDate           *time.Time
	EndDate             *time.Time
	RequiredContractors *int
}

// Reopen resets a project whose bidding deadline passed. Every bid, contract
// and participant of the project is removed.
func (s *Service) Reopen(ctx context.Context, actor model.Principal, projectID uuid.UUID, terms ReopenTerms) (*Outcome[*CascadePlan], error) {
	project, err := s.loadProject(ctx, s.repos, projectID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.requireOrgAdmin(ctx, actor, project.OrganizationID); err != nil {
		return nil, err
	}

	now := s.clock()
	var plan *CascadePlan
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		project, err := s.loadProject(ctx, tx, projectID, true)
		if err != nil {
			return err
		}
		if !now.After(project.BiddingDeadline) {
			return fmt.Errorf("%w: bidding deadline has not passed", ErrInvalidState)
		}
		switch project.Status {
		case model.ProjectStatusInProgress, model.ProjectStatusCompleted, model.ProjectStatusArchived:
			return fmt.Errorf("%w: project is %s", ErrInvalidState, project.Status)
		}
		reports, err := tx.Completions.CountByProject(ctx, project.ID)
		if err != nil {
			return err
		}
		if reports > 0 {
			return fmt.Errorf("%w: project has completion reports", ErrInvalidState)
		}

		updates, err := reopenUpdates(project, terms, now)
		if err != nil {
			return err
		}
		plan, err = s.planReopen(ctx, tx, project, updates)
		if err != nil {
			return err
		}
		if err := plan.Execute(ctx, tx); err != nil {
			return err
		}

		for _, userID := range plan.ParticipantIDs {
			batch.Notify(project.ID, userID, NotifyProjectReopened, map[string]any{"project_id": project.ID.String()})
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "project")
	}
	return &Outcome[*CascadePlan]{Value: plan, Warnings: warnings}, nil
}

func reopenUpdates(project *model.Project, terms ReopenTerms, now time.Time) (map[string]any, error) {
	deadline, start, end := project.BiddingDeadline, project.StartDate, project.EndDate
	updates := map[string]any{
		"status":        model.ProjectStatusBidding,
		"contractor_id": nil,
	}
	// The stored deadline has always passed by now, so reopening needs a new one.
	if terms.BiddingDeadline == nil {
		return nil, fmt.Errorf("%w: a new bidding deadline is required", ErrValidation)
	}
	deadline = terms.BiddingDeadline.UTC()
	if !deadline.After(now) {
		return nil, fmt.Errorf("%w: bidding deadline must be in the future", ErrValidation)
	}
	updates["bidding_deadline"] = deadline
	if terms.StartDate != nil {
		start = terms.StartDate.UTC()
		updates["start_date"] = start
	}
	if terms.EndDate != nil {
		end = terms.EndDate.UTC()
		updates["end_date"] = end
	}
	if terms.Budget != nil {
		if *terms.Budget <= 0 {
			return nil, fmt.Errorf("%w: budget must be positive", ErrValidation)
		}
		updates["budget"] = *terms.Budget
	}
	if terms.RequiredContractors != nil {
		if *terms.RequiredContractors < 1 {
			return nil, fmt.Errorf("%w: required contractors must be at least 1", ErrValidation)
		}
		updates["required_contractors"] = *terms.RequiredContractors
	}
	if err := validateSchedule(deadline, start, end); err != nil {
		return nil, err
	}
	return updates, nil
}

func (s *Service) planReopen(ctx context.Context, tx *repository.Repositories, project *model.Project, updates map[string]any) (*CascadePlan, error) {
	bidIDs, err := tx.Bids.ListIDs(ctx, project.ID, nil)
	if err != nil {
		return nil, err
	}
	contractIDs, err := tx.Contracts.ListIDsByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	participants, err := tx.Directory.ListParticipants(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	participantIDs := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		participantIDs = append(participantIDs, p.UserID)
	}
	return &CascadePlan{
		ProjectID:      project.ID,
		BidIDs:         bidIDs,
		ContractIDs:    contractIDs,
		ParticipantIDs: participantIDs,
		ProjectUpdates: updates,
	}, nil
}

type SupportResult struct {
	Contract     *model.Contract `json:"contract"`
	AddedSupport []uuid.UUID     `json:"added_support"`
}

// ToggleSupport switches the support fee on or off. Enabling it adds every
// support staff account to the project, skipping those already present.
func (s *Service) ToggleSupport(ctx context.Context, actor model.Principal, contractID uuid.UUID, enable bool) (*Outcome[*SupportResult], error) {
	contract, err := s.loadContract(ctx, s.repos, contractID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Contractor(actor, contract.ContractorID).Err(); err != nil {
		return nil, err
	}

	result := &SupportResult{AddedSupport: []uuid.UUID{}}
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		current, err := s.loadContract(ctx, tx, contractID, true)
		if err != nil {
			return err
		}
		if current.Status == model.ContractStatusDeclined {
			return fmt.Errorf("%w: contract is declined", ErrInvalidState)
		}
		project, err := s.loadProject(ctx, tx, current.ProjectID, true)
		if err != nil {
			return err
		}
		if project.Status == model.ProjectStatusCompleted || project.Status == model.ProjectStatusArchived {
			return fmt.Errorf("%w: project is %s", ErrInvalidState, project.Status)
		}

		if err := tx.Contracts.Update(ctx, current.ID, map[string]any{"support_enabled": enable}); err != nil {
			return err
		}
		if enable {
			staff, err := tx.Directory.ListUsersByRole(ctx, model.UserRoleSupport)
			if err != nil {
				return err
			}
			for _, member := range staff {
				added, err := tx.Directory.AddParticipant(ctx, &model.ProjectParticipant{
					ProjectID: project.ID,
					UserID:    member.ID,
					Role:      model.ParticipantRoleSupport,
				})
				if err != nil {
					return err
				}
				if added {
					result.AddedSupport = append(result.AddedSupport, member.ID)
					batch.GrantAccess(project.ID, member.ID, string(model.ParticipantRoleSupport))
				}
			}
		}

		result.Contract, err = tx.Contracts.GetByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, translate(err, "contract")
	}
	return &Outcome[*SupportResult]{Value: result, Warnings: warnings}, nil
}

// ProposeAmount lets the contractor counter the bid amount before anyone signed.
func (s *Service) ProposeAmount(ctx context.Context, actor model.Principal, contractID uuid.UUID, amount int64) (*Outcome[*model.Contract], error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive integer", ErrValidation)
	}
	contract, err := s.loadContract(ctx, s.repos, contractID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Contractor(actor, contract.ContractorID).Err(); err != nil {
		return nil, err
	}
	return s.negotiate(ctx, contractID, func(tx *repository.Repositories, batch *effects.Batch, current *model.Contract) error {
		if err := tx.Contracts.Update(ctx, current.ID, map[string]any{"proposed_amount": amount}); err != nil {
			return err
		}
		admins, err := tx.Directory.ListOrgAdminIDs(ctx, current.OrganizationID)
		if err != nil {
			return err
		}
		batch.NotifyAll(current.ProjectID, admins, NotifyAmountProposed, map[string]any{
			"contract_id": current.ID.String(),
			"amount":      amount,
		})
		return nil
	})
}

func (s *Service) ApproveAmount(ctx context.Context, actor model.Principal, contractID uuid.UUID) (*Outcome[*model.Contract], error) {
	contract, err := s.loadContract(ctx, s.repos, contractID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.requireOrgAdmin(ctx, actor, contract.OrganizationID); err != nil {
		return nil, err
	}
	return s.negotiate(ctx, contractID, func(tx *repository.Repositories, batch *effects.Batch, current *model.Contract) error {
		if current.ProposedAmount == nil {
			return fmt.Errorf("%w: no amount proposal is pending", ErrInvalidState)
		}
		amount := *current.ProposedAmount
		if err := tx.Contracts.Update(ctx, current.ID, map[string]any{
			"amount":          amount,
			"proposed_amount": nil,
		}); err != nil {
			return err
		}
		batch.Notify(current.ProjectID, current.ContractorID, NotifyAmountApproved, map[string]any{
			"contract_id": current.ID.String(),
			"amount":      amount,
		})
		return nil
	})
}

func (s *Service) RejectAmount(ctx context.Context, actor model.Principal, contractID uuid.UUID, reason string) (*Outcome[*model.Contract], error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	contract, err := s.loadContract(ctx, s.repos, contractID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.requireOrgAdmin(ctx, actor, contract.OrganizationID); err != nil {
		return nil, err
	}
	return s.negotiate(ctx, contractID, func(tx *repository.Repositories, batch *effects.Batch, current *model.Contract) error {
		if current.ProposedAmount == nil {
			return fmt.Errorf("%w: no amount proposal is pending", ErrInvalidState)
		}
		if err := tx.Contracts.Update(ctx, current.ID, map[string]any{"proposed_amount": nil}); err != nil {
			return err
		}
		batch.Notify(current.ProjectID, current.ContractorID, NotifyAmountRejected, map[string]any{
			"contract_id": current.ID.String(),
			"reason":      reason,
		})
		return nil
	})
}

// negotiate runs fn on a locked contract that nobody has signed yet.
func (s *Service) negotiate(
	ctx context.Context,
	contractID uuid.UUID,
	fn func(tx *repository.Repositories, batch *effects.Batch, current *model.Contract) error,
) (*Outcome[*model.Contract], error) {
	var updated *model.Contract
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		current, err := s.loadContract(ctx, tx, contractID, true)
		if err != nil {
			return err
		}
		if current.Status != model.ContractStatusPendingContractor {
			return fmt.Errorf("%w: amount can only change before signing", ErrInvalidState)
		}
		if err := fn(tx, batch, current); err != nil {
			return err
		}
		updated, err = tx.Contracts.GetByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, translate(err, "contract")
	}
	return &Outcome[*model.Contract]{Value: updated, Warnings: warnings}, nil
}
