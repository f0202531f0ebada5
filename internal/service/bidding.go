package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

func (s *Service) SubmitBid(ctx context.Context, actor model.Principal, projectID uuid.UUID, amount int64) (*Outcome[*model.Bid], error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive integer", ErrValidation)
	}
	if !actor.IsContractor() {
		return nil, fmt.Errorf("%w: contractor role required", ErrForbidden)
	}
	user, err := s.repos.Directory.GetUser(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err, "user")
	}

	now := s.clock()
	var bid *model.Bid
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		project, err := s.loadProject(ctx, tx, projectID, true)
		if err != nil {
			return err
		}
		if project.Status != model.ProjectStatusBidding {
			return fmt.Errorf("%w: project is %s", ErrInvalidState, project.Status)
		}
		if !project.AcceptsBidsAt(now) {
			return fmt.Errorf("%w: bidding deadline has passed", ErrInvalidState)
		}
		if user.MemberLevel < project.RequiredMemberLevel {
			return fmt.Errorf("%w: member level %d is below the required %d",
				ErrForbidden, user.MemberLevel, project.RequiredMemberLevel)
		}

		bid = &model.Bid{
			ProjectID:    project.ID,
			ContractorID: actor.UserID,
			Amount:       amount,
			Status:       model.BidStatusSubmitted,
		}
		if err := tx.Bids.Create(ctx, bid); err != nil {
			return translate(err, "bid")
		}

		admins, err := tx.Directory.ListOrgAdminIDs(ctx, project.OrganizationID)
		if err != nil {
			return err
		}
		batch.NotifyAll(project.ID, admins, NotifyBidSubmitted, map[string]any{
			"bid_id": bid.ID.String(),
			"amount": amount,
		})
		return nil
	})
	if err != nil {
		return nil, translate(err, "bid")
	}
	return &Outcome[*model.Bid]{Value: bid, Warnings: warnings}, nil
}

// AcceptBid turns a submitted bid into a contract awaiting signatures. The
// project row lock serializes acceptances so slots cannot be overfilled.
func (s *Service) AcceptBid(ctx context.Context, actor model.Principal, bidID uuid.UUID) (*Outcome[*model.Contract], error) {
	bid, err := s.loadBid(ctx, s.repos, bidID, false)
	if err != nil {
		return nil, err
	}
	project, err := s.loadProject(ctx, s.repos, bid.ProjectID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.requireOrgAdmin(ctx, actor, project.OrganizationID); err != nil {
		return nil, err
	}

	var contract *model.Contract
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		project, err := s.loadProject(ctx, tx, bid.ProjectID, true)
		if err != nil {
			return err
		}
		// A project that filled its slots has already moved to negotiation.
		accepted, err := tx.Bids.CountByStatus(ctx, project.ID, model.BidStatusAccepted)
		if err != nil {
			return err
		}
		fillable := project.Status == model.ProjectStatusBidding || project.Status == model.ProjectStatusNegotiation
		if fillable && accepted >= int64(project.RequiredContractors) {
			return ErrSlotsFilled
		}
		if project.Status != model.ProjectStatusBidding {
			return fmt.Errorf("%w: project is %s", ErrInvalidState, project.Status)
		}
		current, err := s.loadBid(ctx, tx, bidID, true)
		if err != nil {
			return err
		}
		if current.Status != model.BidStatusSubmitted {
			return fmt.Errorf("%w: bid is %s", ErrInvalidState, current.Status)
		}

		changed, err := tx.Bids.TransitionStatus(ctx, current.ID, model.BidStatusSubmitted, model.BidStatusAccepted, nil)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%w: bid is no longer submitted", ErrInvalidState)
		}

		contract = &model.Contract{
			ProjectID:      project.ID,
			ContractorID:   current.ContractorID,
			BidID:          current.ID,
			OrganizationID: project.OrganizationID,
			Amount:         current.Amount,
			StartDate:      project.StartDate,
			EndDate:        project.EndDate,
			Status:         model.ContractStatusPendingContractor,
		}
		if err := tx.Contracts.Create(ctx, contract); err != nil {
			return translate(err, "contract")
		}
		if _, err := tx.Directory.AddParticipant(ctx, &model.ProjectParticipant{
			ProjectID: project.ID,
			UserID:    current.ContractorID,
			Role:      model.ParticipantRoleContractor,
		}); err != nil {
			return err
		}

		updates := map[string]any{}
		if project.ContractorID == nil {
			updates["contractor_id"] = current.ContractorID
		}
		if accepted+1 >= int64(project.RequiredContractors) {
			updates["status"] = model.ProjectStatusNegotiation
		}
		if len(updates) > 0 {
			if err := tx.Projects.Update(ctx, project.ID, updates); err != nil {
				return err
			}
		}

		batch.Notify(project.ID, current.ContractorID, NotifyBidAccepted, map[string]any{
			"bid_id":      current.ID.String(),
			"contract_id": contract.ID.String(),
		})
		return nil
	})
	if err != nil {
		return nil, translate(err, "contract")
	}
	return &Outcome[*model.Contract]{Value: contract, Warnings: warnings}, nil
}

func (s *Service) RejectBid(ctx context.Context, actor model.Principal, bidID uuid.UUID, reason string) (*Outcome[*model.Bid], error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	bid, err := s.loadBid(ctx, s.repos, bidID, false)
	if err != nil {
		return nil, err
	}
	project, err := s.loadProject(ctx, s.repos, bid.ProjectID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.requireOrgAdmin(ctx, actor, project.OrganizationID); err != nil {
		return nil, err
	}

	var rejected *model.Bid
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		changed, err := tx.Bids.TransitionStatus(ctx, bid.ID, model.BidStatusSubmitted, model.BidStatusRejected, &reason)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%w: only submitted bids can be rejected", ErrInvalidState)
		}
		batch.Notify(project.ID, bid.ContractorID, NotifyBidRejected, map[string]any{
			"bid_id": bid.ID.String(),
			"reason": reason,
		})
		rejected, err = tx.Bids.GetByID(ctx, bid.ID)
		return err
	})
	if err != nil {
		return nil, translate(err, "bid")
	}
	return &Outcome[*model.Bid]{Value: rejected, Warnings: warnings}, nil
}

type ExpiryOutcome string

const (
	ExpiryExpired ExpiryOutcome = "expired"
	ExpirySkipped ExpiryOutcome = "skipped"
	ExpiryErrored ExpiryOutcome = "errored"
)

type ExpiryResult struct {
	ProjectID uuid.UUID         `json:"project_id"`
	Outcome   ExpiryOutcome     `json:"outcome"`
	Advisory  *Advisory         `json:"advisory,omitempty"`
	Error     string            `json:"error,omitempty"`
	Warnings  []effects.Warning `json:"warnings,omitempty"`
}

// ExpireProject closes bidding on a project whose deadline has passed without
// enough accepted bids.
func (s *Service) ExpireProject(ctx context.Context, actor model.Principal, projectID uuid.UUID) (*ExpiryResult, error) {
	project, err := s.loadProject(ctx, s.repos, projectID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.requireOrgAdmin(ctx, actor, project.OrganizationID); err != nil {
		return nil, err
	}
	return s.expire(ctx, projectID)
}

func (s *Service) expire(ctx context.Context, projectID uuid.UUID) (*ExpiryResult, error) {
	now := s.clock()
	result := &ExpiryResult{ProjectID: projectID}

	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		project, err := s.loadProject(ctx, tx, projectID, true)
		if err != nil {
			return err
		}
		if project.Status != model.ProjectStatusBidding {
			return fmt.Errorf("%w: project is %s", ErrInvalidState, project.Status)
		}
		if !now.After(project.BiddingDeadline) {
			return fmt.Errorf("%w: bidding deadline has not passed", ErrInvalidState)
		}

		accepted, err := tx.Bids.CountByStatus(ctx, project.ID, model.BidStatusAccepted)
		if err != nil {
			return err
		}
		shortfall := project.RequiredContractors - int(accepted)
		if shortfall <= 0 {
			result.Outcome = ExpirySkipped
			return nil
		}
		total, err := tx.Bids.CountByProject(ctx, project.ID)
		if err != nil {
			return err
		}

		advisory := BuildAdvisory(total, shortfall)
		if err := tx.Projects.Update(ctx, project.ID, map[string]any{"status": model.ProjectStatusExpired}); err != nil {
			return err
		}
		admins, err := tx.Directory.ListOrgAdminIDs(ctx, project.OrganizationID)
		if err != nil {
			return err
		}
		batch.NotifyAll(project.ID, admins, NotifyProjectExpired, map[string]any{
			"project_id": project.ID.String(),
			"tier":       string(advisory.Tier),
			"advisory":   advisory.Message,
		})
		result.Outcome = ExpiryExpired
		result.Advisory = &advisory
		return nil
	})
	if err != nil {
		return nil, translate(err, "project")
	}
	result.Warnings = warnings
	return result, nil
}

// ExpireSweep expires every bidding project past its deadline. One failing
// project never stops the others.
func (s *Service) ExpireSweep(ctx context.Context) ([]ExpiryResult, error) {
	projects, err := s.repos.Projects.ListBiddingPastDeadline(ctx, s.clock())
	if err != nil {
		return nil, err
	}
	results := make([]ExpiryResult, 0, len(projects))
	for _, project := range projects {
		result, err := s.expire(ctx, project.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("project_id", project.ID.String()).Msg("project expiry failed")
			results = append(results, ExpiryResult{
				ProjectID: project.ID,
				Outcome:   ExpiryErrored,
				Error:     err.Error(),
			})
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}
