package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

type ProjectTerms struct {
	Title               string    `validate:"required"`
	Budget              int64     `validate:"gt=0"`
	RequiredContractors int       `validate:"gte=1"`
	BiddingDeadline     time.Time `validate:"required"`
	StartDate           time.Time `validate:"required"`
	EndDate             time.Time `validate:"required"`
	RequiredMemberLevel int       `validate:"gte=0"`
}

func validateSchedule(deadline, start, end time.Time) error {
	if start.Before(deadline) {
		return fmt.Errorf("%w: start date must not be before the bidding deadline", ErrValidation)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end date must not be before the start date", ErrValidation)
	}
	return nil
}

func (s *Service) CreateProject(ctx context.Context, actor model.Principal, orgID uuid.UUID, terms ProjectTerms) (*model.Project, error) {
	if err := s.auth.requireOrgMember(ctx, actor, orgID); err != nil {
		return nil, err
	}
	terms.Title = strings.TrimSpace(terms.Title)
	if err := s.validateStruct(terms); err != nil {
		return nil, err
	}
	if !terms.BiddingDeadline.After(s.clock()) {
		return nil, fmt.Errorf("%w: bidding deadline must be in the future", ErrValidation)
	}
	if err := validateSchedule(terms.BiddingDeadline, terms.StartDate, terms.EndDate); err != nil {
		return nil, err
	}

	project := &model.Project{
		OrganizationID:      orgID,
		CreatedBy:           actor.UserID,
		Title:               terms.Title,
		Budget:              terms.Budget,
		RequiredContractors: terms.RequiredContractors,
		BiddingDeadline:     terms.BiddingDeadline.UTC(),
		StartDate:           terms.StartDate.UTC(),
		EndDate:             terms.EndDate.UTC(),
		Status:              model.ProjectStatusBidding,
		RequiredMemberLevel: terms.RequiredMemberLevel,
	}
	if err := s.repos.Projects.Create(ctx, project); err != nil {
		return nil, translate(err, "project")
	}
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	return s.loadProject(ctx, s.repos, id, false)
}

// ListBids returns every bid to organization members. A contractor only sees
// their own bid.
func (s *Service) ListBids(ctx context.Context, actor model.Principal, projectID uuid.UUID) ([]model.Bid, error) {
	project, err := s.loadProject(ctx, s.repos, projectID, false)
	if err != nil {
		return nil, err
	}
	bids, err := s.repos.Bids.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	decision, err := s.auth.OrgMember(ctx, actor, project.OrganizationID)
	if err != nil {
		return nil, err
	}
	if decision.Allowed {
		return bids, nil
	}
	if !actor.IsContractor() {
		return nil, decision.Err()
	}
	own := make([]model.Bid, 0, 1)
	for _, bid := range bids {
		if bid.ContractorID == actor.UserID {
			own = append(own, bid)
		}
	}
	return own, nil
}

func (s *Service) SuspendProject(ctx context.Context, actor model.Principal, projectID uuid.UUID) (*Outcome[*model.Project], error) {
	return s.moveProject(ctx, actor, projectID,
		[]model.ProjectStatus{model.ProjectStatusBidding, model.ProjectStatusNegotiation, model.ProjectStatusInProgress},
		model.ProjectStatusSuspended, NotifyProjectSuspended)
}

func (s *Service) ArchiveProject(ctx context.Context, actor model.Principal, projectID uuid.UUID) (*Outcome[*model.Project], error) {
	return s.moveProject(ctx, actor, projectID,
		[]model.ProjectStatus{model.ProjectStatusCompleted, model.ProjectStatusExpired},
		model.ProjectStatusArchived, "")
}

func (s *Service) moveProject(
	ctx context.Context,
	actor model.Principal,
	projectID uuid.UUID,
	from []model.ProjectStatus,
	to model.ProjectStatus,
	notifyKind string,
) (*Outcome[*model.Project], error) {
	project, err := s.loadProject(ctx, s.repos, projectID, false)
	if err != nil {
		return nil, err
	}
	if err := s.auth.requireOrgAdmin(ctx, actor, project.OrganizationID); err != nil {
		return nil, err
	}

	var updated *model.Project
	warnings, err := s.commit(ctx, func(tx *repository.Repositories, batch *effects.Batch) error {
		changed, err := tx.Projects.TransitionStatus(ctx, projectID, from, to)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%w: project cannot move from %s to %s", ErrInvalidState, project.Status, to)
		}
		if notifyKind != "" {
			participants, err := tx.Directory.ListParticipants(ctx, projectID)
			if err != nil {
				return err
			}
			for _, p := range participants {
				batch.Notify(projectID, p.UserID, notifyKind, map[string]any{"project_id": projectID.String()})
			}
		}
		updated, err = tx.Projects.GetByID(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, translate(err, "project")
	}
	return &Outcome[*model.Project]{Value: updated, Warnings: warnings}, nil
}
