package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/nurpe/subcontract-billing/internal/repository"
)

// CascadePlan lists every record a decline or reopen touches. It is built
// before anything is written and executed inside one transaction.
type CascadePlan struct {
	ProjectID      uuid.UUID      `json:"project_id"`
	DeclineID      *uuid.UUID     `json:"decline_contract_id,omitempty"`
	DeclineReason  string         `json:"-"`
	BidIDs         []uuid.UUID    `json:"bid_ids"`
	ContractIDs    []uuid.UUID    `json:"contract_ids"`
	ParticipantIDs []uuid.UUID    `json:"participant_ids"`
	ProjectUpdates map[string]any `json:"-"`
}

// Execute applies the plan. Any failure aborts the surrounding transaction.
func (p *CascadePlan) Execute(ctx context.Context, tx *repository.Repositories) error {
	if p.DeclineID != nil {
		changed, err := tx.Contracts.Decline(ctx, *p.DeclineID, p.DeclineReason)
		if err != nil {
			return err
		}
		if !changed {
			return ErrInvalidState
		}
	}
	if _, err := tx.Contracts.DeleteByIDs(ctx, p.ContractIDs); err != nil {
		return err
	}
	if _, err := tx.Bids.DeleteByIDs(ctx, p.BidIDs); err != nil {
		return err
	}
	if _, err := tx.Directory.DeleteParticipants(ctx, p.ProjectID, p.ParticipantIDs); err != nil {
		return err
	}
	if len(p.ProjectUpdates) > 0 {
		if err := tx.Projects.Update(ctx, p.ProjectID, p.ProjectUpdates); err != nil {
			return err
		}
	}
	return nil
}
