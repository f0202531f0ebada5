package effects

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

// Batch collects the side effects of one state change. Save it inside the
// same transaction, then hand IDs to Dispatcher.Drain after commit.
type Batch struct {
	maxAttempts int
	effects     []*model.SideEffect
	err         error
}

func NewBatch(maxAttempts int) *Batch {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Batch{maxAttempts: maxAttempts}
}

func (b *Batch) Notify(projectID uuid.UUID, userID uuid.UUID, kind string, data map[string]any) {
	b.add(model.SideEffectNotify, projectID, model.NotifyPayload{UserID: userID, Kind: kind, Data: data})
}

// NotifyAll queues the same notification for every user.
func (b *Batch) NotifyAll(projectID uuid.UUID, userIDs []uuid.UUID, kind string, data map[string]any) {
	for _, userID := range userIDs {
		b.Notify(projectID, userID, kind, data)
	}
}

func (b *Batch) Provision(projectID uuid.UUID, members []uuid.UUID) {
	b.add(model.SideEffectProvisionWorkspace, projectID, model.ProvisionPayload{ProjectID: projectID, Members: members})
}

func (b *Batch) GrantAccess(projectID, userID uuid.UUID, role string) {
	b.add(model.SideEffectGrantAccess, projectID, model.GrantAccessPayload{ProjectID: projectID, UserID: userID, Role: role})
}

func (b *Batch) Len() int {
	return len(b.effects)
}

// Save inserts the queued tasks through repo.
func (b *Batch) Save(ctx context.Context, repo *repository.SideEffectRepository) error {
	if b.err != nil {
		return b.err
	}
	return repo.Create(ctx, b.effects...)
}

// IDs returns the task ids. They are assigned by Save.
func (b *Batch) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.effects))
	for _, effect := range b.effects {
		if effect.ID != uuid.Nil {
			ids = append(ids, effect.ID)
		}
	}
	return ids
}

func (b *Batch) add(kind model.SideEffectKind, projectID uuid.UUID, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return
	}
	var project *uuid.UUID
	if projectID != uuid.Nil {
		id := projectID
		project = &id
	}
	b.effects = append(b.effects, &model.SideEffect{
		Kind:        kind,
		ProjectID:   project,
		Payload:     datatypes.JSON(raw),
		Status:      model.SideEffectPending,
		MaxAttempts: b.maxAttempts,
	})
}
