package effects

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/nurpe/subcontract-billing/internal/collab"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

const processedTTL = 7 * 24 * time.Hour

// Warning reports a side effect that failed after the state change committed.
// The task stays queued for retry.
type Warning struct {
	Kind    string               `json:"kind"`
	TaskID  uuid.UUID            `json:"task_id"`
	Effect  model.SideEffectKind `json:"effect,omitempty"`
	Message string               `json:"message"`
}

const WarningKindDependency = "DependencyFailure"

type Options struct {
	Timeout time.Duration
	Workers int
	// Lease is how long a claimed task may stay in processing before another
	// drain treats its worker as lost and claims it again.
	Lease time.Duration
}

const defaultLease = 5 * time.Minute

type Dispatcher struct {
	repos       *repository.Repositories
	provisioner collab.Provisioner
	notifier    collab.Notifier
	store       IdempotencyStore
	opts        Options
	log         zerolog.Logger
	now         func() time.Time
}

func NewDispatcher(
	repos *repository.Repositories,
	provisioner collab.Provisioner,
	notifier collab.Notifier,
	store IdempotencyStore,
	opts Options,
	log zerolog.Logger,
) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Lease <= 0 {
		opts.Lease = defaultLease
	}
	if opts.Lease < 2*opts.Timeout {
		opts.Lease = 2 * opts.Timeout
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Dispatcher{
		repos:       repos,
		provisioner: provisioner,
		notifier:    notifier,
		store:       store,
		opts:        opts,
		log:         log,
		now:         time.Now,
	}
}

// Drain delivers the given tasks right after their transaction committed.
// Each task is bounded by the configured timeout; failures become warnings.
func (d *Dispatcher) Drain(ctx context.Context, ids []uuid.UUID) []Warning {
	var warnings []Warning
	for _, id := range ids {
		// Unclaimed tasks stay pending for DrainPending once the caller is gone.
		if ctx.Err() != nil {
			break
		}
		if w := d.deliver(ctx, id); w != nil {
			warnings = append(warnings, *w)
		}
	}
	return warnings
}

type DrainReport struct {
	Attempted int       `json:"attempted"`
	Delivered int       `json:"delivered"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

// DrainPending retries due tasks on a bounded worker pool.
func (d *Dispatcher) DrainPending(ctx context.Context, limit int) (*DrainReport, error) {
	if limit <= 0 {
		limit = 100
	}
	now := d.now()
	due, err := d.repos.SideEffects.ListDue(ctx, now, now.Add(-d.opts.Lease), limit)
	if err != nil {
		return nil, err
	}
	report := &DrainReport{Attempted: len(due)}
	if len(due) == 0 {
		return report, nil
	}

	pool, err := ants.NewPool(d.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered atomic.Int64
	)
	for _, effect := range due {
		id := effect.ID
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if w := d.deliver(ctx, id); w != nil {
				mu.Lock()
				report.Warnings = append(report.Warnings, *w)
				mu.Unlock()
				return
			}
			delivered.Add(1)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			report.Warnings = append(report.Warnings, Warning{
				Kind:    WarningKindDependency,
				TaskID:  id,
				Effect:  effect.Kind,
				Message: submitErr.Error(),
			})
			mu.Unlock()
		}
	}
	wg.Wait()

	report.Delivered = int(delivered.Load())
	return report, nil
}

// deliver runs one task. Only the external call is bound to ctx; the claim and
// the recorded outcome survive a cancelled caller so the task never sticks in
// processing.
func (d *Dispatcher) deliver(ctx context.Context, id uuid.UUID) *Warning {
	persistCtx := context.WithoutCancel(ctx)
	now := d.now()
	claimed, err := d.repos.SideEffects.Claim(persistCtx, id, now, now.Add(-d.opts.Lease))
	if err != nil {
		return d.warn(id, "", err)
	}
	if !claimed {
		return nil
	}
	effect, err := d.repos.SideEffects.GetByID(persistCtx, id)
	if err != nil {
		return d.warn(id, "", err)
	}

	key := effect.ID.String()
	if done, err := d.store.IsProcessed(persistCtx, key); err == nil && done {
		effect.MarkDone(d.now())
		if err := d.repos.SideEffects.Save(persistCtx, effect); err != nil {
			return d.warn(id, effect.Kind, err)
		}
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	execErr := d.execute(callCtx, effect)
	cancel()

	if execErr != nil {
		effect.MarkFailed(d.now(), execErr.Error())
		if err := d.repos.SideEffects.Save(persistCtx, effect); err != nil {
			d.log.Error().Err(err).Str("task_id", id.String()).Msg("failed to record side effect failure")
		}
		return d.warn(id, effect.Kind, execErr)
	}

	if _, err := d.store.MarkProcessed(persistCtx, key, processedTTL); err != nil {
		d.log.Warn().Err(err).Str("task_id", id.String()).Msg("idempotency store unavailable")
	}
	effect.MarkDone(d.now())
	if err := d.repos.SideEffects.Save(persistCtx, effect); err != nil {
		return d.warn(id, effect.Kind, err)
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, effect *model.SideEffect) error {
	switch effect.Kind {
	case model.SideEffectNotify:
		var payload model.NotifyPayload
		if err := json.Unmarshal(effect.Payload, &payload); err != nil {
			return err
		}
		return d.notifier.Notify(ctx, payload.UserID, payload.Kind, payload.Data)

	case model.SideEffectProvisionWorkspace:
		var payload model.ProvisionPayload
		if err := json.Unmarshal(effect.Payload, &payload); err != nil {
			return err
		}
		return d.provision(ctx, payload)

	case model.SideEffectGrantAccess:
		var payload model.GrantAccessPayload
		if err := json.Unmarshal(effect.Payload, &payload); err != nil {
			return err
		}
		project, err := d.repos.Projects.GetByID(ctx, payload.ProjectID)
		if err != nil {
			return err
		}
		// Without a workspace the participant is granted when it is provisioned.
		if project.WorkspaceRef == nil {
			return nil
		}
		return d.provisioner.GrantAccess(ctx, *project.WorkspaceRef, payload.UserID, payload.Role)

	default:
		return fmt.Errorf("unknown side effect kind %q", effect.Kind)
	}
}

func (d *Dispatcher) provision(ctx context.Context, payload model.ProvisionPayload) error {
	project, err := d.repos.Projects.GetByID(ctx, payload.ProjectID)
	if err != nil {
		return err
	}

	ref := ""
	if project.WorkspaceRef != nil {
		ref = *project.WorkspaceRef
	} else {
		ref, err = d.provisioner.ProvisionWorkspace(ctx, project.ID)
		if err != nil {
			return err
		}
		if err := d.repos.Projects.SetWorkspaceRef(ctx, project.ID, ref); err != nil {
			return err
		}
	}

	for _, member := range payload.Members {
		if err := d.provisioner.GrantAccess(ctx, ref, member, "organization"); err != nil {
			return err
		}
	}
	participants, err := d.repos.Directory.ListParticipants(ctx, project.ID)
	if err != nil {
		return err
	}
	for _, participant := range participants {
		if err := d.provisioner.GrantAccess(ctx, ref, participant.UserID, string(participant.Role)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) warn(id uuid.UUID, kind model.SideEffectKind, err error) *Warning {
	d.log.Warn().Err(err).Str("task_id", id.String()).Str("effect", string(kind)).Msg("side effect failed")
	return &Warning{
		Kind:    WarningKindDependency,
		TaskID:  id,
		Effect:  kind,
		Message: err.Error(),
	}
}
