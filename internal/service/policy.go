package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nurpe/subcontract-billing/internal/config"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

// Decision is the outcome of a capability check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Err converts a denied decision into ErrForbidden.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
}

// Authorizer holds one capability check per role.
type Authorizer struct {
	directory *repository.DirectoryRepository
	cfg       *config.Config
}

func NewAuthorizer(directory *repository.DirectoryRepository, cfg *config.Config) *Authorizer {
	return &Authorizer{directory: directory, cfg: cfg}
}

// Admin allows platform admins and allowlisted emails.
func (a *Authorizer) Admin(actor model.Principal) Decision {
	if actor.IsPlatformAdmin() || a.cfg.IsAdminEmail(actor.Email) {
		return allow()
	}
	return deny("platform admin required")
}

// OrgAdmin allows admins of the organization and platform admins.
func (a *Authorizer) OrgAdmin(ctx context.Context, actor model.Principal, orgID uuid.UUID) (Decision, error) {
	if a.Admin(actor).Allowed {
		return allow(), nil
	}
	membership, err := a.directory.GetMembership(ctx, orgID, actor.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return deny("not a member of the organization"), nil
		}
		return Decision{}, err
	}
	if membership.Role != model.MembershipRoleAdmin {
		return deny("organization admin required"), nil
	}
	return allow(), nil
}

// OrgMember allows any member of the organization and platform admins.
func (a *Authorizer) OrgMember(ctx context.Context, actor model.Principal, orgID uuid.UUID) (Decision, error) {
	if a.Admin(actor).Allowed {
		return allow(), nil
	}
	_, err := a.directory.GetMembership(ctx, orgID, actor.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return deny("not a member of the organization"), nil
		}
		return Decision{}, err
	}
	return allow(), nil
}

// Contractor allows only the contractor a resource is assigned to.
func (a *Authorizer) Contractor(actor model.Principal, contractorID uuid.UUID) Decision {
	if !actor.IsContractor() {
		return deny("contractor role required")
	}
	if actor.UserID != contractorID {
		return deny("not the assigned contractor")
	}
	return allow()
}

func (a *Authorizer) requireOrgAdmin(ctx context.Context, actor model.Principal, orgID uuid.UUID) error {
	decision, err := a.OrgAdmin(ctx, actor, orgID)
	if err != nil {
		return err
	}
	return decision.Err()
}

func (a *Authorizer) requireOrgMember(ctx context.Context, actor model.Principal, orgID uuid.UUID) error {
	decision, err := a.OrgMember(ctx, actor, orgID)
	if err != nil {
		return err
	}
	return decision.Err()
}
