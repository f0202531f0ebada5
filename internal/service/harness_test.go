package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nurpe/subcontract-billing/internal/config"
	"github.com/nurpe/subcontract-billing/internal/db/dbtest"
	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/repository"
)

type sentNotification struct {
	UserID uuid.UUID
	Kind   string
	Data   map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	fail error
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, kind string, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, Data: payload})
	return nil
}

func (n *recordingNotifier) find(userID uuid.UUID, kind string) *sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.sent {
		if n.sent[i].UserID == userID && n.sent[i].Kind == kind {
			return &n.sent[i]
		}
	}
	return nil
}

type fakeProvisioner struct {
	mu          sync.Mutex
	provisioned []uuid.UUID
	granted     map[uuid.UUID]string
	fail        error
}

func (p *fakeProvisioner) ProvisionWorkspace(_ context.Context, projectID uuid.UUID) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return "", p.fail
	}
	p.provisioned = append(p.provisioned, projectID)
	return "ws-" + projectID.String()[:8], nil
}

func (p *fakeProvisioner) GrantAccess(_ context.Context, _ string, userID uuid.UUID, role string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.granted == nil {
		p.granted = make(map[uuid.UUID]string)
	}
	p.granted[userID] = role
	return nil
}

var errUnavailable = errors.New("collaboration service unavailable")

type harness struct {
	t           *testing.T
	ctx         context.Context
	now         time.Time
	db          *gorm.DB
	svc         *Service
	repos       *repository.Repositories
	cfg         *config.Config
	notifier    *recordingNotifier
	provisioner *fakeProvisioner

	org      *model.Organization
	orgAdmin *model.User
	member   *model.User
	platform *model.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	h := &harness{
		t:           t,
		ctx:         context.Background(),
		now:         time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
		db:          db,
		repos:       repository.New(db),
		cfg:         config.Defaults(),
		notifier:    &recordingNotifier{},
		provisioner: &fakeProvisioner{},
	}
	dispatcher := effects.NewDispatcher(h.repos, h.provisioner, h.notifier, effects.NewMemoryStore(),
		effects.Options{Timeout: time.Second, Workers: 2}, zerolog.Nop())
	h.svc = New(h.repos, dispatcher, nil, nil, h.cfg, zerolog.Nop()).
		WithClock(func() time.Time { return h.now })

	h.org = &model.Organization{Name: "Kanto Civil"}
	require.NoError(t, h.repos.Directory.CreateOrganization(h.ctx, h.org))
	h.orgAdmin = h.user("admin@kanto.test", model.UserRoleOrgMember, 0)
	h.member = h.user("member@kanto.test", model.UserRoleOrgMember, 0)
	h.platform = h.user("ops@platform.test", model.UserRoleAdmin, 0)
	require.NoError(t, h.repos.Directory.AddMembership(h.ctx, &model.Membership{
		OrganizationID: h.org.ID, UserID: h.orgAdmin.ID, Role: model.MembershipRoleAdmin,
	}))
	require.NoError(t, h.repos.Directory.AddMembership(h.ctx, &model.Membership{
		OrganizationID: h.org.ID, UserID: h.member.ID, Role: model.MembershipRoleMember,
	}))
	return h
}

func (h *harness) user(email string, role model.UserRole, level int) *model.User {
	h.t.Helper()
	user := &model.User{Email: email, Name: email, Role: role, MemberLevel: level}
	require.NoError(h.t, h.repos.Directory.CreateUser(h.ctx, user))
	return user
}

func (h *harness) contractor(name string) *model.User {
	return h.user(name+"@contractor.test", model.UserRoleContractor, 1)
}

func as(user *model.User) model.Principal {
	return model.Principal{UserID: user.ID, Email: user.Email, Role: user.Role}
}

// project creates a bidding project whose deadline is one day after now.
func (h *harness) project(required int) *model.Project {
	h.t.Helper()
	deadline := h.now.Add(24 * time.Hour)
	project, err := h.svc.CreateProject(h.ctx, as(h.orgAdmin), h.org.ID, ProjectTerms{
		Title:               "Drainage works",
		Budget:              2_000_000,
		RequiredContractors: required,
		BiddingDeadline:     deadline,
		StartDate:           deadline.Add(48 * time.Hour),
		EndDate:             deadline.Add(30 * 24 * time.Hour),
	})
	require.NoError(h.t, err)
	return project
}

func (h *harness) bid(project *model.Project, contractor *model.User, amount int64) *model.Bid {
	h.t.Helper()
	out, err := h.svc.SubmitBid(h.ctx, as(contractor), project.ID, amount)
	require.NoError(h.t, err)
	return out.Value
}

func (h *harness) accept(bid *model.Bid) *model.Contract {
	h.t.Helper()
	out, err := h.svc.AcceptBid(h.ctx, as(h.orgAdmin), bid.ID)
	require.NoError(h.t, err)
	return out.Value
}

func (h *harness) signBoth(contract *model.Contract, contractor *model.User) *model.Contract {
	h.t.Helper()
	_, err := h.svc.Sign(h.ctx, as(h.orgAdmin), contract.ID, SideOrganization)
	require.NoError(h.t, err)
	out, err := h.svc.Sign(h.ctx, as(contractor), contract.ID, SideContractor)
	require.NoError(h.t, err)
	return out.Value
}

// completed runs a contract from bid to completion report.
func (h *harness) completed(contractor *model.User, amount int64, support bool, completedOn time.Time) *model.Contract {
	h.t.Helper()
	project := h.project(1)
	contract := h.accept(h.bid(project, contractor, amount))
	if support {
		_, err := h.svc.ToggleSupport(h.ctx, as(contractor), contract.ID, true)
		require.NoError(h.t, err)
	}
	contract = h.signBoth(contract, contractor)
	_, err := h.svc.ReportCompletion(h.ctx, as(h.orgAdmin), contract.ID, completedOn, "")
	require.NoError(h.t, err)
	return contract
}

func (h *harness) reloadProject(id uuid.UUID) *model.Project {
	h.t.Helper()
	project, err := h.repos.Projects.GetByID(h.ctx, id)
	require.NoError(h.t, err)
	return project
}

func (h *harness) reloadContract(id uuid.UUID) *model.Contract {
	h.t.Helper()
	contract, err := h.repos.Contracts.GetByID(h.ctx, id)
	require.NoError(h.t, err)
	return contract
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
