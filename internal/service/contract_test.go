package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/model"
)

func assertSignedInvariant(t *testing.T, c *model.Contract) {
	t.Helper()
	bothSigned := c.OrgSignedAt != nil && c.ContractorSignedAt != nil
	assert.Equal(t, bothSigned, c.Status == model.ContractStatusSigned,
		"status %s with org=%v contractor=%v", c.Status, c.OrgSignedAt, c.ContractorSignedAt)
}

func TestSign(t *testing.T) {
	t.Run("both sides sign", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		contractor := h.contractor("sato")
		contract := h.accept(h.bid(project, contractor, 1_000_000))

		out, err := h.svc.Sign(h.ctx, as(h.orgAdmin), contract.ID, SideOrganization)
		require.NoError(t, err)
		assert.Equal(t, model.ContractStatusOrgSigned, out.Value.Status)
		assertSignedInvariant(t, out.Value)
		assert.NotNil(t, h.notifier.find(contractor.ID, NotifySignatureRequested))

		out, err = h.svc.Sign(h.ctx, as(contractor), contract.ID, SideContractor)
		require.NoError(t, err)
		assert.Equal(t, model.ContractStatusSigned, out.Value.Status)
		assertSignedInvariant(t, out.Value)
		assert.Empty(t, out.Warnings)

		stored := h.reloadProject(project.ID)
		assert.Equal(t, model.ProjectStatusInProgress, stored.Status)
		require.NotNil(t, stored.WorkspaceRef)
		assert.Equal(t, []uuid.UUID{project.ID}, h.provisioner.provisioned)
		assert.Equal(t, "contractor", h.provisioner.granted[contractor.ID])
		assert.Equal(t, "organization", h.provisioner.granted[h.orgAdmin.ID])
		assert.NotNil(t, h.notifier.find(contractor.ID, NotifyContractSigned))
		assert.NotNil(t, h.notifier.find(h.orgAdmin.ID, NotifyContractSigned))
	})

	t.Run("same side twice", func(t *testing.T) {
		h := newHarness(t)
		contractor := h.contractor("sato")
		contract := h.accept(h.bid(h.project(1), contractor, 500_000))

		_, err := h.svc.Sign(h.ctx, as(contractor), contract.ID, SideContractor)
		require.NoError(t, err)
		_, err = h.svc.Sign(h.ctx, as(contractor), contract.ID, SideContractor)
		assert.ErrorIs(t, err, ErrAlreadySigned)
		assert.Equal(t, KindConflict, KindOf(err))
		assert.Equal(t, "ALREADY_SIGNED", Code(err))

		stored := h.reloadContract(contract.ID)
		assert.Equal(t, model.ContractStatusContractorSigned, stored.Status)
		assertSignedInvariant(t, stored)
	})

	t.Run("wrong actor", func(t *testing.T) {
		h := newHarness(t)
		contract := h.accept(h.bid(h.project(1), h.contractor("sato"), 500_000))

		_, err := h.svc.Sign(h.ctx, as(h.contractor("other")), contract.ID, SideContractor)
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = h.svc.Sign(h.ctx, as(h.member), contract.ID, SideOrganization)
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = h.svc.Sign(h.ctx, as(h.orgAdmin), contract.ID, SignSide("witness"))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("provisioning failure does not undo signing", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		contractor := h.contractor("sato")
		contract := h.accept(h.bid(project, contractor, 500_000))
		h.provisioner.fail = errUnavailable

		_, err := h.svc.Sign(h.ctx, as(h.orgAdmin), contract.ID, SideOrganization)
		require.NoError(t, err)
		out, err := h.svc.Sign(h.ctx, as(contractor), contract.ID, SideContractor)
		require.NoError(t, err)
		assert.Equal(t, model.ContractStatusSigned, out.Value.Status)

		require.Len(t, out.Warnings, 1)
		warning := out.Warnings[0]
		assert.Equal(t, effects.WarningKindDependency, warning.Kind)
		assert.Equal(t, model.SideEffectProvisionWorkspace, warning.Effect)

		task, err := h.repos.SideEffects.GetByID(h.ctx, warning.TaskID)
		require.NoError(t, err)
		assert.Equal(t, model.SideEffectFailed, task.Status)
		assert.Equal(t, 1, task.Attempts)
		assert.NotNil(t, task.NextAttemptAt)

		stored := h.reloadProject(project.ID)
		assert.Equal(t, model.ProjectStatusInProgress, stored.Status)
		assert.Nil(t, stored.WorkspaceRef)
	})

	t.Run("declined contract cannot be signed", func(t *testing.T) {
		h := newHarness(t)
		contractor := h.contractor("sato")
		contract := h.accept(h.bid(h.project(1), contractor, 500_000))
		_, err := h.svc.Decline(h.ctx, as(contractor), contract.ID, "busy")
		require.NoError(t, err)

		_, err = h.svc.Sign(h.ctx, as(h.orgAdmin), contract.ID, SideOrganization)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestDecline(t *testing.T) {
	t.Run("reverts the project to bidding", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		contractor := h.contractor("sato")
		bid := h.bid(project, contractor, 800_000)
		contract := h.accept(bid)
		_, err := h.svc.Sign(h.ctx, as(contractor), contract.ID, SideContractor)
		require.NoError(t, err)

		out, err := h.svc.Decline(h.ctx, as(contractor), contract.ID, "schedule conflict")
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{bid.ID}, out.Value.BidIDs)

		stored := h.reloadContract(contract.ID)
		assert.Equal(t, model.ContractStatusDeclined, stored.Status)
		require.NotNil(t, stored.DeclineReason)
		assert.Equal(t, "schedule conflict", *stored.DeclineReason)

		storedProject := h.reloadProject(project.ID)
		assert.Equal(t, model.ProjectStatusBidding, storedProject.Status)
		assert.Nil(t, storedProject.ContractorID)

		_, err = h.repos.Bids.GetByID(h.ctx, bid.ID)
		assert.Error(t, err, "the declining contractor's bid is purged")

		participants, err := h.repos.Directory.ListParticipants(h.ctx, project.ID)
		require.NoError(t, err)
		assert.Empty(t, participants)

		sent := h.notifier.find(h.orgAdmin.ID, NotifyContractDeclined)
		require.NotNil(t, sent)
		assert.Equal(t, "schedule conflict", sent.Data["reason"])
	})

	t.Run("keeps other contractors", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(2)
		first, second := h.contractor("first"), h.contractor("second")
		firstContract := h.accept(h.bid(project, first, 500_000))
		h.accept(h.bid(project, second, 600_000))

		_, err := h.svc.Decline(h.ctx, as(first), firstContract.ID, "injury")
		require.NoError(t, err)

		stored := h.reloadProject(project.ID)
		assert.Equal(t, model.ProjectStatusBidding, stored.Status)
		require.NotNil(t, stored.ContractorID)
		assert.Equal(t, second.ID, *stored.ContractorID)

		bids, err := h.repos.Bids.ListByProject(h.ctx, project.ID)
		require.NoError(t, err)
		require.Len(t, bids, 1)
		assert.Equal(t, second.ID, bids[0].ContractorID)
	})

	t.Run("illegal declines", func(t *testing.T) {
		h := newHarness(t)
		contractor := h.contractor("sato")
		contract := h.accept(h.bid(h.project(1), contractor, 500_000))

		_, err := h.svc.Decline(h.ctx, as(contractor), contract.ID, "")
		assert.ErrorIs(t, err, ErrValidation)
		_, err = h.svc.Decline(h.ctx, as(h.orgAdmin), contract.ID, "no")
		assert.ErrorIs(t, err, ErrForbidden)

		h.signBoth(contract, contractor)
		_, err = h.svc.Decline(h.ctx, as(contractor), contract.ID, "too late")
		assert.ErrorIs(t, err, ErrInvalidState)
		assertSignedInvariant(t, h.reloadContract(contract.ID))
	})
}

func TestReopen(t *testing.T) {
	t.Run("requires a passed deadline", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		_, err := h.svc.Reopen(h.ctx, as(h.orgAdmin), project.ID, ReopenTerms{})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("resets an expired project", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(2)
		contractor := h.contractor("sato")
		h.accept(h.bid(project, contractor, 500_000))
		h.bid(project, h.contractor("tanaka"), 550_000)

		h.now = project.BiddingDeadline.Add(time.Hour)
		_, err := h.svc.ExpireProject(h.ctx, as(h.orgAdmin), project.ID)
		require.NoError(t, err)

		deadline := h.now.Add(14 * 24 * time.Hour)
		start := deadline.Add(24 * time.Hour)
		end := start.Add(30 * 24 * time.Hour)
		budget := int64(2_400_000)
		required := 1
		out, err := h.svc.Reopen(h.ctx, as(h.orgAdmin), project.ID, ReopenTerms{
			BiddingDeadline:     &deadline,
			StartDate:           &start,
			EndDate:             &end,
			Budget:              &budget,
			RequiredContractors: &required,
		})
		require.NoError(t, err)
		assert.Len(t, out.Value.BidIDs, 2)
		assert.Len(t, out.Value.ContractIDs, 1)
		assert.Equal(t, []uuid.UUID{contractor.ID}, out.Value.ParticipantIDs)

		stored := h.reloadProject(project.ID)
		assert.Equal(t, model.ProjectStatusBidding, stored.Status)
		assert.Nil(t, stored.ContractorID)
		assert.EqualValues(t, 2_400_000, stored.Budget)
		assert.Equal(t, 1, stored.RequiredContractors)
		assert.True(t, stored.BiddingDeadline.Equal(deadline))

		bids, err := h.repos.Bids.ListByProject(h.ctx, project.ID)
		require.NoError(t, err)
		assert.Empty(t, bids)
		contracts, err := h.repos.Contracts.ListByProject(h.ctx, project.ID)
		require.NoError(t, err)
		assert.Empty(t, contracts)

		h.bid(project, contractor, 450_000)
	})

	t.Run("validates new terms", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		h.now = project.BiddingDeadline.Add(time.Hour)

		deadline := h.now.Add(48 * time.Hour)
		early := deadline.Add(-time.Hour)
		_, err := h.svc.Reopen(h.ctx, as(h.orgAdmin), project.ID, ReopenTerms{
			BiddingDeadline: &deadline,
			StartDate:       &early,
		})
		assert.ErrorIs(t, err, ErrValidation)

		start := deadline.Add(time.Hour)
		end := start.Add(-time.Minute)
		_, err = h.svc.Reopen(h.ctx, as(h.orgAdmin), project.ID, ReopenTerms{
			BiddingDeadline: &deadline,
			StartDate:       &start,
			EndDate:         &end,
		})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, model.ProjectStatusBidding, h.reloadProject(project.ID).Status)
	})

	t.Run("requires a new future deadline", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		h.now = project.BiddingDeadline.Add(time.Hour)
		_, err := h.svc.ExpireProject(h.ctx, as(h.orgAdmin), project.ID)
		require.NoError(t, err)

		_, err = h.svc.Reopen(h.ctx, as(h.orgAdmin), project.ID, ReopenTerms{})
		assert.ErrorIs(t, err, ErrValidation)

		past := h.now.Add(-time.Minute)
		_, err = h.svc.Reopen(h.ctx, as(h.orgAdmin), project.ID, ReopenTerms{BiddingDeadline: &past})
		assert.ErrorIs(t, err, ErrValidation)

		stored := h.reloadProject(project.ID)
		assert.Equal(t, model.ProjectStatusExpired, stored.Status)
		assert.True(t, stored.BiddingDeadline.Equal(project.BiddingDeadline))
	})

	t.Run("blocked once work started", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		contractor := h.contractor("sato")
		h.signBoth(h.accept(h.bid(project, contractor, 500_000)), contractor)

		h.now = project.BiddingDeadline.Add(time.Hour)
		_, err := h.svc.Reopen(h.ctx, as(h.orgAdmin), project.ID, ReopenTerms{})
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestToggleSupport(t *testing.T) {
	h := newHarness(t)
	first := h.user("support1@platform.test", model.UserRoleSupport, 0)
	second := h.user("support2@platform.test", model.UserRoleSupport, 0)
	project := h.project(1)
	contractor := h.contractor("sato")
	contract := h.accept(h.bid(project, contractor, 500_000))

	_, err := h.svc.ToggleSupport(h.ctx, as(h.orgAdmin), contract.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	out, err := h.svc.ToggleSupport(h.ctx, as(contractor), contract.ID, true)
	require.NoError(t, err)
	assert.True(t, out.Value.Contract.SupportEnabled)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, out.Value.AddedSupport)

	out, err = h.svc.ToggleSupport(h.ctx, as(contractor), contract.ID, true)
	require.NoError(t, err)
	assert.Empty(t, out.Value.AddedSupport)

	participants, err := h.repos.Directory.ListParticipants(h.ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 3)

	h.signBoth(contract, contractor)
	assert.Equal(t, "support", h.provisioner.granted[first.ID])

	_, err = h.svc.ReportCompletion(h.ctx, as(h.orgAdmin), contract.ID, date(2025, 3, 1), "")
	require.NoError(t, err)
	_, err = h.svc.ToggleSupport(h.ctx, as(contractor), contract.ID, false)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestNegotiation(t *testing.T) {
	h := newHarness(t)
	contractor := h.contractor("sato")
	contract := h.accept(h.bid(h.project(1), contractor, 500_000))

	out, err := h.svc.ProposeAmount(h.ctx, as(contractor), contract.ID, 560_000)
	require.NoError(t, err)
	require.NotNil(t, out.Value.ProposedAmount)
	assert.NotNil(t, h.notifier.find(h.orgAdmin.ID, NotifyAmountProposed))

	_, err = h.svc.Sign(h.ctx, as(h.orgAdmin), contract.ID, SideOrganization)
	assert.ErrorIs(t, err, ErrInvalidState, "signing waits for the proposal")

	out, err = h.svc.RejectAmount(h.ctx, as(h.orgAdmin), contract.ID, "over budget")
	require.NoError(t, err)
	assert.Nil(t, out.Value.ProposedAmount)
	assert.EqualValues(t, 500_000, out.Value.Amount)

	_, err = h.svc.ApproveAmount(h.ctx, as(h.orgAdmin), contract.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = h.svc.ProposeAmount(h.ctx, as(contractor), contract.ID, 530_000)
	require.NoError(t, err)
	out, err = h.svc.ApproveAmount(h.ctx, as(h.orgAdmin), contract.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 530_000, out.Value.Amount)
	assert.Nil(t, out.Value.ProposedAmount)

	_, err = h.svc.Sign(h.ctx, as(h.orgAdmin), contract.ID, SideOrganization)
	require.NoError(t, err)
	_, err = h.svc.ProposeAmount(h.ctx, as(contractor), contract.ID, 900_000)
	assert.ErrorIs(t, err, ErrInvalidState)
}
