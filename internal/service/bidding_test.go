package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/subcontract-billing/internal/model"
)

func TestSubmitBid(t *testing.T) {
	t.Run("deadline instant is still open", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(2)
		onTime, late := h.contractor("ontime"), h.contractor("late")

		h.now = project.BiddingDeadline
		out, err := h.svc.SubmitBid(h.ctx, as(onTime), project.ID, 900_000)
		require.NoError(t, err)
		assert.Equal(t, model.BidStatusSubmitted, out.Value.Status)

		h.now = project.BiddingDeadline.Add(time.Nanosecond)
		_, err = h.svc.SubmitBid(h.ctx, as(late), project.ID, 900_000)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("rejects invalid bids", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		contractor := h.contractor("sato")

		_, err := h.svc.SubmitBid(h.ctx, as(contractor), project.ID, 0)
		assert.ErrorIs(t, err, ErrValidation)

		_, err = h.svc.SubmitBid(h.ctx, as(h.orgAdmin), project.ID, 100)
		assert.ErrorIs(t, err, ErrForbidden)

		h.bid(project, contractor, 500_000)
		_, err = h.svc.SubmitBid(h.ctx, as(contractor), project.ID, 400_000)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("enforces member level", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		require.NoError(t, h.repos.Projects.Update(h.ctx, project.ID, map[string]any{"required_member_level": 3}))

		_, err := h.svc.SubmitBid(h.ctx, as(h.contractor("junior")), project.ID, 100_000)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("notifies organization admins", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		h.bid(project, h.contractor("sato"), 700_000)
		assert.NotNil(t, h.notifier.find(h.orgAdmin.ID, NotifyBidSubmitted))
	})
}

func TestAcceptBid(t *testing.T) {
	t.Run("creates a pending contract", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		contractor := h.contractor("sato")
		bid := h.bid(project, contractor, 1_000_000)

		out, err := h.svc.AcceptBid(h.ctx, as(h.orgAdmin), bid.ID)
		require.NoError(t, err)
		contract := out.Value
		assert.Equal(t, model.ContractStatusPendingContractor, contract.Status)
		assert.EqualValues(t, 1_000_000, contract.Amount)
		assert.Equal(t, contractor.ID, contract.ContractorID)
		assert.Nil(t, contract.OrgSignedAt)
		assert.Nil(t, contract.ContractorSignedAt)

		stored := h.reloadProject(project.ID)
		assert.Equal(t, model.ProjectStatusNegotiation, stored.Status)
		require.NotNil(t, stored.ContractorID)
		assert.Equal(t, contractor.ID, *stored.ContractorID)
		assert.NotNil(t, h.notifier.find(contractor.ID, NotifyBidAccepted))
	})

	t.Run("keeps bidding until every slot is filled", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(2)
		first := h.contractor("first")
		h.accept(h.bid(project, first, 500_000))
		assert.Equal(t, model.ProjectStatusBidding, h.reloadProject(project.ID).Status)

		h.accept(h.bid(project, h.contractor("second"), 600_000))
		stored := h.reloadProject(project.ID)
		assert.Equal(t, model.ProjectStatusNegotiation, stored.Status)
		assert.Equal(t, first.ID, *stored.ContractorID)
	})

	t.Run("conflicts when slots are full", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		first := h.bid(project, h.contractor("first"), 500_000)
		extra := h.bid(project, h.contractor("second"), 450_000)
		h.accept(first)
		require.Equal(t, model.ProjectStatusNegotiation, h.reloadProject(project.ID).Status)

		_, err := h.svc.AcceptBid(h.ctx, as(h.orgAdmin), extra.ID)
		assert.ErrorIs(t, err, ErrSlotsFilled)
		assert.Equal(t, KindConflict, KindOf(err))

		stored, err := h.repos.Bids.GetByID(h.ctx, extra.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BidStatusSubmitted, stored.Status)
	})

	t.Run("rejects acceptance on a suspended project", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(2)
		bid := h.bid(project, h.contractor("first"), 500_000)
		_, err := h.svc.SuspendProject(h.ctx, as(h.orgAdmin), project.ID)
		require.NoError(t, err)

		_, err = h.svc.AcceptBid(h.ctx, as(h.orgAdmin), bid.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("requires organization admin", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(1)
		bid := h.bid(project, h.contractor("sato"), 500_000)

		_, err := h.svc.AcceptBid(h.ctx, as(h.member), bid.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestRejectBid(t *testing.T) {
	h := newHarness(t)
	project := h.project(1)
	contractor := h.contractor("sato")
	bid := h.bid(project, contractor, 500_000)

	_, err := h.svc.RejectBid(h.ctx, as(h.orgAdmin), bid.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	out, err := h.svc.RejectBid(h.ctx, as(h.orgAdmin), bid.ID, "price too high")
	require.NoError(t, err)
	assert.Equal(t, model.BidStatusRejected, out.Value.Status)
	require.NotNil(t, out.Value.RejectionReason)
	assert.Equal(t, "price too high", *out.Value.RejectionReason)

	sent := h.notifier.find(contractor.ID, NotifyBidRejected)
	require.NotNil(t, sent)
	assert.Equal(t, "price too high", sent.Data["reason"])

	_, err = h.svc.RejectBid(h.ctx, as(h.orgAdmin), bid.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExpireProject(t *testing.T) {
	t.Run("no applicants", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(2)

		_, err := h.svc.ExpireProject(h.ctx, as(h.orgAdmin), project.ID)
		assert.ErrorIs(t, err, ErrInvalidState, "deadline has not passed yet")

		h.now = project.BiddingDeadline.Add(time.Minute)
		result, err := h.svc.ExpireProject(h.ctx, as(h.orgAdmin), project.ID)
		require.NoError(t, err)
		assert.Equal(t, ExpiryExpired, result.Outcome)
		require.NotNil(t, result.Advisory)
		assert.Equal(t, AdvisoryNoApplicants, result.Advisory.Tier)
		assert.Equal(t, 2, result.Advisory.Shortfall)
		assert.Equal(t, model.ProjectStatusExpired, h.reloadProject(project.ID).Status)

		sent := h.notifier.find(h.orgAdmin.ID, NotifyProjectExpired)
		require.NotNil(t, sent)
		assert.Equal(t, string(AdvisoryNoApplicants), sent.Data["tier"])
	})

	t.Run("shortfall with applicants", func(t *testing.T) {
		h := newHarness(t)
		project := h.project(3)
		h.accept(h.bid(project, h.contractor("a"), 300_000))
		h.bid(project, h.contractor("b"), 320_000)

		h.now = project.BiddingDeadline.Add(time.Hour)
		result, err := h.svc.ExpireProject(h.ctx, as(h.orgAdmin), project.ID)
		require.NoError(t, err)
		assert.Equal(t, AdvisoryShortFew, result.Advisory.Tier)
	})
}

func TestBuildAdvisory(t *testing.T) {
	cases := []struct {
		bids      int64
		shortfall int
		want      AdvisoryTier
	}{
		{0, 2, AdvisoryNoApplicants},
		{0, 1, AdvisoryNoApplicants},
		{3, 1, AdvisoryShortOne},
		{1, 2, AdvisoryShortFew},
		{1, 3, AdvisoryShortFew},
		{1, 4, AdvisoryShortMany},
		{2, 9, AdvisoryShortMany},
	}
	for _, tc := range cases {
		advisory := BuildAdvisory(tc.bids, tc.shortfall)
		assert.Equal(t, tc.want, advisory.Tier, "bids=%d shortfall=%d", tc.bids, tc.shortfall)
		assert.NotEmpty(t, advisory.Message)
	}
}

func TestExpireSweep(t *testing.T) {
	h := newHarness(t)
	stale := h.project(1)
	staffed := h.project(1)
	h.accept(h.bid(staffed, h.contractor("sato"), 500_000))
	h.now = h.now.Add(7 * 24 * time.Hour)
	fresh := h.project(1)

	results, err := h.svc.ExpireSweep(h.ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, stale.ID, results[0].ProjectID)
	assert.Equal(t, ExpiryExpired, results[0].Outcome)

	assert.Equal(t, model.ProjectStatusNegotiation, h.reloadProject(staffed.ID).Status)
	assert.Equal(t, model.ProjectStatusBidding, h.reloadProject(fresh.ID).Status)

	again, err := h.svc.ExpireSweep(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}
