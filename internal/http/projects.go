package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nurpe/subcontract-billing/internal/service"
)

type createProjectRequest struct {
	OrganizationID      string `json:"organization_id" binding:"required"`
	Title               string `json:"title" binding:"required"`
	Budget              int64  `json:"budget" binding:"required"`
	RequiredContractors int    `json:"required_contractors"`
	BiddingDeadline     string `json:"bidding_deadline" binding:"required"`
	StartDate           string `json:"start_date" binding:"required"`
	EndDate             string `json:"end_date" binding:"required"`
	RequiredMemberLevel int    `json:"required_member_level"`
}

func (h *Handler) createProject(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createProjectRequest
	if !h.bind(c, &req) {
		return
	}
	orgID, err := uuid.Parse(strings.TrimSpace(req.OrganizationID))
	if err != nil {
		h.badRequest(c, "invalid organization_id")
		return
	}
	deadline, ok := parseDate(req.BiddingDeadline)
	if !ok {
		h.badRequest(c, "invalid bidding_deadline")
		return
	}
	start, ok := parseDate(req.StartDate)
	if !ok {
		h.badRequest(c, "invalid start_date")
		return
	}
	end, ok := parseDate(req.EndDate)
	if !ok {
		h.badRequest(c, "invalid end_date")
		return
	}
	if req.RequiredContractors == 0 {
		req.RequiredContractors = 1
	}

	project, err := h.svc.CreateProject(c.Request.Context(), principal, orgID, service.ProjectTerms{
		Title:               req.Title,
		Budget:              req.Budget,
		RequiredContractors: req.RequiredContractors,
		BiddingDeadline:     deadline,
		StartDate:           start,
		EndDate:             end,
		RequiredMemberLevel: req.RequiredMemberLevel,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, data(project))
}

func (h *Handler) getProject(c *gin.Context) {
	if _, ok := h.principal(c); !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	project, err := h.svc.GetProject(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, data(project))
}

func (h *Handler) listBids(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	bids, err := h.svc.ListBids(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, data(bids))
}

type amountRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (h *Handler) submitBid(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req amountRequest
	if !h.bind(c, &req) {
		return
	}
	out, err := h.svc.SubmitBid(c.Request.Context(), principal, id, req.Amount)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) expireProject(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	result, err := h.svc.ExpireProject(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, data(result))
}

func (h *Handler) expireSweep(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}
	results, err := h.svc.ExpireSweep(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, data(results))
}

type reopenRequest struct {
	BiddingDeadline     *string `json:"bidding_deadline"`
	StartDate           *string `json:"start_date"`
	EndDate             *string `json:"end_date"`
	Budget              *int64  `json:"budget"`
	RequiredContractors *int    `json:"required_contractors"`
}

func (h *Handler) reopenProject(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req reopenRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	terms := service.ReopenTerms{Budget: req.Budget, RequiredContractors: req.RequiredContractors}
	if terms.BiddingDeadline, ok = parseOptionalDate(req.BiddingDeadline); !ok {
		h.badRequest(c, "invalid bidding_deadline")
		return
	}
	if terms.StartDate, ok = parseOptionalDate(req.StartDate); !ok {
		h.badRequest(c, "invalid start_date")
		return
	}
	if terms.EndDate, ok = parseOptionalDate(req.EndDate); !ok {
		h.badRequest(c, "invalid end_date")
		return
	}

	out, err := h.svc.Reopen(c.Request.Context(), principal, id, terms)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) suspendProject(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	out, err := h.svc.SuspendProject(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) archiveProject(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	out, err := h.svc.ArchiveProject(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type evaluationRequest struct {
	ContractorID  string `json:"contractor_id"`
	Quality       int    `json:"quality" binding:"required"`
	Schedule      int    `json:"schedule" binding:"required"`
	Communication int    `json:"communication" binding:"required"`
	Safety        int    `json:"safety" binding:"required"`
	Cleanliness   int    `json:"cleanliness" binding:"required"`
	Comment       string `json:"comment"`
}

func (h *Handler) submitEvaluation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req evaluationRequest
	if !h.bind(c, &req) {
		return
	}
	input := service.EvaluationInput{
		Quality:       req.Quality,
		Schedule:      req.Schedule,
		Communication: req.Communication,
		Safety:        req.Safety,
		Cleanliness:   req.Cleanliness,
		Comment:       req.Comment,
	}
	if raw := strings.TrimSpace(req.ContractorID); raw != "" {
		contractorID, err := uuid.Parse(raw)
		if err != nil {
			h.badRequest(c, "invalid contractor_id")
			return
		}
		input.ContractorID = contractorID
	}

	out, err := h.svc.SubmitEvaluation(c.Request.Context(), principal, id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) acceptBid(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	out, err := h.svc.AcceptBid(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) rejectBid(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.bind(c, &req) {
		return
	}
	out, err := h.svc.RejectBid(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
