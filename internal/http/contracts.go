package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/subcontract-billing/internal/service"
)

type signRequest struct {
	Side string `json:"side" binding:"required"`
}

func (h *Handler) signContract(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req signRequest
	if !h.bind(c, &req) {
		return
	}
	out, err := h.svc.Sign(c.Request.Context(), principal, id, service.SignSide(req.Side))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) declineContract(c *gin.Context) {
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
	out, err := h.svc.Decline(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type supportRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *Handler) toggleSupport(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req supportRequest
	if !h.bind(c, &req) {
		return
	}
	out, err := h.svc.ToggleSupport(c.Request.Context(), principal, id, *req.Enabled)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) proposeAmount(c *gin.Context) {
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
	out, err := h.svc.ProposeAmount(c.Request.Context(), principal, id, req.Amount)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) approveAmount(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	out, err := h.svc.ApproveAmount(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) rejectAmount(c *gin.Context) {
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
	out, err := h.svc.RejectAmount(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type completionRequest struct {
	CompletionDate string `json:"completion_date" binding:"required"`
	Note           string `json:"note"`
}

func (h *Handler) reportCompletion(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req completionRequest
	if !h.bind(c, &req) {
		return
	}
	completedOn, ok := parseDate(req.CompletionDate)
	if !ok {
		h.badRequest(c, "invalid completion_date")
		return
	}
	out, err := h.svc.ReportCompletion(c.Request.Context(), principal, id, completedOn, req.Note)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

type issueInvoiceRequest struct {
	Direction string `json:"direction" binding:"required"`
}

func (h *Handler) issueContractInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req issueInvoiceRequest
	if !h.bind(c, &req) {
		return
	}
	direction, ok := parseDirection(req.Direction)
	if !ok {
		h.badRequest(c, "direction must be contractor or operator")
		return
	}
	out, err := h.svc.IssueContractInvoice(c.Request.Context(), principal, id, direction)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}
