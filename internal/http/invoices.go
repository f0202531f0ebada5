package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/service"
)

type monthlyRequest struct {
	Year      int    `json:"year" binding:"required"`
	Month     int    `json:"month" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

func (h *Handler) generateMonthly(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}
	var req monthlyRequest
	if !h.bind(c, &req) {
		return
	}
	direction, ok := parseDirection(req.Direction)
	if !ok {
		h.badRequest(c, "direction must be contractor or operator")
		return
	}
	result, err := h.svc.GenerateMonthly(c.Request.Context(), req.Year, req.Month, direction)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, data(result))
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateInvoiceStatus(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if !h.bind(c, &req) {
		return
	}
	out, err := h.svc.UpdateInvoiceStatus(c.Request.Context(), principal, id, model.InvoiceStatus(req.Status))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) verifyInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	verification, err := h.svc.VerifyInvoice(c.Request.Context(), principal, id)
	if err != nil && verification != nil && service.KindOf(err) == service.KindIntegrity {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"data":  verification,
			"error": gin.H{"kind": service.KindIntegrity, "code": service.Code(err), "message": err.Error()},
		})
		return
	}
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, data(verification))
}

func (h *Handler) invoicePDF(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doc, err := h.svc.RenderInvoicePDF(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+doc.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}

func (h *Handler) exportMonthly(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	year, ok := queryInt(c, "year")
	if !ok {
		h.badRequest(c, "invalid year")
		return
	}
	month, ok := queryInt(c, "month")
	if !ok {
		h.badRequest(c, "invalid month")
		return
	}
	direction, ok := parseDirection(c.Query("direction"))
	if !ok {
		h.badRequest(c, "direction must be contractor or operator")
		return
	}

	doc, err := h.svc.ExportMonthly(c.Request.Context(), principal, year, month, direction)
	if err != nil {
		h.handleError(c, err)
		return
	}
	const xlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	c.Header("Content-Disposition", "attachment; filename=\""+doc.FileName+"\"")
	c.Data(http.StatusOK, xlsx, doc.Content)
}

func (h *Handler) overdueSweep(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}
	changes, err := h.svc.OverdueSweep(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, data(changes))
}

type drainRequest struct {
	Limit int `json:"limit"`
}

func (h *Handler) drainSideEffects(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}
	var req drainRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	report, err := h.svc.DrainSideEffects(c.Request.Context(), req.Limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, data(report))
}
