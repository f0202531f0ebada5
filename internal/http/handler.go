package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/subcontract-billing/internal/http/middleware"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/service"
)

type Handler struct {
	svc *service.Service
	log zerolog.Logger
}

func NewHandler(svc *service.Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/projects", h.createProject)
	protected.POST("/projects/expire-sweep", h.expireSweep)
	protected.GET("/projects/:id", h.getProject)
	protected.GET("/projects/:id/bids", h.listBids)
	protected.POST("/projects/:id/bids", h.submitBid)
	protected.POST("/projects/:id/expire", h.expireProject)
	protected.POST("/projects/:id/reopen", h.reopenProject)
	protected.POST("/projects/:id/suspend", h.suspendProject)
	protected.POST("/projects/:id/archive", h.archiveProject)
	protected.POST("/projects/:id/evaluations", h.submitEvaluation)

	protected.POST("/bids/:id/accept", h.acceptBid)
	protected.POST("/bids/:id/reject", h.rejectBid)

	protected.POST("/contracts/:id/sign", h.signContract)
	protected.POST("/contracts/:id/decline", h.declineContract)
	protected.POST("/contracts/:id/support", h.toggleSupport)
	protected.POST("/contracts/:id/amount/propose", h.proposeAmount)
	protected.POST("/contracts/:id/amount/approve", h.approveAmount)
	protected.POST("/contracts/:id/amount/reject", h.rejectAmount)
	protected.POST("/contracts/:id/completion", h.reportCompletion)
	protected.POST("/contracts/:id/invoices", h.issueContractInvoice)

	protected.POST("/invoices/monthly", h.generateMonthly)
	protected.GET("/invoices/export", h.exportMonthly)
	protected.POST("/invoices/overdue-sweep", h.overdueSweep)
	protected.PATCH("/invoices/:id/status", h.updateInvoiceStatus)
	protected.GET("/invoices/:id/verify", h.verifyInvoice)
	protected.GET("/invoices/:id/pdf", h.invoicePDF)

	protected.POST("/side-effects/drain", h.drainSideEffects)
}

// principal returns the caller or writes 401.
func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody("Unauthorized", "UNAUTHORIZED", "missing principal"))
	}
	return principal, ok
}

// requireAdmin guards the operational endpoints.
func (h *Handler) requireAdmin(c *gin.Context) (model.Principal, bool) {
	principal, ok := h.principal(c)
	if !ok {
		return principal, false
	}
	if err := h.svc.Authorizer().Admin(principal).Err(); err != nil {
		h.handleError(c, err)
		return principal, false
	}
	return principal, true
}

func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		h.badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.badRequest(c, err.Error())
		return false
	}
	return true
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody(string(service.KindValidation), "VALIDATION_ERROR", message))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindInvalidState, service.KindConflict:
		status = http.StatusConflict
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindIntegrity:
		status = http.StatusUnprocessableEntity
	case service.KindDependency:
		status = http.StatusServiceUnavailable
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		message = "internal error"
	}
	c.JSON(status, errorBody(string(kind), service.Code(err), message))
}

func errorBody(kind, code, message string) gin.H {
	return gin.H{"error": gin.H{"kind": kind, "code": code, "message": message}}
}

func data(value any) gin.H {
	return gin.H{"data": value}
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseOptionalDate(raw *string) (*time.Time, bool) {
	if raw == nil {
		return nil, true
	}
	parsed, ok := parseDate(*raw)
	if !ok {
		return nil, false
	}
	return &parsed, true
}

func parseDirection(raw string) (model.InvoiceDirection, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(model.InvoiceDirectionContractor):
		return model.InvoiceDirectionContractor, true
	case string(model.InvoiceDirectionOperator):
		return model.InvoiceDirectionOperator, true
	default:
		return "", false
	}
}

func queryInt(c *gin.Context, key string) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	return value, err == nil
}
