package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yptunaskarya/perpus-api/internal/models"
	"github.com/yptunaskarya/perpus-api/pkg/response"
)

type auditReader interface {
	List(ctx context.Context, resource string, limit int) ([]models.AuditLog, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	audits auditReader
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audits auditReader) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// List godoc
// @Summary List recent audit records
// @Tags Audit
// @Produce json
// @Param resource query string false "Filter by resource"
// @Param limit query int false "Max records"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.audits.List(c.Request.Context(), c.Query("resource"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
