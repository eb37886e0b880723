package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yptunaskarya/perpus-api/internal/middleware"
	"github.com/yptunaskarya/perpus-api/internal/service"
	"github.com/yptunaskarya/perpus-api/pkg/response"
)

// DashboardHandler exposes the landing-page counters.
type DashboardHandler struct {
	dashboard *service.DashboardService
	metrics   *service.MetricsService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService, metrics *service.MetricsService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, metrics: metrics}
}

// Summary godoc
// @Summary Dashboard counters
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, hit, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// SystemMetrics godoc
// @Summary Runtime metrics snapshot
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/metrics [get]
func (h *DashboardHandler) SystemMetrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
