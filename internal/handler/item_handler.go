package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yptunaskarya/perpus-api/internal/service"
	"github.com/yptunaskarya/perpus-api/pkg/response"
)

// ItemHandler exposes exemplar lookup endpoints for scanners.
type ItemHandler struct {
	items *service.ItemService
}

// NewItemHandler constructs ItemHandler.
func NewItemHandler(items *service.ItemService) *ItemHandler {
	return &ItemHandler{items: items}
}

// Lookup godoc
// @Summary Resolve a scan code to an exemplar
// @Tags Items
// @Produce json
// @Param code query string true "Unique code or exemplar id"
// @Success 200 {object} response.Envelope
// @Router /items/lookup [get]
func (h *ItemHandler) Lookup(c *gin.Context) {
	item, err := h.items.Lookup(c.Request.Context(), strings.TrimSpace(c.Query("code")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
