package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/service"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
	"github.com/yptunaskarya/perpus-api/pkg/response"
)

// InventoryHandler exposes consumable-stock endpoints.
type InventoryHandler struct {
	inventory *service.InventoryService
}

// NewInventoryHandler constructs InventoryHandler.
func NewInventoryHandler(inventory *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// List godoc
// @Summary List consumables
// @Tags Inventory
// @Produce json
// @Param category query string false "Filter by category"
// @Param search query string false "Search by name"
// @Success 200 {object} response.Envelope
// @Router /inventory [get]
func (h *InventoryHandler) List(c *gin.Context) {
	items, err := h.inventory.List(c.Request.Context(), c.Query("category"), strings.TrimSpace(c.Query("search")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get consumable detail
// @Tags Inventory
// @Produce json
// @Param id path string true "Inventory ID"
// @Success 200 {object} response.Envelope
// @Router /inventory/{id} [get]
func (h *InventoryHandler) Get(c *gin.Context) {
	item, err := h.inventory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create consumable
// @Tags Inventory
// @Accept json
// @Produce json
// @Param payload body dto.CreateInventoryRequest true "Inventory payload"
// @Success 201 {object} response.Envelope
// @Router /inventory [post]
func (h *InventoryHandler) Create(c *gin.Context) {
	var req dto.CreateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.inventory.Create(c.Request.Context(), req, h.actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update consumable
// @Tags Inventory
// @Accept json
// @Produce json
// @Param id path string true "Inventory ID"
// @Param payload body dto.UpdateInventoryRequest true "Inventory payload"
// @Success 200 {object} response.Envelope
// @Router /inventory/{id} [put]
func (h *InventoryHandler) Update(c *gin.Context) {
	var req dto.UpdateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.inventory.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete consumable
// @Tags Inventory
// @Param id path string true "Inventory ID"
// @Success 204
// @Router /inventory/{id} [delete]
func (h *InventoryHandler) Delete(c *gin.Context) {
	if err := h.inventory.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Move godoc
// @Summary Apply a stock movement
// @Tags Inventory
// @Accept json
// @Produce json
// @Param id path string true "Inventory ID"
// @Param payload body dto.MovementRequest true "Movement payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /inventory/{id}/movements [post]
func (h *InventoryHandler) Move(c *gin.Context) {
	var req dto.MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	res, err := h.inventory.Move(c.Request.Context(), c.Param("id"), req, h.actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Logs godoc
// @Summary Movement history
// @Tags Inventory
// @Produce json
// @Param id path string true "Inventory ID"
// @Success 200 {object} response.Envelope
// @Router /inventory/{id}/logs [get]
func (h *InventoryHandler) Logs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.inventory.Logs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

func (h *InventoryHandler) actorID(c *gin.Context) *string {
	if claims := claimsFromContext(c); claims != nil {
		id := claims.UserID
		return &id
	}
	return nil
}
