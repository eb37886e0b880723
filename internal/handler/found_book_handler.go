package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	"github.com/yptunaskarya/perpus-api/internal/service"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
	"github.com/yptunaskarya/perpus-api/pkg/response"
)

// FoundBookHandler exposes lost-and-found endpoints.
type FoundBookHandler struct {
	foundBooks *service.FoundBookService
}

// NewFoundBookHandler constructs FoundBookHandler.
func NewFoundBookHandler(foundBooks *service.FoundBookService) *FoundBookHandler {
	return &FoundBookHandler{foundBooks: foundBooks}
}

// Record godoc
// @Summary Record a recovered exemplar
// @Tags FoundBooks
// @Accept json
// @Produce json
// @Param payload body dto.FoundBookRequest true "Found-book payload"
// @Success 201 {object} response.Envelope
// @Router /found-books [post]
func (h *FoundBookHandler) Record(c *gin.Context) {
	var req dto.FoundBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	found, err := h.foundBooks.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, found)
}

// List godoc
// @Summary List found-book records
// @Tags FoundBooks
// @Produce json
// @Param status query string false "Lifecycle filter"
// @Success 200 {object} response.Envelope
// @Router /found-books [get]
func (h *FoundBookHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	records, err := h.foundBooks.List(c.Request.Context(), models.FoundBookStatus(c.Query("status")), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// UpdateStatus godoc
// @Summary Advance a found-book record
// @Tags FoundBooks
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.UpdateFoundBookRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /found-books/{id} [patch]
func (h *FoundBookHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateFoundBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.foundBooks.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
