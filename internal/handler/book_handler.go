package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	"github.com/yptunaskarya/perpus-api/internal/service"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
	"github.com/yptunaskarya/perpus-api/pkg/response"
)

// BookHandler exposes catalog endpoints.
type BookHandler struct {
	books   *service.BookService
	items   *service.ItemService
	exports *service.ExportService
}

// NewBookHandler constructs BookHandler.
func NewBookHandler(books *service.BookService, items *service.ItemService, exports *service.ExportService) *BookHandler {
	return &BookHandler{books: books, items: items, exports: exports}
}

// List godoc
// @Summary List catalog titles
// @Tags Books
// @Produce json
// @Param search query string false "Search by title or author"
// @Param category query string false "Filter by category"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /books [get]
func (h *BookHandler) List(c *gin.Context) {
	var filter models.BookFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Category = c.Query("category")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	res, err := h.books.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res.Books, &res.Pagination)
}

// Search godoc
// @Summary Search titles
// @Tags Books
// @Produce json
// @Param q query string true "Title or author fragment"
// @Success 200 {object} response.Envelope
// @Router /books/search [get]
func (h *BookHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	books, err := h.books.Search(c.Request.Context(), strings.TrimSpace(c.Query("q")), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, books, nil)
}

// Get godoc
// @Summary Get title detail
// @Tags Books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [get]
func (h *BookHandler) Get(c *gin.Context) {
	book, err := h.books.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Create godoc
// @Summary Create title
// @Description Creating a duplicate title folds into a stock addition on the existing one
// @Tags Books
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookRequest true "Book payload"
// @Success 201 {object} response.Envelope
// @Router /books [post]
func (h *BookHandler) Create(c *gin.Context) {
	var req dto.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	book, err := h.books.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, book)
}

// Update godoc
// @Summary Update title
// @Tags Books
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param payload body dto.UpdateBookRequest true "Book payload"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [put]
func (h *BookHandler) Update(c *gin.Context) {
	var req dto.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	book, err := h.books.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Delete godoc
// @Summary Delete title and its exemplars
// @Tags Books
// @Param id path string true "Book ID"
// @Success 204
// @Router /books/{id} [delete]
func (h *BookHandler) Delete(c *gin.Context) {
	if err := h.books.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddStock godoc
// @Summary Add copies
// @Tags Books
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param payload body dto.AddStockRequest true "Stock payload"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/stock [post]
func (h *BookHandler) AddStock(c *gin.Context) {
	var req dto.AddStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	book, err := h.books.AddStock(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// ReduceStock godoc
// @Summary Withdraw copies
// @Tags Books
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param payload body dto.ReduceStockRequest true "Stock payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /books/{id}/reduce [post]
func (h *BookHandler) ReduceStock(c *gin.Context) {
	var req dto.ReduceStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	book, err := h.books.ReduceStock(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Items godoc
// @Summary List exemplars of a title
// @Tags Books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/items [get]
func (h *BookHandler) Items(c *gin.Context) {
	items, err := h.items.ListByBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Availability godoc
// @Summary Exemplar status breakdown for a title
// @Tags Books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/availability [get]
func (h *BookHandler) Availability(c *gin.Context) {
	counts, err := h.items.Availability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}

// RegenerateQR godoc
// @Summary Schedule QR regeneration for a title
// @Tags Books
// @Param id path string true "Book ID"
// @Success 202 {object} response.Envelope
// @Router /books/{id}/qr [post]
func (h *BookHandler) RegenerateQR(c *gin.Context) {
	book, err := h.books.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.books.EnqueueQR(book.ID)
	response.JSON(c, http.StatusAccepted, gin.H{"book_id": book.ID, "status": "scheduled"}, nil)
}

// Import godoc
// @Summary Import titles from a spreadsheet
// @Tags Books
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "XLSX file"
// @Success 200 {object} response.Envelope
// @Router /books/import [post]
func (h *BookHandler) Import(c *gin.Context) {
	raw, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.books.Import(c.Request.Context(), raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export the catalog
// @Tags Books
// @Produce json
// @Param format query string false "csv, xlsx or pdf"
// @Success 200 {object} response.Envelope
// @Router /books/export [get]
func (h *BookHandler) Export(c *gin.Context) {
	data, err := h.books.ExportDataset(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "xlsx"))
	result, err := h.exports.Generate(c.Request.Context(), "books", data, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func readUpload(c *gin.Context) ([]byte, error) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file upload is required")
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload")
	}
	return raw, nil
}
