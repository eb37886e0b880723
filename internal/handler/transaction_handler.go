package handler

import (
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

// TransactionHandler exposes lending endpoints.
type TransactionHandler struct {
	transactions *service.TransactionService
	receipts     *service.ReceiptService
	exports      *service.ExportService
	auth         *service.AuthService
}

// NewTransactionHandler constructs TransactionHandler.
func NewTransactionHandler(transactions *service.TransactionService, receipts *service.ReceiptService, exports *service.ExportService, auth *service.AuthService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, receipts: receipts, exports: exports, auth: auth}
}

// Borrow godoc
// @Summary Open a borrow transaction
// @Tags Transactions
// @Accept json
// @Produce json
// @Param payload body dto.BorrowRequest true "Borrow payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transactions [post]
func (h *TransactionHandler) Borrow(c *gin.Context) {
	var req dto.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	res, err := h.transactions.Borrow(c.Request.Context(), req, h.officer(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Return godoc
// @Summary Process a return batch
// @Tags Transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param payload body dto.ReturnRequest true "Return payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transactions/{id}/return [post]
func (h *TransactionHandler) Return(c *gin.Context) {
	var req dto.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	res, err := h.transactions.Return(c.Request.Context(), c.Param("id"), req, h.officer(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// ResolvePending godoc
// @Summary Settle outstanding fines of a pending transaction
// @Tags Transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param payload body dto.ResolvePendingRequest true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transactions/{id}/resolve [post]
func (h *TransactionHandler) ResolvePending(c *gin.Context) {
	var req dto.ResolvePendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	res, err := h.transactions.ResolvePending(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// List godoc
// @Summary List transactions
// @Tags Transactions
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param status query string false "Comma-separated status filter"
// @Success 200 {object} response.Envelope
// @Router /transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	var filter models.TransactionFilter
	filter.StudentID = c.Query("studentId")
	if statuses := c.Query("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			filter.Status = append(filter.Status, models.TransactionStatus(strings.TrimSpace(s)))
		}
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "100")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		filter.Offset = offset
	}

	// Student accounts only see their own history.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		if claims.StudentID == nil {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		filter.StudentID = *claims.StudentID
	}

	transactions, err := h.transactions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transactions, nil)
}

// Get godoc
// @Summary Get transaction detail
// @Tags Transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Envelope
// @Router /transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	res, err := h.transactions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		if claims.StudentID == nil || res.Transaction.StudentID != *claims.StudentID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Search godoc
// @Summary Search ongoing transactions by student
// @Tags Transactions
// @Produce json
// @Param q query string true "Student name or NIS fragment"
// @Success 200 {object} response.Envelope
// @Router /transactions/search [get]
func (h *TransactionHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	transactions, err := h.transactions.SearchByStudent(c.Request.Context(), strings.TrimSpace(c.Query("q")), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transactions, nil)
}

// GetByReceipt godoc
// @Summary Look up a transaction by receipt number
// @Tags Transactions
// @Produce json
// @Param number path string true "Receipt number"
// @Success 200 {object} response.Envelope
// @Router /transactions/receipt/{number} [get]
func (h *TransactionHandler) GetByReceipt(c *gin.Context) {
	res, err := h.transactions.GetByReceipt(c.Request.Context(), c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Receipt godoc
// @Summary Printable receipt
// @Tags Transactions
// @Produce html
// @Param id path string true "Transaction ID"
// @Success 200 {string} string "HTML receipt"
// @Router /transactions/{id}/receipt [get]
func (h *TransactionHandler) Receipt(c *gin.Context) {
	body, err := h.receipts.Render(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.HTML(c, http.StatusOK, body)
}

// Export godoc
// @Summary Export the transaction history
// @Tags Transactions
// @Produce json
// @Param format query string false "csv, xlsx or pdf"
// @Param status query string false "Comma-separated status filter"
// @Success 200 {object} response.Envelope
// @Router /transactions/export [get]
func (h *TransactionHandler) Export(c *gin.Context) {
	var filter models.TransactionFilter
	filter.StudentID = c.Query("studentId")
	if statuses := c.Query("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			filter.Status = append(filter.Status, models.TransactionStatus(strings.TrimSpace(s)))
		}
	}

	data, err := h.transactions.ExportDataset(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "xlsx"))
	result, err := h.exports.Generate(c.Request.Context(), "transactions", data, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// officer resolves the acting account into an officer snapshot for the ledger.
func (h *TransactionHandler) officer(c *gin.Context) *models.UserInfo {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	info, err := h.auth.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		return &models.UserInfo{ID: claims.UserID, Username: claims.Username, Name: claims.Username, Role: claims.Role}
	}
	return info
}
