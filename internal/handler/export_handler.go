package handler

import (
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yptunaskarya/perpus-api/internal/service"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
	"github.com/yptunaskarya/perpus-api/pkg/response"
)

// ExportHandler serves signed export downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download godoc
// @Summary Download a generated export
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	relPath, payload, err := h.exports.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := path.Base(relPath)
	ext := strings.TrimPrefix(path.Ext(relPath), ".")
	response.Attachment(c, filename, service.ExportFormat(ext).ContentType(), payload)
}
