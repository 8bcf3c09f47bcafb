package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type ExportHandler struct {
	BaseHandler
	service services.ExportService
}

func NewExportHandler(service services.ExportService, logger utils.Logger) *ExportHandler {
	return &ExportHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ExportTestResults streams an XLSX workbook of every attempt of a test
// @Summary Export test results
// @Tags tests
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Test ID"
// @Success 200 {file} file
// @Failure 403 {object} models.Response
// @Router /tests/{id}/results/export [get]
func (h *ExportHandler) ExportTestResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Exporting test results", "test_id", id)

	file, err := h.service.ExportTestResults(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
