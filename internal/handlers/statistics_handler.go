package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type StatisticsHandler struct {
	BaseHandler
	service services.StatisticsService
}

func NewStatisticsHandler(service services.StatisticsService, logger utils.Logger) *StatisticsHandler {
	return &StatisticsHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== STATISTICS ENDPOINTS =====

// GetTestStatistics
// @Summary Test statistics
// @Tags statistics
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} models.Response{data=models.TestStatistics}
// @Failure 404 {object} models.Response
// @Router /tests/{id}/statistics [get]
func (h *StatisticsHandler) GetTestStatistics(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	stats, err := h.service.TestStatistics(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, stats)
}

// GetUserStatistics
// @Summary User statistics
// @Tags statistics
// @Produce json
// @Param id path uint true "User ID"
// @Success 200 {object} models.Response{data=models.UserStatistics}
// @Failure 403 {object} models.Response
// @Router /statistics/user/{id} [get]
func (h *StatisticsHandler) GetUserStatistics(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	stats, err := h.service.UserStatistics(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, stats)
}

// GetGlobalStatistics
// @Summary Global statistics
// @Tags statistics
// @Produce json
// @Success 200 {object} models.Response{data=models.GlobalStatistics}
// @Router /statistics/global [get]
func (h *StatisticsHandler) GetGlobalStatistics(c *gin.Context) {
	stats, err := h.service.GlobalStatistics(c.Request.Context(), h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, stats)
}
