package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

// QuestionHandler serves questions and their answer options
type QuestionHandler struct {
	BaseHandler
	service services.TestService
}

func NewQuestionHandler(service services.TestService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// GetQuestion
// @Summary Get question
// @Tags questions
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} models.Response{data=models.Question}
// @Failure 404 {object} models.Response
// @Router /questions/{id} [get]
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	question, err := h.service.GetQuestion(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, question)
}

// UpdateQuestion
// @Summary Update question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Question ID"
// @Param question body services.UpdateQuestionRequest true "Fields to change"
// @Success 200 {object} models.Response{data=models.Question}
// @Router /questions/{id} [put]
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Updating question", "question_id", id)

	var req services.UpdateQuestionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	question, err := h.service.UpdateQuestion(c.Request.Context(), id, &req, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, question)
}

// DeleteQuestion
// @Summary Delete question
// @Tags questions
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} models.Response
// @Router /questions/{id} [delete]
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Deleting question", "question_id", id)

	if err := h.service.DeleteQuestion(c.Request.Context(), id, h.actor(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "question deleted"})
}

// ===== OPTIONS =====

// ListOptions
// @Summary List answer options
// @Tags options
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} models.Response{data=[]models.AnswerOption}
// @Router /questions/{id}/options [get]
func (h *QuestionHandler) ListOptions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	options, err := h.service.ListOptions(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, options)
}

// AddOption
// @Summary Add answer option
// @Tags options
// @Accept json
// @Produce json
// @Param id path uint true "Question ID"
// @Param option body services.CreateOptionRequest true "Option data"
// @Success 201 {object} models.Response{data=models.AnswerOption}
// @Router /questions/{id}/options [post]
func (h *QuestionHandler) AddOption(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.CreateOptionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	option, err := h.service.AddOption(c.Request.Context(), id, &req, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, option)
}

// UpdateOption
// @Summary Update answer option
// @Tags options
// @Accept json
// @Produce json
// @Param id path uint true "Option ID"
// @Param option body services.UpdateOptionRequest true "Fields to change"
// @Success 200 {object} models.Response{data=models.AnswerOption}
// @Router /options/{id} [put]
func (h *QuestionHandler) UpdateOption(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateOptionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	option, err := h.service.UpdateOption(c.Request.Context(), id, &req, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, option)
}

// DeleteOption
// @Summary Delete answer option
// @Tags options
// @Produce json
// @Param id path uint true "Option ID"
// @Success 200 {object} models.Response
// @Router /options/{id} [delete]
func (h *QuestionHandler) DeleteOption(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.service.DeleteOption(c.Request.Context(), id, h.actor(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "option deleted"})
}
