package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt starts a new attempt of a test
// @Summary Start attempt
// @Description Starts a timed attempt; refused while another attempt of the same test is open
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Test to attempt"
// @Success 201 {object} models.Response{data=services.StartAttemptResponse}
// @Failure 404 {object} models.Response
// @Failure 409 {object} models.Response
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req services.StartAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Starting attempt", "test_id", req.TestID)

	attempt, err := h.attemptService.Start(c.Request.Context(), &req, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, attempt)
}

// SubmitAnswer records or replaces the answer to one question
// @Summary Submit answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answer body services.SubmitAnswerRequest true "Answer"
// @Success 200 {object} models.Response
// @Failure 409 {object} models.Response
// @Failure 410 {object} models.Response
// @Failure 422 {object} models.Response
// @Router /attempts/{id}/answers [post]
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SubmitAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Submitting answer", "attempt_id", id, "question_id", req.QuestionID)

	if err := h.attemptService.SubmitAnswer(c.Request.Context(), id, &req, h.actor(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "answer recorded"})
}

// GetAttempt returns the attempt's progress, finishing it first when time ran out
// @Summary Get attempt progress
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.Response{data=services.AttemptProgress}
// @Failure 403 {object} models.Response
// @Failure 404 {object} models.Response
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	progress, err := h.attemptService.GetProgress(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, progress)
}

// FinishAttempt scores and closes the attempt; repeating it returns the stored result
// @Summary Finish attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.Response{data=services.AttemptResult}
// @Router /attempts/{id}/finish [post]
func (h *AttemptHandler) FinishAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Finishing attempt", "attempt_id", id)

	result, err := h.attemptService.Finish(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, result)
}

// ExpireAttempt
// @Summary Expire attempt
// @Description Finishes the attempt if its time has run out and returns its progress
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.Response{data=services.AttemptProgress}
// @Router /attempts/{id}/expire [post]
func (h *AttemptHandler) ExpireAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	progress, err := h.attemptService.Expire(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, progress)
}

// ExpireOverdue sweeps every overdue attempt
// @Summary Expire overdue attempts
// @Tags attempts
// @Produce json
// @Success 200 {object} models.Response{data=services.ExpireOverdueResponse}
// @Router /attempts/expire-overdue [post]
func (h *AttemptHandler) ExpireOverdue(c *gin.Context) {
	h.LogRequest(c, "Expiring overdue attempts")

	resp, err := h.attemptService.ExpireOverdue(c.Request.Context(), h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, resp)
}

// GetAttemptDetails returns the per-question review of a finished attempt
// @Summary Get attempt details
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.Response{data=services.AttemptDetails}
// @Failure 409 {object} models.Response
// @Router /attempts/{id}/details [get]
func (h *AttemptHandler) GetAttemptDetails(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	details, err := h.attemptService.GetDetails(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, details)
}

// ListUserAttempts
// @Summary List a user's attempts
// @Tags attempts
// @Produce json
// @Param userId path uint true "User ID"
// @Param testId query uint false "Filter by test"
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} models.Response{data=models.Page[models.TestAttempt]}
// @Router /attempts/user/{userId} [get]
func (h *AttemptHandler) ListUserAttempts(c *gin.Context) {
	userID := h.parseIDParam(c, "userId")
	if userID == 0 {
		return
	}

	page, err := h.attemptService.ListUserAttempts(c.Request.Context(), userID, services.AttemptListParams{
		TestID: h.parseOptionalUintQuery(c, "testId"),
		Page:   h.parseIntQuery(c, "page", 1),
		Limit:  h.parseIntQuery(c, "limit", 0),
	}, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, page)
}

// GradeAnswer records a manual grade for a free-form answer
// @Summary Grade answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param questionId path uint true "Question ID"
// @Param grade body services.GradeAnswerRequest true "Points"
// @Success 200 {object} models.Response{data=services.AttemptResult}
// @Router /attempts/{id}/answers/{questionId}/grade [put]
func (h *AttemptHandler) GradeAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	questionID := h.parseIDParam(c, "questionId")
	if questionID == 0 {
		return
	}

	var req services.GradeAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Grading answer", "attempt_id", id, "question_id", questionID)

	result, err := h.attemptService.GradeAnswer(c.Request.Context(), id, questionID, &req, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, result)
}
